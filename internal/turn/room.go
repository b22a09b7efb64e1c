package turn

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/auralabs/aura-core/internal/config"
	"github.com/auralabs/aura-core/internal/turn/botstate"
	"github.com/auralabs/aura-core/internal/turn/lifecycle"
	"github.com/auralabs/aura-core/internal/turn/playback"
	"github.com/auralabs/aura-core/internal/turn/vad"
	"github.com/auralabs/aura-core/pkg/logger"
)

// Room owns one meeting room's turn-taking session: the per-speaker
// segmenters, the bot state machine, the request lifecycle controller and
// the playback scheduler. A single goroutine drains the event channel, so
// all session state is single-writer; response pipelines run as short-lived
// goroutines gated by the lifecycle lock and report back through the same
// channel.
type Room struct {
	ID  uuid.UUID
	cfg *config.Settings
	log *logger.Logger

	collab    Collaborators
	machine   *botstate.Machine
	ctrl      *lifecycle.Controller
	scheduler *playback.Scheduler
	speakers  map[uuid.UUID]*vad.Segmenter

	inCh   chan event
	cancel context.CancelFunc
	done   chan struct{}
}

func NewRoom(roomID uuid.UUID, cfg *config.Settings, collab Collaborators, log *logger.Logger) *Room {
	ctrl := lifecycle.New(cfg.Turn, log)
	return &Room{
		ID:        roomID,
		cfg:       cfg,
		log:       log,
		collab:    collab,
		machine:   botstate.New(cfg.Turn, log),
		ctrl:      ctrl,
		scheduler: playback.New(cfg.Audio, ctrl, collab.Sender, log),
		speakers:  make(map[uuid.UUID]*vad.Segmenter),
		inCh:      make(chan event, 256),
		done:      make(chan struct{}),
	}
}

// Start launches the room's processing goroutine.
func (r *Room) Start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	r.cancel = cancel
	go r.run(ctx)
}

// Close tears the room down: every in-flight pipeline step is invalidated
// and the processing goroutine exits.
func (r *Room) Close() {
	r.ctrl.Supersede()
	if r.cancel != nil {
		r.cancel()
	}
	<-r.done
}

// SubmitFrame feeds one inbound PCM frame. Drops under backpressure rather
// than blocking the media layer.
func (r *Room) SubmitFrame(speaker uuid.UUID, frame []byte) {
	select {
	case r.inCh <- event{kind: evFrame, speaker: speaker, frame: frame, at: time.Now()}:
	default:
		r.log.Warnf("room %s input channel full, dropping frame from %s", r.ID, speaker)
	}
}

// SpeakerLeft discards the speaker's in-progress buffer and VAD state.
func (r *Room) SpeakerLeft(speaker uuid.UUID) {
	select {
	case r.inCh <- event{kind: evSpeakerLeft, speaker: speaker, at: time.Now()}:
	default:
	}
}

// Mute requests that current playback stop (explicit interrupt command).
func (r *Room) Mute() {
	select {
	case r.inCh <- event{kind: evMute, at: time.Now()}:
	default:
	}
}

// State exposes the current bot state for diagnostics.
func (r *Room) State() botstate.State { return r.machine.State() }

func (r *Room) run(ctx context.Context) {
	defer close(r.done)

	inactivity := time.NewTicker(time.Duration(r.cfg.Turn.InactivityCheckMs) * time.Millisecond)
	defer inactivity.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case ev := <-r.inCh:
			r.handleEvent(ctx, ev)

		case <-inactivity.C:
			if r.machine.CheckInactivity(time.Now()) {
				r.notify(ctx, "bot_state", string(r.machine.State()))
			}
		}
	}
}

func (r *Room) handleEvent(ctx context.Context, ev event) {
	switch ev.kind {
	case evFrame:
		r.handleFrame(ctx, ev)

	case evSpeakerLeft:
		if sgm, ok := r.speakers[ev.speaker]; ok {
			sgm.Reset()
			delete(r.speakers, ev.speaker)
		}
		r.machine.SpeakerLeft(ev.speaker)

	case evMute:
		if r.machine.State() == botstate.Speaking {
			r.ctrl.Interrupt()
		}

	case evPipelineDone:
		r.handlePipelineDone(ctx, ev)
	}
}

func (r *Room) handleFrame(ctx context.Context, ev event) {
	sgm, ok := r.speakers[ev.speaker]
	if !ok {
		sgm = vad.NewSegmenter(ev.speaker, r.cfg.Audio, r.cfg.Vad, r.log)
		r.speakers[ev.speaker] = sgm
	}

	seg := sgm.Push(ev.frame, ev.at)
	if seg == nil {
		return
	}

	if r.machine.State() == botstate.Speaking {
		// barge-in: the segment itself is ignored, but a human talking over
		// the bot stops playback
		r.ctrl.Interrupt()
		r.notify(ctx, "barge_in", seg.Speaker.String())
		return
	}

	r.handleSegment(ctx, seg)
}

// handleSegment runs recognition and classification inline (the room loop is
// the per-room task chain), then lets the state machine decide.
func (r *Room) handleSegment(ctx context.Context, seg *vad.Segment) {
	text, err := r.collab.Recognizer.Recognize(ctx, seg.PCM)
	if err != nil {
		r.log.Warnf("room %s recognition failed: %v", r.ID, err)
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	r.notify(ctx, "transcript", map[string]string{"speaker": seg.Speaker.String(), "text": text})

	verdict := r.collab.Classifier.Classify(text)
	decision := r.machine.OnVerdict(seg.Speaker, verdict, seg.ClosedAt)

	switch decision {
	case botstate.DecisionIgnore:
		return

	case botstate.DecisionSleep:
		r.notify(ctx, "bot_state", string(r.machine.State()))

	case botstate.DecisionAcknowledge:
		r.notify(ctx, "bot_state", string(r.machine.State()))
		token, ok := r.ctrl.Begin(seg.ClosedAt)
		if !ok {
			return
		}
		go r.runAck(ctx, token)

	case botstate.DecisionRespond:
		if r.machine.State() != botstate.Listening {
			return
		}
		token, ok := r.ctrl.Begin(seg.ClosedAt)
		if !ok {
			// a pipeline is in flight or we're cooling down; drop the segment
			r.log.Debugf("room %s response rejected, dropping segment", r.ID)
			return
		}
		if err := r.machine.BeginSpeaking(); err != nil {
			r.ctrl.End(token, time.Now())
			return
		}
		r.notify(ctx, "bot_state", string(r.machine.State()))
		go r.runResponse(ctx, token, verdict.Text)
	}
}

// runResponse is the response pipeline for one turn: generation raced
// against the thinking filler, then synthesis and paced playback. Any
// collaborator failure aborts the turn and forces the room back to Dormant;
// the lifecycle lock is always released.
func (r *Room) runResponse(ctx context.Context, token uint64, prompt string) {
	defer r.ctrl.End(token, time.Now())

	text, fillerPlayed, err := r.ctrl.AwaitWithFiller(ctx, token,
		func(ctx context.Context) (string, error) {
			return r.collab.Generator.Generate(ctx, prompt)
		},
		func() { r.speakFiller(ctx, token) },
	)
	if err != nil {
		r.log.Errorf("room %s generation failed: %v", r.ID, err)
		r.post(event{kind: evPipelineDone, token: token, outcome: outcomeFailed, at: time.Now()})
		return
	}
	if !r.ctrl.IsCurrent(token) {
		return
	}

	if fillerPlayed && r.cfg.Turn.ConnectivePrefix != "" {
		text = r.cfg.Turn.ConnectivePrefix + " " + text
	}
	r.notify(ctx, "response_text", text)

	if err := r.speak(ctx, token, text); err != nil {
		r.log.Errorf("room %s response playback failed: %v", r.ID, err)
		r.post(event{kind: evPipelineDone, token: token, outcome: outcomeFailed, at: time.Now()})
		return
	}
	r.post(event{kind: evPipelineDone, token: token, outcome: outcomeOK, at: time.Now()})
}

// runAck speaks the wake acknowledgement. The bot stays in Listening; a
// failed acknowledgement is logged and swallowed.
func (r *Room) runAck(ctx context.Context, token uint64) {
	defer r.ctrl.End(token, time.Now())

	if err := r.speak(ctx, token, r.cfg.Turn.AckPhrase); err != nil {
		r.log.Warnf("room %s acknowledgement failed: %v", r.ID, err)
	}
	r.post(event{kind: evPipelineDone, token: token, outcome: outcomeAck, at: time.Now()})
}

// speak synthesizes and plays one utterance under the given token.
func (r *Room) speak(ctx context.Context, token uint64, text string) error {
	pcm, err := r.collab.Synthesizer.Synthesize(ctx, text)
	if err != nil {
		return err
	}
	if !r.ctrl.IsCurrent(token) {
		return nil
	}
	result, err := r.scheduler.Play(ctx, r.ID, token, pcm)
	if err != nil {
		return err
	}
	if result == playback.Interrupted {
		r.notify(ctx, "speaking_interrupted", token)
	}
	return nil
}

func (r *Room) speakFiller(ctx context.Context, token uint64) {
	phrases := r.cfg.Turn.FillerPhrases
	if len(phrases) == 0 {
		return
	}
	phrase := phrases[int(token)%len(phrases)]
	if err := r.speak(ctx, token, phrase); err != nil {
		r.log.Debugf("room %s filler skipped: %v", r.ID, err)
	}
}

func (r *Room) handlePipelineDone(ctx context.Context, ev event) {
	switch ev.outcome {
	case outcomeFailed:
		r.machine.Fail()
	case outcomeOK:
		if r.machine.State() == botstate.Speaking {
			r.machine.FinishSpeaking(ev.at)
		}
	case outcomeAck:
		r.machine.Touch(ev.at)
	}
	r.notify(ctx, "bot_state", string(r.machine.State()))
}

func (r *Room) post(ev event) {
	select {
	case r.inCh <- ev:
	case <-time.After(time.Second):
		r.log.Warnf("room %s event channel stuck, dropping %d", r.ID, ev.kind)
	}
}

func (r *Room) notify(ctx context.Context, name string, payload any) {
	if r.collab.Notifier != nil {
		_ = r.collab.Notifier.SendEvent(ctx, r.ID, name, payload)
	}
}
