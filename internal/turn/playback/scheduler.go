package playback

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/auralabs/aura-core/internal/config"
	"github.com/auralabs/aura-core/internal/turn/lifecycle"
	"github.com/auralabs/aura-core/pkg/audio"
	"github.com/auralabs/aura-core/pkg/logger"
)

// FrameSender is the outbound side of the media transport.
type FrameSender interface {
	SendFrame(ctx context.Context, roomID uuid.UUID, seq int, frame []byte) error
}

// Result reports how a playback run ended.
type Result int

const (
	Completed Result = iota
	Interrupted
	Superseded
)

// pace drift is recomputed after this many frames
const paceBatch = 4

// Scheduler streams a synthesized PCM buffer back to the room as fixed
// 30 ms frames at wall-clock pace. Every frame it checks the interrupt flag
// (consume and stop) and the request token (stop without consuming), so
// playback halts within one frame interval of either signal.
type Scheduler struct {
	audioCfg config.AudioConfig
	log      *logger.Logger
	sender   FrameSender
	ctrl     *lifecycle.Controller
}

func New(audioCfg config.AudioConfig, ctrl *lifecycle.Controller, sender FrameSender, log *logger.Logger) *Scheduler {
	return &Scheduler{
		audioCfg: audioCfg,
		log:      log,
		sender:   sender,
		ctrl:     ctrl,
	}
}

// Play streams pcm to the room. It either completes fully or halts early on
// interrupt/stale token; never both.
func (s *Scheduler) Play(ctx context.Context, roomID uuid.UUID, token uint64, pcm []byte) (Result, error) {
	frames := audio.SplitFrames(pcm, s.audioCfg.FrameBytes())
	if len(frames) == 0 {
		return Completed, nil
	}

	frameDur := s.audioCfg.FrameDuration()
	start := time.Now()

	for i, frame := range frames {
		if s.ctrl.ConsumeInterrupt() {
			s.log.Debugf("playback interrupted room=%s frame=%d/%d", roomID, i, len(frames))
			return Interrupted, nil
		}
		if !s.ctrl.IsCurrent(token) {
			s.log.Debugf("playback superseded room=%s token=%d", roomID, token)
			return Superseded, nil
		}
		if err := s.sender.SendFrame(ctx, roomID, i, frame); err != nil {
			return Interrupted, err
		}

		if (i+1)%paceBatch == 0 {
			expected := time.Duration(i+1) * frameDur
			if res, halted, err := s.sleepDrift(ctx, token, expected, start); halted {
				s.log.Debugf("playback halted during pacing room=%s frame=%d/%d", roomID, i+1, len(frames))
				return res, err
			}
		}
	}

	// drain the tail so the caller observes real-time completion
	expected := time.Duration(len(frames)) * frameDur
	if res, halted, err := s.sleepDrift(ctx, token, expected, start); halted {
		return res, err
	}
	return Completed, nil
}

// sleepDrift sleeps off the positive pace drift in frame-sized slices,
// re-checking the interrupt flag and token currency each slice so a signal
// landing mid-sleep is still serviced within one frame interval.
func (s *Scheduler) sleepDrift(ctx context.Context, token uint64, expected time.Duration, start time.Time) (Result, bool, error) {
	frameDur := s.audioCfg.FrameDuration()
	for {
		drift := expected - time.Since(start)
		if drift <= 0 {
			return Completed, false, nil
		}
		if s.ctrl.ConsumeInterrupt() {
			return Interrupted, true, nil
		}
		if !s.ctrl.IsCurrent(token) {
			return Superseded, true, nil
		}
		if drift > frameDur {
			drift = frameDur
		}
		select {
		case <-time.After(drift):
		case <-ctx.Done():
			return Interrupted, true, ctx.Err()
		}
	}
}
