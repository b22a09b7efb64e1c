package turn

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/auralabs/aura-core/internal/config"
	"github.com/auralabs/aura-core/internal/turn/botstate"
	"github.com/auralabs/aura-core/pkg/intent"
	"github.com/auralabs/aura-core/pkg/logger"
)

// fastSettings shrinks every window so a full conversation fits in a test.
func fastSettings() *config.Settings {
	cfg := config.Default()
	cfg.Vad.CalibrationMs = 300
	cfg.Vad.SilenceFrames = 5
	cfg.Vad.MinUtteranceMs = 90
	cfg.Vad.SpeakerCooldownMs = 0
	cfg.Turn.FillerDelayMs = 60
	cfg.Turn.ResponseCooldownMs = 0
	cfg.Turn.InactivityTimeoutMs = 400
	cfg.Turn.InactivityCheckMs = 100
	return cfg
}

type scriptRecognizer struct {
	mu    sync.Mutex
	lines []string
}

func (r *scriptRecognizer) Recognize(_ context.Context, _ []byte) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.lines) == 0 {
		return "", nil
	}
	line := r.lines[0]
	r.lines = r.lines[1:]
	return line, nil
}

type stubGenerator struct {
	mu       sync.Mutex
	delay    time.Duration
	text     string
	failures int
	calls    int
}

func (g *stubGenerator) Generate(ctx context.Context, _ string) (string, error) {
	g.mu.Lock()
	g.calls++
	fail := g.calls <= g.failures
	delay := g.delay
	text := g.text
	g.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if fail {
		return "", errors.New("provider unavailable")
	}
	return text, nil
}

func (g *stubGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type stubSynth struct {
	mu     sync.Mutex
	frames int
	bytes  int
	texts  []string
}

func (s *stubSynth) Synthesize(_ context.Context, text string) ([]byte, error) {
	s.mu.Lock()
	s.texts = append(s.texts, text)
	s.mu.Unlock()
	return make([]byte, s.frames*s.bytes), nil
}

func (s *stubSynth) spoken() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

type countingSender struct {
	mu    sync.Mutex
	count int
}

func (c *countingSender) SendFrame(_ context.Context, _ uuid.UUID, _ int, _ []byte) error {
	c.mu.Lock()
	c.count++
	c.mu.Unlock()
	return nil
}

func (c *countingSender) sent() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

type eventRecorder struct {
	mu    sync.Mutex
	names []string
}

func (e *eventRecorder) SendEvent(_ context.Context, _ uuid.UUID, name string, _ any) error {
	e.mu.Lock()
	e.names = append(e.names, name)
	e.mu.Unlock()
	return nil
}

func (e *eventRecorder) saw(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, n := range e.names {
		if n == name {
			return true
		}
	}
	return false
}

type harness struct {
	room   *Room
	cfg    *config.Settings
	rec    *scriptRecognizer
	gen    *stubGenerator
	synth  *stubSynth
	sender *countingSender
	events *eventRecorder
}

func newHarness(t *testing.T, transcripts ...string) *harness {
	t.Helper()
	cfg := fastSettings()
	h := &harness{
		cfg:    cfg,
		rec:    &scriptRecognizer{lines: transcripts},
		gen:    &stubGenerator{text: "It's sunny."},
		synth:  &stubSynth{frames: 2, bytes: cfg.Audio.FrameBytes()},
		sender: &countingSender{},
		events: &eventRecorder{},
	}
	h.room = NewRoom(uuid.New(), cfg, Collaborators{
		Recognizer:  h.rec,
		Classifier:  intent.NewRuleClassifier(cfg.Turn.WakeWord),
		Generator:   h.gen,
		Synthesizer: h.synth,
		Sender:      h.sender,
		Notifier:    h.events,
	}, logger.Nop())
	h.room.Start(context.Background())
	t.Cleanup(h.room.Close)
	return h
}

func pcmFrame(cfg *config.Settings, amplitude int16) []byte {
	buf := make([]byte, cfg.Audio.FrameBytes())
	for i := 0; i < len(buf)/2; i++ {
		s := amplitude
		if i%2 == 1 {
			s = -amplitude
		}
		buf[i*2] = byte(uint16(s) & 0xFF)
		buf[i*2+1] = byte(uint16(s) >> 8)
	}
	return buf
}

// speakUtterance feeds calibration (first call per speaker), voice and the
// trailing silence that closes the segment.
func (h *harness) speakUtterance(speaker uuid.UUID, calibrated bool) {
	if !calibrated {
		frames := h.cfg.Vad.CalibrationMs / h.cfg.Audio.FrameMs
		for i := 0; i < frames; i++ {
			h.room.SubmitFrame(speaker, pcmFrame(h.cfg, 50))
		}
	}
	for i := 0; i < 4; i++ {
		h.room.SubmitFrame(speaker, pcmFrame(h.cfg, 3000))
	}
	for i := 0; i < h.cfg.Vad.SilenceFrames+2; i++ {
		h.room.SubmitFrame(speaker, pcmFrame(h.cfg, 50))
	}
}

func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestRoomRespondsWithFillerAndConnective(t *testing.T) {
	h := newHarness(t, "aura, what is the weather")
	h.gen.delay = 250 * time.Millisecond // well past the filler delay
	speaker := uuid.New()

	h.speakUtterance(speaker, false)

	waitFor(t, 3*time.Second, "response playback", func() bool {
		return h.room.State() == botstate.Listening && h.sender.sent() > 0
	})

	spoken := h.synth.spoken()
	if len(spoken) != 2 {
		t.Fatalf("expected filler then response, spoke %v", spoken)
	}
	filler := spoken[0]
	found := false
	for _, p := range h.cfg.Turn.FillerPhrases {
		if filler == p {
			found = true
		}
	}
	if !found {
		t.Errorf("first utterance %q is not a configured filler", filler)
	}
	want := h.cfg.Turn.ConnectivePrefix + " " + "It's sunny."
	if spoken[1] != want {
		t.Errorf("expected connective response %q, got %q", want, spoken[1])
	}
	if !h.events.saw("transcript") || !h.events.saw("response_text") {
		t.Error("expected transcript and response_text notifications")
	}

	// with nothing further said, the room goes back to sleep
	waitFor(t, 2*time.Second, "inactivity drop", func() bool {
		return h.room.State() == botstate.Dormant
	})
}

func TestRoomSkipsFillerOnFastGeneration(t *testing.T) {
	h := newHarness(t, "aura, what is the weather")
	// instant generation wins the race against the 60 ms filler timer

	h.speakUtterance(uuid.New(), false)

	waitFor(t, 3*time.Second, "response playback", func() bool {
		return h.room.State() == botstate.Listening && h.sender.sent() > 0
	})

	spoken := h.synth.spoken()
	if len(spoken) != 1 {
		t.Fatalf("expected a single utterance, spoke %v", spoken)
	}
	if strings.HasPrefix(spoken[0], h.cfg.Turn.ConnectivePrefix) {
		t.Errorf("no filler played, response must not carry the connective: %q", spoken[0])
	}
}

func TestRoomAcknowledgesBareWakeWord(t *testing.T) {
	h := newHarness(t, "aura")

	h.speakUtterance(uuid.New(), false)

	waitFor(t, 3*time.Second, "acknowledgement", func() bool {
		spoken := h.synth.spoken()
		return len(spoken) == 1 && spoken[0] == h.cfg.Turn.AckPhrase
	})
	if h.room.State() != botstate.Listening {
		t.Errorf("expected listening after ack, got %s", h.room.State())
	}
	if h.gen.callCount() != 0 {
		t.Error("bare wake word must not reach the generator")
	}
}

func TestRoomBargeInStopsPlayback(t *testing.T) {
	h := newHarness(t, "aura, what is the weather")
	h.synth.frames = 100 // about three seconds of speech
	owner := uuid.New()
	other := uuid.New()

	h.speakUtterance(owner, false)
	waitFor(t, 3*time.Second, "speaking state", func() bool {
		return h.room.State() == botstate.Speaking
	})

	// a human talking over the bot halts the stream
	h.speakUtterance(other, false)

	waitFor(t, 3*time.Second, "playback halt", func() bool {
		return h.events.saw("barge_in") && h.room.State() == botstate.Listening
	})
	if h.sender.sent() >= 100 {
		t.Errorf("playback should have been cut short, sent %d frames", h.sender.sent())
	}
	if !h.events.saw("speaking_interrupted") {
		t.Error("expected a speaking_interrupted notification")
	}
}

func TestRoomMuteStopsPlayback(t *testing.T) {
	h := newHarness(t, "aura, what is the weather")
	h.synth.frames = 100

	h.speakUtterance(uuid.New(), false)
	waitFor(t, 3*time.Second, "speaking state", func() bool {
		return h.room.State() == botstate.Speaking
	})

	h.room.Mute()

	waitFor(t, 3*time.Second, "playback halt", func() bool {
		return h.room.State() == botstate.Listening
	})
	if h.sender.sent() >= 100 {
		t.Errorf("mute should have cut playback short, sent %d frames", h.sender.sent())
	}
}

func TestRoomRecoversFromGenerationFailure(t *testing.T) {
	h := newHarness(t, "aura, what is the weather", "aura tell me a joke")
	h.gen.failures = 1

	speaker := uuid.New()
	h.speakUtterance(speaker, false)

	// the failed pipeline must force dormant and release the lock
	waitFor(t, 3*time.Second, "failure recovery", func() bool {
		return h.gen.callCount() >= 1 && h.room.State() == botstate.Dormant
	})
	if h.sender.sent() != 0 {
		t.Errorf("failed turn must not stream audio, sent %d", h.sender.sent())
	}

	// the next wake works normally
	h.speakUtterance(speaker, true)
	waitFor(t, 3*time.Second, "second response", func() bool {
		return h.sender.sent() > 0 && h.room.State() == botstate.Listening
	})
}

func TestRoomIgnoresPlainConversation(t *testing.T) {
	h := newHarness(t, "let's review the quarterly numbers")

	h.speakUtterance(uuid.New(), false)

	// give the loop time to process, then confirm nothing happened
	time.Sleep(300 * time.Millisecond)
	if h.room.State() != botstate.Dormant {
		t.Errorf("plain conversation must not wake the bot, state %s", h.room.State())
	}
	if h.sender.sent() != 0 || len(h.synth.spoken()) != 0 {
		t.Error("no audio should be produced for plain conversation")
	}
	if !h.events.saw("transcript") {
		t.Error("transcripts are still published for ignored speech")
	}
}
