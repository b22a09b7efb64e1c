package turn

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/auralabs/aura-core/pkg/intent"
	"github.com/auralabs/aura-core/pkg/logger"
)

func testRegistry(t *testing.T) *SessionRegistry {
	t.Helper()
	cfg := fastSettings()
	collab := Collaborators{
		Recognizer:  &scriptRecognizer{},
		Classifier:  intent.NewRuleClassifier(cfg.Turn.WakeWord),
		Generator:   &stubGenerator{text: "ok"},
		Synthesizer: &stubSynth{frames: 1, bytes: cfg.Audio.FrameBytes()},
		Sender:      &countingSender{},
	}
	sr := NewSessionRegistry(context.Background(), cfg, collab, logger.Nop())
	t.Cleanup(sr.Shutdown)
	return sr
}

func TestRegistryGetOrCreateIsIdempotent(t *testing.T) {
	sr := testRegistry(t)
	roomID := uuid.New()

	a := sr.GetOrCreate(roomID)
	b := sr.GetOrCreate(roomID)
	if a != b {
		t.Error("same room ID must map to the same session")
	}

	if _, ok := sr.Get(uuid.New()); ok {
		t.Error("unknown room must not be found")
	}
	if got, ok := sr.Get(roomID); !ok || got != a {
		t.Error("existing room must be returned by Get")
	}
}

func TestRegistryRemoveClosesRoom(t *testing.T) {
	sr := testRegistry(t)
	roomID := uuid.New()

	sr.GetOrCreate(roomID)
	sr.Remove(roomID)

	if _, ok := sr.Get(roomID); ok {
		t.Error("removed room must be gone")
	}
	// removing twice is a no-op
	sr.Remove(roomID)
}

func TestRegistryShutdownClosesAll(t *testing.T) {
	sr := testRegistry(t)
	for i := 0; i < 3; i++ {
		sr.GetOrCreate(uuid.New())
	}

	sr.Shutdown()

	if _, ok := sr.Get(uuid.New()); ok {
		t.Error("registry should be empty after shutdown")
	}
}
