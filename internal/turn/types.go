package turn

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/auralabs/aura-core/internal/turn/playback"
	"github.com/auralabs/aura-core/pkg/assistant"
	"github.com/auralabs/aura-core/pkg/intent"
)

// Recognizer is the speech-to-text collaborator.
type Recognizer interface {
	Recognize(ctx context.Context, pcm []byte) (string, error)
}

// Synthesizer is the text-to-speech collaborator.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Notifier receives side-channel events (state changes, transcripts) for
// clients that care. Optional; may be nil.
type Notifier interface {
	SendEvent(ctx context.Context, roomID uuid.UUID, name string, payload any) error
}

// Collaborators bundles the external services one room depends on. All of
// them are treated as opaque async calls; a failure in any of them aborts
// the current turn and nothing else.
type Collaborators struct {
	Recognizer  Recognizer
	Classifier  intent.Classifier
	Generator   assistant.Generator
	Synthesizer Synthesizer
	Sender      playback.FrameSender
	Notifier    Notifier
}

type eventKind int

const (
	evFrame eventKind = iota
	evSpeakerLeft
	evMute
	evPipelineDone
)

type pipelineOutcome int

const (
	outcomeOK pipelineOutcome = iota
	outcomeFailed
	outcomeAck
)

// event is one message into the room's processing goroutine. Everything
// that mutates room state flows through here, which keeps the session
// single-writer.
type event struct {
	kind    eventKind
	speaker uuid.UUID
	frame   []byte
	at      time.Time

	token   uint64
	outcome pipelineOutcome
}
