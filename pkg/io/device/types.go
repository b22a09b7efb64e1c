package device

import (
	"time"

	"github.com/google/uuid"
)

type Transport string

const (
	TransportWS Transport = "ws"
)

type Capabilities struct {
	AudioSink bool // can sink audio frames
	EventSink bool // can sink JSON events
}

type EndpointID uuid.UUID

// Endpoint is one attached media connection for a room participant. The
// publisher fans outbound frames and events across a room's endpoints.
type Endpoint interface {
	ID() EndpointID
	Caps() Capabilities
	Transport() Transport

	SendAudioFrame(roomID uuid.UUID, seq int, frame []byte) error
	SendEvent(roomID uuid.UUID, name string, payload any) error

	Touch()
	IsAlive() bool
	Close() error
	LastActive() time.Time
}
