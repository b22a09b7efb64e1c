package websocket

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/auralabs/aura-core/pkg/io/device"
)

// wsEndpoint adapts a gorilla websocket connection to device.Endpoint.
// Writes are serialized; gorilla allows only one concurrent writer.
type wsEndpoint struct {
	id         uuid.UUID
	client     *websocket.Conn
	caps       device.Capabilities
	mu         sync.Mutex
	lastActive time.Time
}

func New(client *websocket.Conn, caps device.Capabilities) device.Endpoint {
	return &wsEndpoint{
		id:         uuid.New(),
		client:     client,
		caps:       caps,
		lastActive: time.Now(),
	}
}

func (w *wsEndpoint) ID() device.EndpointID { return device.EndpointID(w.id) }

func (w *wsEndpoint) Caps() device.Capabilities { return w.caps }

func (w *wsEndpoint) Transport() device.Transport { return device.TransportWS }

func (w *wsEndpoint) Touch() {
	w.mu.Lock()
	w.lastActive = time.Now()
	w.mu.Unlock()
}

func (w *wsEndpoint) LastActive() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastActive
}

func (w *wsEndpoint) IsAlive() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	err := w.client.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(time.Second))
	return err == nil
}

func (w *wsEndpoint) SendAudioFrame(roomID uuid.UUID, seq int, frame []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastActive = time.Now()
	return w.client.WriteMessage(websocket.BinaryMessage, frame)
}

func (w *wsEndpoint) SendEvent(roomID uuid.UUID, name string, payload any) error {
	msg := struct {
		Name    string `json:"name"`
		Payload any    `json:"payload"`
	}{Name: name, Payload: payload}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastActive = time.Now()
	return w.client.WriteJSON(msg)
}

func (w *wsEndpoint) Close() error {
	return w.client.Close()
}
