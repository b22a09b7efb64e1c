package memory

import (
	"sync"

	"github.com/google/uuid"

	"github.com/auralabs/aura-core/pkg/io/device"
	"github.com/auralabs/aura-core/pkg/io/registry"
)

type memoryRegistry struct {
	mu    sync.RWMutex
	rooms map[uuid.UUID]map[device.EndpointID]device.Endpoint
}

func New() registry.DeviceRegistry {
	return &memoryRegistry{
		rooms: make(map[uuid.UUID]map[device.EndpointID]device.Endpoint),
	}
}

func (m *memoryRegistry) AttachEndpoint(roomID uuid.UUID, ep device.Endpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	eps, ok := m.rooms[roomID]
	if !ok {
		eps = make(map[device.EndpointID]device.Endpoint)
		m.rooms[roomID] = eps
	}
	eps[ep.ID()] = ep
	return nil
}

func (m *memoryRegistry) DetachEndpoint(roomID uuid.UUID, id device.EndpointID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if eps, ok := m.rooms[roomID]; ok {
		delete(eps, id)
		if len(eps) == 0 {
			delete(m.rooms, roomID)
		}
	}
}

func (m *memoryRegistry) ListRoomEndpoints(roomID uuid.UUID) []device.Endpoint {
	m.mu.RLock()
	defer m.mu.RUnlock()

	eps := m.rooms[roomID]
	out := make([]device.Endpoint, 0, len(eps))
	for _, ep := range eps {
		out = append(out, ep)
	}
	return out
}

func (m *memoryRegistry) RemoveRoom(roomID uuid.UUID) {
	m.mu.Lock()
	eps := m.rooms[roomID]
	delete(m.rooms, roomID)
	m.mu.Unlock()

	for _, ep := range eps {
		_ = ep.Close()
	}
}
