package registry

import (
	"github.com/google/uuid"

	"github.com/auralabs/aura-core/pkg/io/device"
)

// DeviceRegistry tracks which media endpoints belong to which room.
type DeviceRegistry interface {
	AttachEndpoint(roomID uuid.UUID, ep device.Endpoint) error
	DetachEndpoint(roomID uuid.UUID, id device.EndpointID)

	ListRoomEndpoints(roomID uuid.UUID) []device.Endpoint
	// RemoveRoom detaches and closes everything for a torn-down room.
	RemoveRoom(roomID uuid.UUID)
}
