package turn

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/auralabs/aura-core/internal/config"
	"github.com/auralabs/aura-core/pkg/logger"
)

// SessionRegistry owns every active Room. Rooms are fully independent; the
// registry's lock covers only the map itself.
type SessionRegistry struct {
	cfg    *config.Settings
	collab Collaborators
	log    *logger.Logger

	mu    sync.RWMutex
	rooms map[uuid.UUID]*Room
	ctx   context.Context
}

func NewSessionRegistry(ctx context.Context, cfg *config.Settings, collab Collaborators, log *logger.Logger) *SessionRegistry {
	return &SessionRegistry{
		cfg:    cfg,
		collab: collab,
		log:    log,
		rooms:  make(map[uuid.UUID]*Room),
		ctx:    ctx,
	}
}

// GetOrCreate returns the room's session, starting one on first use (bot
// join).
func (sr *SessionRegistry) GetOrCreate(roomID uuid.UUID) *Room {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	if room, ok := sr.rooms[roomID]; ok {
		return room
	}
	room := NewRoom(roomID, sr.cfg, sr.collab, sr.log)
	room.Start(sr.ctx)
	sr.rooms[roomID] = room
	sr.log.Infof("room session created: %s", roomID)
	return room
}

func (sr *SessionRegistry) Get(roomID uuid.UUID) (*Room, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()
	room, ok := sr.rooms[roomID]
	return room, ok
}

// Remove tears down one room session.
func (sr *SessionRegistry) Remove(roomID uuid.UUID) {
	sr.mu.Lock()
	room, ok := sr.rooms[roomID]
	delete(sr.rooms, roomID)
	sr.mu.Unlock()

	if ok {
		room.Close()
		sr.log.Infof("room session removed: %s", roomID)
	}
}

// Shutdown closes every room.
func (sr *SessionRegistry) Shutdown() {
	sr.mu.Lock()
	rooms := make([]*Room, 0, len(sr.rooms))
	for _, room := range sr.rooms {
		rooms = append(rooms, room)
	}
	sr.rooms = make(map[uuid.UUID]*Room)
	sr.mu.Unlock()

	for _, room := range rooms {
		room.Close()
	}
}
