package io

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/auralabs/aura-core/pkg/io/registry"
)

// Publisher fans outbound audio frames and events to a room's endpoints.
type Publisher struct {
	reg registry.DeviceRegistry
}

func New(reg registry.DeviceRegistry) *Publisher {
	return &Publisher{reg: reg}
}

// SendFrame delivers one paced PCM frame to every audio-capable endpoint in
// the room. Fails only when nobody can hear the assistant at all.
func (p *Publisher) SendFrame(ctx context.Context, roomID uuid.UUID, seq int, frame []byte) error {
	delivered := 0
	for _, ep := range p.reg.ListRoomEndpoints(roomID) {
		if !ep.Caps().AudioSink {
			continue
		}
		if err := ep.SendAudioFrame(roomID, seq, frame); err == nil {
			delivered++
		}
	}
	if delivered == 0 {
		return fmt.Errorf("no audio sink for room %s", roomID)
	}
	return nil
}

func (p *Publisher) SendEvent(ctx context.Context, roomID uuid.UUID, name string, payload any) error {
	for _, ep := range p.reg.ListRoomEndpoints(roomID) {
		if ep.Caps().EventSink {
			_ = ep.SendEvent(roomID, name, payload)
		}
	}
	return nil
}
