package botstate

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/looplab/fsm"

	"github.com/auralabs/aura-core/internal/config"
	"github.com/auralabs/aura-core/pkg/intent"
	"github.com/auralabs/aura-core/pkg/logger"
)

// State is the room-level bot state.
type State string

const (
	Dormant   State = "dormant"
	Listening State = "listening"
	Speaking  State = "speaking"
)

// FSM event names.
const (
	evWake   = "wake"
	evEngage = "engage"
	evFinish = "finish"
	evSleep  = "sleep"
	evFail   = "fail"
)

// Decision tells the room engine what to do with a classified segment.
type Decision int

const (
	DecisionIgnore Decision = iota
	DecisionAcknowledge
	DecisionRespond
	DecisionSleep
)

// Machine is the per-room conversation state machine. It is driven only by
// the room's own goroutine, so it carries no lock of its own.
type Machine struct {
	cfg config.TurnConfig
	log *logger.Logger
	fsm *fsm.FSM

	activeSpeaker     uuid.UUID
	lastInteractionAt time.Time
	lastResponseAt    time.Time
	lastRespondedTo   uuid.UUID
}

func New(cfg config.TurnConfig, log *logger.Logger) *Machine {
	m := &Machine{cfg: cfg, log: log}
	m.fsm = fsm.NewFSM(
		string(Dormant),
		fsm.Events{
			{Name: evWake, Src: []string{string(Dormant)}, Dst: string(Listening)},
			{Name: evEngage, Src: []string{string(Listening)}, Dst: string(Speaking)},
			{Name: evFinish, Src: []string{string(Speaking)}, Dst: string(Listening)},
			{Name: evSleep, Src: []string{string(Listening)}, Dst: string(Dormant)},
			{Name: evFail, Src: []string{string(Dormant), string(Listening), string(Speaking)}, Dst: string(Dormant)},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				log.Debugf("bot state %s -> %s (%s)", e.Src, e.Dst, e.Event)
			},
		},
	)
	return m
}

func (m *Machine) State() State { return State(m.fsm.Current()) }

// ActiveSpeaker returns the speaker currently holding the floor, or Nil.
func (m *Machine) ActiveSpeaker() uuid.UUID { return m.activeSpeaker }

// OnVerdict applies a classified utterance and decides what the engine
// should do with it. While Speaking everything is ignored here; barge-in is
// handled by the lifecycle controller's interrupt flag instead.
func (m *Machine) OnVerdict(speaker uuid.UUID, v intent.Verdict, now time.Time) Decision {
	switch m.State() {
	case Speaking:
		return DecisionIgnore

	case Dormant:
		followUp := m.inFollowUpWindow(now) && speaker == m.lastRespondedTo
		if !v.WakeWordDetected && !followUp {
			return DecisionIgnore
		}
		if v.StopRequested {
			return DecisionIgnore
		}
		if err := m.fsm.Event(context.Background(), evWake); err != nil {
			m.log.Warnf("wake transition refused: %v", err)
			return DecisionIgnore
		}
		m.activeSpeaker = speaker
		m.lastInteractionAt = now
		if v.HasActionableContent {
			return DecisionRespond
		}
		return DecisionAcknowledge

	case Listening:
		// only the speaker who woke the bot holds the floor
		if m.activeSpeaker != uuid.Nil && speaker != m.activeSpeaker {
			return DecisionIgnore
		}
		if m.activeSpeaker == uuid.Nil {
			m.activeSpeaker = speaker
		}
		if v.StopRequested {
			m.sleep()
			return DecisionSleep
		}
		if v.HasActionableContent {
			m.lastInteractionAt = now
			return DecisionRespond
		}
		if v.WakeWordDetected {
			// wake word with nothing behind it: acknowledge, stay listening
			m.lastInteractionAt = now
			return DecisionAcknowledge
		}
		return DecisionIgnore
	}
	return DecisionIgnore
}

// BeginSpeaking transitions Listening -> Speaking. Fails if not Listening,
// which also guarantees Speaking is never re-entered.
func (m *Machine) BeginSpeaking() error {
	return m.fsm.Event(context.Background(), evEngage)
}

// FinishSpeaking records a normally-completed utterance and returns the bot
// to Listening, opening the follow-up window for the active speaker.
func (m *Machine) FinishSpeaking(now time.Time) {
	if err := m.fsm.Event(context.Background(), evFinish); err != nil {
		m.log.Warnf("finish transition refused: %v", err)
		return
	}
	m.lastResponseAt = now
	m.lastRespondedTo = m.activeSpeaker
	m.lastInteractionAt = now
}

// Fail forces the machine back to Dormant from any state and clears the
// active speaker, so a broken pipeline can never strand the room.
func (m *Machine) Fail() {
	_ = m.fsm.Event(context.Background(), evFail)
	m.activeSpeaker = uuid.Nil
}

// CheckInactivity drops back to Dormant when Listening has seen no
// qualifying interaction for the configured window. Returns true when a
// transition happened.
func (m *Machine) CheckInactivity(now time.Time) bool {
	if m.State() != Listening {
		return false
	}
	timeout := time.Duration(m.cfg.InactivityTimeoutMs) * time.Millisecond
	if m.lastInteractionAt.IsZero() || now.Sub(m.lastInteractionAt) < timeout {
		return false
	}
	m.sleep()
	return true
}

// Touch records a qualifying interaction without a state change.
func (m *Machine) Touch(now time.Time) { m.lastInteractionAt = now }

// SpeakerLeft releases the floor if the departing speaker held it.
func (m *Machine) SpeakerLeft(speaker uuid.UUID) {
	if m.activeSpeaker == speaker {
		m.activeSpeaker = uuid.Nil
	}
}

func (m *Machine) sleep() {
	if err := m.fsm.Event(context.Background(), evSleep); err != nil {
		m.log.Warnf("sleep transition refused: %v", err)
		return
	}
	m.activeSpeaker = uuid.Nil
}

func (m *Machine) inFollowUpWindow(now time.Time) bool {
	if m.lastResponseAt.IsZero() {
		return false
	}
	window := time.Duration(m.cfg.FollowUpWindowMs) * time.Millisecond
	return now.Sub(m.lastResponseAt) < window
}
