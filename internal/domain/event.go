package domain

import (
	"maps"
	"time"
)

type EventType string

const (
	EventClickerClick    EventType = "clicker_click"
	EventMemorySuccess   EventType = "memory_success"
	EventReactionSuccess EventType = "reaction_success"
	EventXPGain          EventType = "xp_gain"
)

// DomainEvent describes one gameplay action. Build it with NewEvent and don't mutate the payload.
type DomainEvent struct {
	Type       EventType
	PlayerID   string
	OccurredAt time.Time
	Payload    map[string]any
}

func NewEvent(eventType EventType, playerID string, occurredAt time.Time, payload map[string]any) DomainEvent {
	if payload == nil {
		payload = map[string]any{}
	}
	return DomainEvent{
		Type:       eventType,
		PlayerID:   playerID,
		OccurredAt: occurredAt,
		Payload:    maps.Clone(payload),
	}
}

// The collaborators disagree on timestamp units, so each wire format picks one of these explicitly.

// UnixSeconds is a timestamp in whole seconds since the epoch
type UnixSeconds int64

func UnixSecondsOf(t time.Time) UnixSeconds {
	return UnixSeconds(t.Unix())
}

func (s UnixSeconds) Time() time.Time {
	return time.Unix(int64(s), 0)
}

// UnixMillis is a timestamp in milliseconds since the epoch
type UnixMillis int64

func UnixMillisOf(t time.Time) UnixMillis {
	return UnixMillis(t.UnixMilli())
}

func (ms UnixMillis) Time() time.Time {
	return time.UnixMilli(int64(ms))
}
