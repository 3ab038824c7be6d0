package domain

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

type ClickerState struct {
	Score       int
	ClickCount  int
	Multiplier  int
	UpgradeCost int
}

func NewClickerState() ClickerState {
	return ClickerState{
		Score:       0,
		ClickCount:  0,
		Multiplier:  1,
		UpgradeCost: 100,
	}
}

type MemoryPhase int

const (
	MemoryIdle MemoryPhase = iota
	MemoryRevealing
	MemoryAwaitingInput
)

func (p MemoryPhase) String() string {
	switch p {
	case MemoryIdle:
		return "idle"
	case MemoryRevealing:
		return "revealing"
	case MemoryAwaitingInput:
		return "awaiting_input"
	default:
		return fmt.Sprintf("<invalid memory phase>(%d)", int(p))
	}
}

type MemoryState struct {
	Level    int
	Score    int
	Sequence []int
	Phase    MemoryPhase
	// Shown is what the reveal currently displays
	Shown string
}

func NewMemoryState() MemoryState {
	return MemoryState{
		Level:    1,
		Score:    0,
		Sequence: []int{},
		Phase:    MemoryIdle,
	}
}

// SequenceString is the digits of the sequence without separators, as the player types them
func (m MemoryState) SequenceString() string {
	var sb strings.Builder
	for _, digit := range m.Sequence {
		sb.WriteString(strconv.Itoa(digit))
	}
	return sb.String()
}

func (m MemoryState) Clone() MemoryState {
	clone := m
	clone.Sequence = slices.Clone(m.Sequence)
	return clone
}

type ReactionPhase int

const (
	ReactionIdle ReactionPhase = iota
	ReactionArmed
	ReactionTargetShown
)

func (p ReactionPhase) String() string {
	switch p {
	case ReactionIdle:
		return "idle"
	case ReactionArmed:
		return "armed"
	case ReactionTargetShown:
		return "target_shown"
	default:
		return fmt.Sprintf("<invalid reaction phase>(%d)", int(p))
	}
}

type ReactionState struct {
	BestTime  time.Duration
	HasBest   bool
	Times     []time.Duration
	Phase     ReactionPhase
	StartTime time.Time
}

func NewReactionState() ReactionState {
	return ReactionState{
		Times: []time.Duration{},
		Phase: ReactionIdle,
	}
}

// Waiting is true while the target is shown and a click will be timed
func (r ReactionState) Waiting() bool {
	return r.Phase == ReactionTargetShown
}

// Average returns the floored mean reaction time, false if nothing has been recorded
func (r ReactionState) Average() (time.Duration, bool) {
	if len(r.Times) == 0 {
		return 0, false
	}
	var total time.Duration
	for _, t := range r.Times {
		total += t
	}
	avgMillis := total.Milliseconds() / int64(len(r.Times))
	return time.Duration(avgMillis) * time.Millisecond, true
}

func (r ReactionState) Clone() ReactionState {
	clone := r
	clone.Times = slices.Clone(r.Times)
	return clone
}
