package minigame

import (
	"context"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/Amund211/liveops/internal/domain"
)

const (
	memoryLeadPause     = 1000 * time.Millisecond
	memoryDwell         = 800 * time.Millisecond
	memoryTrailingPause = 2000 * time.Millisecond

	memoryXP              = 50
	memoryScorePerLevel   = 50
	memoryExtraDigits     = 2
	memoryRevealReadyText = "Get ready..."
	memoryPromptText      = "?"
)

type MemoryResult struct {
	Correct bool
	// Level played
	Level int
	// Score awarded, zero on a mismatch
	Score int
}

type Memory struct {
	state   domain.MemoryState
	timers  Timers
	rng     *rand.Rand
	granter XPGranter
	emitter EventEmitter
	nowFunc func() time.Time
}

func NewMemory(timers Timers, rng *rand.Rand, granter XPGranter, emitter EventEmitter, nowFunc func() time.Time) *Memory {
	return &Memory{
		state:   domain.NewMemoryState(),
		timers:  timers,
		rng:     rng,
		granter: granter,
		emitter: emitter,
		nowFunc: nowFunc,
	}
}

func (m *Memory) State() domain.MemoryState {
	return m.state.Clone()
}

func (m *Memory) Contribute(facts *domain.Facts) {
	facts.Memory = m.state.Clone()
}

// What the reveal currently displays
func (m *Memory) Reveal() string {
	return m.state.Shown
}

// Generate a new sequence and start revealing it.
// Returns ErrGameBusy, leaving the current round untouched, if a round is in progress.
func (m *Memory) Start(ctx context.Context) error {
	if m.state.Phase != domain.MemoryIdle {
		return domain.ErrGameBusy
	}

	sequence := make([]int, m.state.Level+memoryExtraDigits)
	for i := range sequence {
		sequence[i] = m.rng.IntN(9) + 1
	}

	m.state.Sequence = sequence
	m.state.Phase = domain.MemoryRevealing
	m.state.Shown = memoryRevealReadyText

	m.timers.After(memoryLeadPause, func() {
		m.showPrefix(1)
	})

	return nil
}

func (m *Memory) showPrefix(length int) {
	digits := make([]string, length)
	for i, digit := range m.state.Sequence[:length] {
		digits[i] = strconv.Itoa(digit)
	}
	m.state.Shown = strings.Join(digits, " ")

	if length < len(m.state.Sequence) {
		m.timers.After(memoryDwell, func() {
			m.showPrefix(length + 1)
		})
		return
	}

	m.timers.After(memoryDwell+memoryTrailingPause, func() {
		m.state.Phase = domain.MemoryAwaitingInput
		m.state.Shown = memoryPromptText
	})
}

// Compare the input, ignoring whitespace, against the sequence.
// Returns ErrNoSequence unless the reveal has finished.
func (m *Memory) Submit(ctx context.Context, input string) (MemoryResult, error) {
	if m.state.Phase != domain.MemoryAwaitingInput {
		return MemoryResult{}, domain.ErrNoSequence
	}

	normalized := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, input)

	level := m.state.Level
	sequence := slices.Clone(m.state.Sequence)
	correct := normalized == m.state.SequenceString()

	m.state.Phase = domain.MemoryIdle
	m.state.Shown = ""

	if !correct {
		m.state.Level = max(level-1, 1)
		return MemoryResult{Correct: false, Level: level}, nil
	}

	score := level * memoryScorePerLevel
	m.state.Score += score
	m.state.Level++
	m.granter.AddScore(score)
	m.granter.ApplyXP(ctx, memoryXP)

	m.emitter.Emit(ctx, domain.NewEvent(domain.EventMemorySuccess, m.granter.PlayerID(), m.nowFunc(), map[string]any{
		"level":      level,
		"deltaScore": score,
		"sequence":   sequence,
	}))

	return MemoryResult{Correct: true, Level: level, Score: score}, nil
}
