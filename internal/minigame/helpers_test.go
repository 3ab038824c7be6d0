package minigame

import (
	"context"
	"slices"
	"time"

	"github.com/Amund211/liveops/internal/domain"
	"github.com/Amund211/liveops/internal/scheduler"
)

var epoch = time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)

type manualTimer struct {
	at      time.Duration
	task    func()
	stopped bool
}

func (t *manualTimer) Stop() {
	t.stopped = true
}

// Runs timer tasks synchronously when advanced, the way the session loop would run them
type manualTimers struct {
	elapsed time.Duration
	pending []*manualTimer
}

func (m *manualTimers) After(d time.Duration, task func()) scheduler.Timer {
	t := &manualTimer{at: m.elapsed + d, task: task}
	m.pending = append(m.pending, t)
	return t
}

func (m *manualTimers) Now() time.Time {
	return epoch.Add(m.elapsed)
}

func (m *manualTimers) Advance(d time.Duration) {
	target := m.elapsed + d
	for {
		index := -1
		for i, t := range m.pending {
			if t.at <= target && (index == -1 || t.at < m.pending[index].at) {
				index = i
			}
		}
		if index == -1 {
			break
		}

		t := m.pending[index]
		m.pending = slices.Delete(m.pending, index, index+1)
		m.elapsed = t.at
		if !t.stopped {
			t.task()
		}
	}
	m.elapsed = target
}

type mockedGranter struct {
	score int
	xp    []int
}

func (g *mockedGranter) PlayerID() string {
	return "player_1"
}

func (g *mockedGranter) AddScore(delta int) {
	g.score += delta
}

func (g *mockedGranter) ApplyXP(ctx context.Context, amount int) {
	g.xp = append(g.xp, amount)
}

type mockedEmitter struct {
	events []domain.DomainEvent
}

func (e *mockedEmitter) Emit(ctx context.Context, event domain.DomainEvent) {
	e.events = append(e.events, event)
}
