package domaintest

import (
	"slices"
	"sync"
	"testing"
	"time"
)

// MockedTime is a manually advanced clock. Timers created with After fire when Advance passes their deadline.
type MockedTime struct {
	t           *testing.T
	currentTime time.Time
	timers      []mockedTimer
	lock        sync.Mutex
}

type mockedTimer struct {
	expiresAt time.Time
	ch        chan time.Time
}

func NewMockedTime(t *testing.T, start time.Time) *MockedTime {
	return &MockedTime{
		t:           t,
		currentTime: start,
		timers:      []mockedTimer{},
	}
}

func (m *MockedTime) Now() time.Time {
	m.lock.Lock()
	defer m.lock.Unlock()

	return m.currentTime
}

func (m *MockedTime) After(d time.Duration) <-chan time.Time {
	m.lock.Lock()
	defer m.lock.Unlock()

	ch := make(chan time.Time, 1)
	if d <= 0 {
		ch <- m.currentTime
		close(ch)
		return ch
	}

	m.timers = append(m.timers, mockedTimer{
		ch:        ch,
		expiresAt: m.currentTime.Add(d),
	})

	return ch
}

// PendingTimers returns the number of timers that have not fired yet
func (m *MockedTime) PendingTimers() int {
	m.lock.Lock()
	defer m.lock.Unlock()

	return len(m.timers)
}

func (m *MockedTime) Advance(d time.Duration) {
	m.t.Helper()

	m.lock.Lock()
	defer m.lock.Unlock()

	m.currentTime = m.currentTime.Add(d)

	// Fire in deadline order so callbacks observe the same ordering as a real clock
	slices.SortStableFunc(m.timers, func(a, b mockedTimer) int {
		return a.expiresAt.Compare(b.expiresAt)
	})

	var remainingTimers []mockedTimer
	for _, timer := range m.timers {
		if !m.currentTime.Before(timer.expiresAt) {
			timer.ch <- m.currentTime
			close(timer.ch)
		} else {
			remainingTimers = append(remainingTimers, timer)
		}
	}
	m.timers = remainingTimers
}
