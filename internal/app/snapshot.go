package app

import (
	"slices"
	"time"

	"github.com/Amund211/liveops/internal/domain"
)

const (
	maxNotifications   = 20
	maxEventLogEntries = 50
)

type NotificationKind string

const (
	NotificationSuccess NotificationKind = "success"
	NotificationError   NotificationKind = "error"
	NotificationInfo    NotificationKind = "info"
)

type Notification struct {
	Kind    NotificationKind
	Message string
	At      time.Time
}

type EventLogEntry struct {
	EventType domain.EventType
	Delivered bool
	Message   string
	At        time.Time
}

// MemoryView is the memory game as displayed. The target sequence is never exposed.
type MemoryView struct {
	Level          int
	Score          int
	Phase          domain.MemoryPhase
	Shown          string
	SequenceLength int
}

type ReactionView struct {
	BestTime   time.Duration
	HasBest    bool
	Average    time.Duration
	HasAverage bool
	Attempts   int
	Phase      domain.ReactionPhase
}

type DashboardView struct {
	GamesPlayed   int
	TotalXPGained int
	// Nil while the rank is unknown
	Rank *int
}

type LeaderboardView struct {
	Entries []domain.LeaderboardEntry
	// Unavailable is set when the last refresh failed
	Unavailable bool
}

type AchievementView struct {
	ID          domain.AchievementID
	Name        string
	Description string
	Unlocked    bool
}

// Snapshot is a copy of the display state. It shares no memory with the session.
type Snapshot struct {
	PlayerID  string
	Offline   bool
	View      View
	Player    domain.PlayerState
	Progress  float64
	Threshold int

	Clicker      domain.ClickerState
	Memory       MemoryView
	Reaction     ReactionView
	Dashboard    DashboardView
	Leaderboard  LeaderboardView
	Services     []domain.ServiceStatus
	Achievements []AchievementView

	// Newest first
	Notifications []Notification
	// Newest first
	EventLog []EventLogEntry
}

func newMemoryView(state domain.MemoryState) MemoryView {
	return MemoryView{
		Level:          state.Level,
		Score:          state.Score,
		Phase:          state.Phase,
		Shown:          state.Shown,
		SequenceLength: len(state.Sequence),
	}
}

func newReactionView(state domain.ReactionState) ReactionView {
	average, hasAverage := state.Average()
	return ReactionView{
		BestTime:   state.BestTime,
		HasBest:    state.HasBest,
		Average:    average,
		HasAverage: hasAverage,
		Attempts:   len(state.Times),
		Phase:      state.Phase,
	}
}

func newDashboardView(player domain.PlayerState, clicker domain.ClickerState, memory domain.MemoryState, reaction domain.ReactionState, rank *int) DashboardView {
	var rankCopy *int
	if rank != nil {
		r := *rank
		rankCopy = &r
	}
	return DashboardView{
		GamesPlayed:   clicker.ClickCount + memory.Level + len(reaction.Times),
		TotalXPGained: player.TotalXPGained(),
		Rank:          rankCopy,
	}
}

func newAchievementViews(player domain.PlayerState) []AchievementView {
	views := make([]AchievementView, 0, len(domain.Achievements))
	for _, achievement := range domain.Achievements {
		views = append(views, AchievementView{
			ID:          achievement.ID,
			Name:        achievement.Name,
			Description: achievement.Description,
			Unlocked:    player.HasAchievement(achievement.ID),
		})
	}
	return views
}

// Prepend item, keeping at most limit items
func prependCapped[T any](items []T, item T, limit int) []T {
	items = slices.Insert(items, 0, item)
	if len(items) > limit {
		items = items[:limit]
	}
	return items
}
