package progression

import (
	"context"
	"time"

	"github.com/Amund211/liveops/internal/domain"
)

// Receives every XP gain with the amount that was granted, before any level-up rounding
type XPReporter interface {
	ReportXP(ctx context.Context, event domain.DomainEvent)
}

type Notifier interface {
	OnLevelUp(level int)
	OnAchievement(achievement domain.Achievement)
}

// GameStateSource contributes the state of one game to the facts achievements are evaluated against
type GameStateSource interface {
	Contribute(facts *domain.Facts)
}

// Engine owns the PlayerState. It is not safe for concurrent use, callers serialize access.
type Engine struct {
	player   domain.PlayerState
	games    []GameStateSource
	reporter XPReporter
	notifier Notifier
	nowFunc  func() time.Time
}

func NewEngine(player domain.PlayerState, reporter XPReporter, notifier Notifier, nowFunc func() time.Time) *Engine {
	return &Engine{
		player:   player.Clone(),
		reporter: reporter,
		notifier: notifier,
		nowFunc:  nowFunc,
	}
}

func (e *Engine) AddGame(source GameStateSource) {
	e.games = append(e.games, source)
}

func (e *Engine) PlayerID() string {
	return e.player.ID
}

func (e *Engine) Player() domain.PlayerState {
	return e.player.Clone()
}

func (e *Engine) AddScore(delta int) {
	e.player.TotalScore += delta
}

// Add XP, levelling up at most once. XP beyond the threshold is discarded.
func (e *Engine) ApplyXP(ctx context.Context, amount int) {
	if amount < 0 {
		panic("logic error: negative xp")
	}

	e.player.XP += amount
	if e.player.XP >= domain.LevelThreshold(e.player.Level) {
		e.player.Level++
		e.player.XP = 0
		e.notifier.OnLevelUp(e.player.Level)
		e.EvaluateAchievements()
	}

	e.reporter.ReportXP(ctx, domain.NewEvent(
		domain.EventXPGain,
		e.player.ID,
		e.nowFunc(),
		map[string]any{"deltaXp": amount},
	))
}

// Unlock every achievement whose predicate holds. Returns the newly unlocked ones.
func (e *Engine) EvaluateAchievements() []domain.Achievement {
	facts := domain.Facts{Player: e.player.Clone()}
	for _, game := range e.games {
		game.Contribute(&facts)
	}

	unlocked := []domain.Achievement{}
	for _, achievement := range domain.Achievements {
		if e.player.HasAchievement(achievement.ID) {
			continue
		}
		if !achievement.Unlocked(facts) {
			continue
		}
		e.player.Unlock(achievement.ID)
		unlocked = append(unlocked, achievement)
		e.notifier.OnAchievement(achievement)
	}

	return unlocked
}

// Adopt progression stored by the progression service. Achievements are merged, never revoked.
func (e *Engine) Restore(progress domain.Progress) {
	if progress.Level < 1 {
		return
	}

	e.player.Level = progress.Level
	e.player.XP = min(max(progress.XP, 0), domain.LevelThreshold(progress.Level)-1)

	for _, id := range progress.Achievements {
		if _, ok := domain.AchievementByID(id); !ok {
			continue
		}
		e.player.Unlock(id)
	}
}
