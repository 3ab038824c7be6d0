package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/Amund211/liveops/internal/domain"
	"github.com/Amund211/liveops/internal/logging"
	"github.com/Amund211/liveops/internal/minigame"
	"github.com/Amund211/liveops/internal/progression"
	"github.com/Amund211/liveops/internal/reporting"
	"github.com/Amund211/liveops/internal/scheduler"
)

var (
	ErrSessionNotStarted     = errors.New("session not started")
	ErrSessionAlreadyStarted = errors.New("session already started")
	ErrInvalidView           = errors.New("invalid view")
)

type View string

const (
	ViewDashboard   View = "dashboard"
	ViewGames       View = "games"
	ViewLeaderboard View = "leaderboard"
	ViewProgression View = "progression"
	ViewAdmin       View = "admin"
)

var AllViews = []View{ViewDashboard, ViewGames, ViewLeaderboard, ViewProgression, ViewAdmin}

func ParseView(view string) (View, error) {
	if !slices.Contains(AllViews, View(view)) {
		return "", fmt.Errorf("%w: %q", ErrInvalidView, view)
	}
	return View(view), nil
}

type Deps struct {
	Loop *scheduler.Loop

	ResolveIdentity ResolveIdentity
	GetProgress     GetProgress
	SubmitXP        SubmitXP
	DispatchEvent   DispatchEvent
	GetLeaderboard  GetLeaderboard
	GetRank         GetRank
	CheckHealth     CheckHealth

	LeaderboardLimit    int
	LeaderboardInterval time.Duration
	DashboardInterval   time.Duration
	HealthInterval      time.Duration

	NowFunc func() time.Time
	Rand    *rand.Rand
}

// Session is one player's run of the games. All state below the loop is owned by the loop
// and only touched from loop tasks.
type Session struct {
	deps Deps
	loop *scheduler.Loop

	started  bool
	identity domain.Identity
	engine   *progression.Engine
	clicker  *minigame.Clicker
	memory   *minigame.Memory
	reaction *minigame.Reaction

	view        View
	rank        *int
	leaderboard LeaderboardView
	services    []domain.ServiceStatus
	refreshing  map[View]bool

	notifications []Notification
	eventLog      []EventLogEntry

	subscribers      map[int]chan Snapshot
	nextSubscriberID int
}

func NewSession(deps Deps) *Session {
	return &Session{
		deps:          deps,
		loop:          deps.Loop,
		view:          ViewDashboard,
		refreshing:    map[View]bool{},
		services:      []domain.ServiceStatus{},
		notifications: []Notification{},
		eventLog:      []EventLogEntry{},
		subscribers:   map[int]chan Snapshot{},
	}
}

// Start resolves the player, restores stored progression and starts the pollers.
// The loop must be running.
func (s *Session) Start(ctx context.Context) error {
	identity := s.deps.ResolveIdentity(ctx)
	ctx = logging.AddMetaToContext(ctx, slog.String("playerID", identity.PlayerID))

	var stored *domain.Progress
	if !identity.Offline {
		progress, err := s.deps.GetProgress(ctx, identity.PlayerID)
		switch {
		case errors.Is(err, domain.ErrPlayerNotFound):
			logging.FromContext(ctx).InfoContext(ctx, "No stored progression, starting a new player")
		case err != nil:
			logging.FromContext(ctx).WarnContext(ctx, "Could not restore progression, starting fresh", "error", err.Error())
		default:
			stored = &progress
		}
	}

	var startErr error
	err := s.loop.Do(ctx, func() {
		if s.started {
			startErr = ErrSessionAlreadyStarted
			return
		}

		s.identity = identity
		s.engine = progression.NewEngine(domain.NewPlayerState(identity.PlayerID), s, s, s.deps.NowFunc)
		if stored != nil {
			s.engine.Restore(*stored)
		}

		timers := loopTimers{session: s}
		s.clicker = minigame.NewClicker(s.engine, s, s.deps.NowFunc)
		s.memory = minigame.NewMemory(timers, s.deps.Rand, s.engine, s, s.deps.NowFunc)
		s.reaction = minigame.NewReaction(timers, s.deps.Rand, s.engine, s, s.deps.NowFunc)
		s.engine.AddGame(s.clicker)
		s.engine.AddGame(s.memory)
		s.engine.AddGame(s.reaction)
		s.engine.EvaluateAchievements()

		s.started = true

		s.loop.Every(s.deps.LeaderboardInterval, func() { s.refreshIfActive(ViewLeaderboard) })
		s.loop.Every(s.deps.DashboardInterval, func() { s.refreshIfActive(ViewDashboard) })
		s.loop.Every(s.deps.HealthInterval, func() { s.refreshIfActive(ViewAdmin) })

		message := "Session started"
		if identity.Offline {
			message = "Session started in offline mode"
		}
		s.notify(NotificationInfo, message)

		s.refresh(s.view)
		s.broadcast()
	})
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	if startErr != nil {
		return startErr
	}

	logging.FromContext(ctx).InfoContext(ctx, "Session started", "offline", identity.Offline)
	return nil
}

// Stop cancels the pollers and every pending game timer, and closes all subscriptions
func (s *Session) Stop(ctx context.Context) {
	err := s.loop.Do(ctx, func() {
		for id, ch := range s.subscribers {
			delete(s.subscribers, id)
			close(ch)
		}
	})
	if err != nil {
		logging.FromContext(ctx).WarnContext(ctx, "Could not close subscriptions before stopping", "error", err.Error())
	}
	s.loop.Stop()
}

// Run task on the loop once the session has started
func (s *Session) onLoop(ctx context.Context, task func() error) error {
	var taskErr error
	err := s.loop.Do(ctx, func() {
		if !s.started {
			taskErr = ErrSessionNotStarted
			return
		}
		taskErr = task()
	})
	if err != nil {
		return err
	}
	return taskErr
}

// Run a player action on the loop, then evaluate achievements and publish the new state
func (s *Session) act(ctx context.Context, action func() error) error {
	return s.onLoop(ctx, func() error {
		err := action()
		s.engine.EvaluateAchievements()
		s.broadcast()
		return err
	})
}

func (s *Session) Click(ctx context.Context) (int, error) {
	var delta int
	err := s.act(ctx, func() error {
		delta = s.clicker.Click(s.actionContext(ctx))
		return nil
	})
	return delta, err
}

// BuyUpgrade returns false if the clicker score does not cover the upgrade cost
func (s *Session) BuyUpgrade(ctx context.Context) (bool, error) {
	var bought bool
	err := s.act(ctx, func() error {
		bought = s.clicker.BuyUpgrade()
		if bought {
			s.notify(NotificationSuccess, fmt.Sprintf("Multiplier increased to x%d", s.clicker.State().Multiplier))
		}
		return nil
	})
	return bought, err
}

func (s *Session) StartMemory(ctx context.Context) error {
	return s.act(ctx, func() error {
		return s.memory.Start(s.actionContext(ctx))
	})
}

func (s *Session) SubmitMemory(ctx context.Context, answer string) (minigame.MemoryResult, error) {
	var result minigame.MemoryResult
	err := s.act(ctx, func() error {
		var err error
		result, err = s.memory.Submit(s.actionContext(ctx), answer)
		if err != nil {
			return err
		}
		if result.Correct {
			s.notify(NotificationSuccess, fmt.Sprintf("Correct! Memory level %d", s.memory.State().Level))
		} else {
			s.notify(NotificationError, "Wrong sequence, try again")
		}
		return nil
	})
	return result, err
}

func (s *Session) StartReaction(ctx context.Context) error {
	return s.act(ctx, func() error {
		return s.reaction.Start(s.actionContext(ctx))
	})
}

func (s *Session) HitReaction(ctx context.Context) (minigame.ReactionResult, error) {
	var result minigame.ReactionResult
	err := s.act(ctx, func() error {
		var err error
		result, err = s.reaction.Hit(s.actionContext(ctx))
		if err != nil {
			return err
		}
		if result.NewBest {
			s.notify(NotificationSuccess, "New best time!")
		}
		return nil
	})
	return result, err
}

// SetView switches the active view and refreshes its data immediately
func (s *Session) SetView(ctx context.Context, view string) error {
	parsed, err := ParseView(view)
	if err != nil {
		return err
	}
	return s.act(ctx, func() error {
		s.view = parsed
		s.refresh(parsed)
		return nil
	})
}

func (s *Session) Snapshot(ctx context.Context) (Snapshot, error) {
	var snapshot Snapshot
	err := s.onLoop(ctx, func() error {
		snapshot = s.snapshot()
		return nil
	})
	return snapshot, err
}

// Subscribe to snapshots. The current state is delivered immediately. Slow subscribers
// only see the latest state. The channel is closed by cancel or when the session stops.
func (s *Session) Subscribe(ctx context.Context) (<-chan Snapshot, func(), error) {
	ch := make(chan Snapshot, 1)
	var id int
	err := s.onLoop(ctx, func() error {
		id = s.nextSubscriberID
		s.nextSubscriberID++
		s.subscribers[id] = ch
		ch <- s.snapshot()
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.loop.Post(func() {
				if subscriber, ok := s.subscribers[id]; ok {
					delete(s.subscribers, id)
					close(subscriber)
				}
			})
		})
	}
	return ch, cancel, nil
}

func (s *Session) snapshot() Snapshot {
	player := s.engine.Player()
	clicker := s.clicker.State()
	memory := s.memory.State()
	reaction := s.reaction.State()

	return Snapshot{
		PlayerID:  s.identity.PlayerID,
		Offline:   s.identity.Offline,
		View:      s.view,
		Player:    player,
		Progress:  player.Progress(),
		Threshold: domain.LevelThreshold(player.Level),

		Clicker:   clicker,
		Memory:    newMemoryView(memory),
		Reaction:  newReactionView(reaction),
		Dashboard: newDashboardView(player, clicker, memory, reaction, s.rank),
		Leaderboard: LeaderboardView{
			Entries:     slices.Clone(s.leaderboard.Entries),
			Unavailable: s.leaderboard.Unavailable,
		},
		Services:     slices.Clone(s.services),
		Achievements: newAchievementViews(player),

		Notifications: slices.Clone(s.notifications),
		EventLog:      slices.Clone(s.eventLog),
	}
}

// Publish the current state to every subscriber, replacing any state they have not read yet
func (s *Session) broadcast() {
	if len(s.subscribers) == 0 || !s.started {
		return
	}

	snapshot := s.snapshot()
	for _, ch := range s.subscribers {
		select {
		case <-ch:
		default:
		}
		ch <- snapshot
	}
}

func (s *Session) notify(kind NotificationKind, message string) {
	s.notifications = prependCapped(s.notifications, Notification{
		Kind:    kind,
		Message: message,
		At:      s.deps.NowFunc(),
	}, maxNotifications)
}

func (s *Session) logEvent(eventType domain.EventType, delivered bool) {
	message := fmt.Sprintf("event sent: %s", eventType)
	if !delivered {
		message = fmt.Sprintf("event failed: %s", eventType)
	}
	s.eventLog = prependCapped(s.eventLog, EventLogEntry{
		EventType: eventType,
		Delivered: delivered,
		Message:   message,
		At:        s.deps.NowFunc(),
	}, maxEventLogEntries)
}

// Context for work started by an action. Outbound calls outlive the request that caused them,
// so they run on the loop context with the request's logger.
func (s *Session) actionContext(ctx context.Context) context.Context {
	return logging.AddToContext(s.loop.Context(), logging.FromContext(ctx))
}

// Context for background work, tagged with the player
func (s *Session) backgroundContext(ctx context.Context) context.Context {
	ctx = logging.AddMetaToContext(ctx, slog.String("playerID", s.identity.PlayerID))
	return reporting.SetPlayerIDInContext(ctx, s.identity.PlayerID)
}

// Emit dispatches a game event off the loop and records the outcome in the event log
func (s *Session) Emit(ctx context.Context, event domain.DomainEvent) {
	ctx = s.backgroundContext(ctx)
	s.loop.Go(func(context.Context) {
		err := s.deps.DispatchEvent(ctx, event)
		if err != nil {
			logging.FromContext(ctx).WarnContext(ctx, "Event was not delivered", "eventType", event.Type, "error", err.Error())
		}
		s.loop.Post(func() {
			s.logEvent(event.Type, err == nil)
			s.broadcast()
		})
	})
}

// ReportXP mirrors xp gains to the progression service. Failures are not retried.
func (s *Session) ReportXP(ctx context.Context, event domain.DomainEvent) {
	ctx = s.backgroundContext(ctx)
	s.loop.Go(func(context.Context) {
		err := s.deps.SubmitXP(ctx, event)
		if err != nil {
			logging.FromContext(ctx).WarnContext(ctx, "XP was not mirrored", "error", err.Error())
		}
	})
}

func (s *Session) OnLevelUp(level int) {
	s.notify(NotificationSuccess, fmt.Sprintf("Level up! You are now level %d", level))
}

func (s *Session) OnAchievement(achievement domain.Achievement) {
	s.notify(NotificationSuccess, fmt.Sprintf("Achievement unlocked: %s", achievement.Name))
}

func (s *Session) refreshIfActive(view View) {
	if s.view != view {
		return
	}
	s.refresh(view)
}

// Fetch the data shown in view off the loop. At most one refresh per view is in flight.
func (s *Session) refresh(view View) {
	if s.refreshing[view] {
		return
	}

	ctx := s.backgroundContext(s.loop.Context())
	playerID := s.identity.PlayerID

	var fetch func(ctx context.Context) func()
	switch view {
	case ViewDashboard:
		fetch = func(ctx context.Context) func() {
			rank, err := s.deps.GetRank(ctx, playerID)
			return func() {
				if err != nil {
					s.rank = nil
					return
				}
				s.rank = &rank
			}
		}
	case ViewLeaderboard:
		limit := s.deps.LeaderboardLimit
		fetch = func(ctx context.Context) func() {
			entries, err := s.deps.GetLeaderboard(ctx, limit)
			return func() {
				if err != nil {
					s.leaderboard = LeaderboardView{Entries: nil, Unavailable: true}
					return
				}
				s.leaderboard = LeaderboardView{Entries: entries, Unavailable: false}
			}
		}
	case ViewProgression:
		if s.identity.Offline {
			return
		}
		fetch = func(ctx context.Context) func() {
			progress, err := s.deps.GetProgress(ctx, playerID)
			return func() {
				if err != nil {
					return
				}
				s.adoptProgress(progress)
			}
		}
	case ViewAdmin:
		fetch = func(ctx context.Context) func() {
			statuses := s.deps.CheckHealth(ctx)
			return func() {
				s.services = statuses
			}
		}
	default:
		return
	}

	s.refreshing[view] = true
	s.loop.Go(func(context.Context) {
		apply := fetch(ctx)
		s.loop.Post(func() {
			s.refreshing[view] = false
			apply()
			s.broadcast()
		})
	})
}

// Adopt stored progression unless it is behind the local state. Stored achievements are always merged.
func (s *Session) adoptProgress(progress domain.Progress) {
	player := s.engine.Player()
	behind := progress.Level < player.Level || (progress.Level == player.Level && progress.XP < player.XP)
	if behind {
		progress.Level = player.Level
		progress.XP = player.XP
	}
	s.engine.Restore(progress)
	s.engine.EvaluateAchievements()
}

// Game timers run on the loop and publish the state after each phase change
type loopTimers struct {
	session *Session
}

func (t loopTimers) After(d time.Duration, task func()) scheduler.Timer {
	return t.session.loop.After(d, func() {
		task()
		t.session.broadcast()
	})
}
