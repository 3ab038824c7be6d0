package minigame

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/Amund211/liveops/internal/domain"
)

const (
	reactionMinDelay    = 2000 * time.Millisecond
	reactionDelaySpread = 3000 * time.Millisecond

	reactionMinXP = 10
)

type ReactionResult struct {
	Time    time.Duration
	NewBest bool
	XP      int
}

type Reaction struct {
	state   domain.ReactionState
	timers  Timers
	rng     *rand.Rand
	granter XPGranter
	emitter EventEmitter
	nowFunc func() time.Time
}

func NewReaction(timers Timers, rng *rand.Rand, granter XPGranter, emitter EventEmitter, nowFunc func() time.Time) *Reaction {
	return &Reaction{
		state:   domain.NewReactionState(),
		timers:  timers,
		rng:     rng,
		granter: granter,
		emitter: emitter,
		nowFunc: nowFunc,
	}
}

func (r *Reaction) State() domain.ReactionState {
	return r.state.Clone()
}

func (r *Reaction) Contribute(facts *domain.Facts) {
	facts.Reaction = r.state.Clone()
}

// Arm the game. The target is shown after a delay uniform in [2s, 5s).
// Returns ErrGameBusy if a round is in progress.
func (r *Reaction) Start(ctx context.Context) error {
	if r.state.Phase != domain.ReactionIdle {
		return domain.ErrGameBusy
	}

	delay := reactionMinDelay + time.Duration(r.rng.Int64N(int64(reactionDelaySpread)))
	r.state.Phase = domain.ReactionArmed

	r.timers.After(delay, func() {
		r.state.StartTime = r.nowFunc()
		r.state.Phase = domain.ReactionTargetShown
	})

	return nil
}

// XP for a reaction time, max(10, floor(50 - ms/20))
func reactionXP(reactionTime time.Duration) int {
	ms := float64(reactionTime.Milliseconds())
	return max(reactionMinXP, int(math.Floor(50-ms/20)))
}

// Register a click on the target. Returns ErrNotArmed, recording nothing, unless the target is shown.
func (r *Reaction) Hit(ctx context.Context) (ReactionResult, error) {
	if !r.state.Waiting() {
		return ReactionResult{}, domain.ErrNotArmed
	}

	reactionTime := r.nowFunc().Sub(r.state.StartTime).Truncate(time.Millisecond)

	r.state.Times = append(r.state.Times, reactionTime)
	newBest := !r.state.HasBest || reactionTime < r.state.BestTime
	if newBest {
		r.state.BestTime = reactionTime
		r.state.HasBest = true
	}
	r.state.Phase = domain.ReactionIdle
	r.state.StartTime = time.Time{}

	xp := reactionXP(reactionTime)
	r.granter.ApplyXP(ctx, xp)

	r.emitter.Emit(ctx, domain.NewEvent(domain.EventReactionSuccess, r.granter.PlayerID(), r.nowFunc(), map[string]any{
		"reactionTime": reactionTime.Milliseconds(),
		"bestTime":     r.state.BestTime.Milliseconds(),
	}))

	return ReactionResult{Time: reactionTime, NewBest: newBest, XP: xp}, nil
}
