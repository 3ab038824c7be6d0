package minigame

import (
	"context"
	"time"

	"github.com/Amund211/liveops/internal/domain"
)

const (
	clickBaseValue = 10
	clickXP        = 10
)

type Clicker struct {
	state   domain.ClickerState
	granter XPGranter
	emitter EventEmitter
	nowFunc func() time.Time
}

func NewClicker(granter XPGranter, emitter EventEmitter, nowFunc func() time.Time) *Clicker {
	return &Clicker{
		state:   domain.NewClickerState(),
		granter: granter,
		emitter: emitter,
		nowFunc: nowFunc,
	}
}

func (c *Clicker) State() domain.ClickerState {
	return c.state
}

func (c *Clicker) Contribute(facts *domain.Facts) {
	facts.Clicker = c.state
}

// Returns the score gained
func (c *Clicker) Click(ctx context.Context) int {
	delta := clickBaseValue * c.state.Multiplier

	c.state.Score += delta
	c.state.ClickCount++
	c.granter.AddScore(delta)
	c.granter.ApplyXP(ctx, clickXP)

	c.emitter.Emit(ctx, domain.NewEvent(domain.EventClickerClick, c.granter.PlayerID(), c.nowFunc(), map[string]any{
		"deltaScore":  delta,
		"totalClicks": c.state.ClickCount,
		"multiplier":  c.state.Multiplier,
	}))

	return delta
}

// Returns false, changing nothing, if the score doesn't cover the cost
func (c *Clicker) BuyUpgrade() bool {
	if c.state.Score < c.state.UpgradeCost {
		return false
	}

	c.state.Score -= c.state.UpgradeCost
	c.state.Multiplier++
	c.state.UpgradeCost = c.state.UpgradeCost * 3 / 2
	return true
}
