// Package minigame implements the clicker, memory sequence and reaction timer games.
//
// Games are not safe for concurrent use. They are driven from the session loop, and
// their timed phases run as loop timers.
package minigame

import (
	"context"
	"time"

	"github.com/Amund211/liveops/internal/domain"
	"github.com/Amund211/liveops/internal/scheduler"
)

type EventEmitter interface {
	Emit(ctx context.Context, event domain.DomainEvent)
}

type XPGranter interface {
	PlayerID() string
	AddScore(delta int)
	ApplyXP(ctx context.Context, amount int)
}

type Timers interface {
	After(d time.Duration, task func()) scheduler.Timer
}
