package domaintest

import (
	"slices"

	"github.com/Amund211/liveops/internal/domain"
)

type playerBuilder struct {
	player *domain.PlayerState
}

func (pb *playerBuilder) WithLevel(level int) *playerBuilder {
	pb.player.Level = level
	return pb
}

func (pb *playerBuilder) WithXP(xp int) *playerBuilder {
	pb.player.XP = xp
	return pb
}

func (pb *playerBuilder) WithTotalScore(score int) *playerBuilder {
	pb.player.TotalScore = score
	return pb
}

func (pb *playerBuilder) WithAchievements(ids ...domain.AchievementID) *playerBuilder {
	pb.player.Achievements = slices.Clone(ids)
	return pb
}

func (pb *playerBuilder) Build() domain.PlayerState {
	return pb.player.Clone()
}

func NewPlayerBuilder(playerID string) *playerBuilder {
	player := domain.NewPlayerState(playerID)
	return &playerBuilder{
		player: &player,
	}
}
