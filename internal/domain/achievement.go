package domain

import "time"

type AchievementID string

const (
	AchievementLevel5       AchievementID = "level_5"
	AchievementClicker100   AchievementID = "clicker_100"
	AchievementMemoryMaster AchievementID = "memory_master"
	AchievementSpeedDemon   AchievementID = "speed_demon"
)

// Facts is the read-only view achievement predicates are evaluated against
type Facts struct {
	Player   PlayerState
	Clicker  ClickerState
	Memory   MemoryState
	Reaction ReactionState
}

type Achievement struct {
	ID          AchievementID
	Name        string
	Description string
	Unlocked    func(facts Facts) bool
}

var Achievements = []Achievement{
	{
		ID:          AchievementLevel5,
		Name:        "Level 5",
		Description: "Reach level 5",
		Unlocked: func(facts Facts) bool {
			return facts.Player.Level >= 5
		},
	},
	{
		ID:          AchievementClicker100,
		Name:        "Click Master",
		Description: "Click 100 times",
		Unlocked: func(facts Facts) bool {
			return facts.Clicker.ClickCount >= 100
		},
	},
	{
		ID:          AchievementMemoryMaster,
		Name:        "Memory Master",
		Description: "Reach memory level 10",
		Unlocked: func(facts Facts) bool {
			return facts.Memory.Level >= 10
		},
	},
	{
		ID:          AchievementSpeedDemon,
		Name:        "Lightning Hands",
		Description: "React within 200ms",
		Unlocked: func(facts Facts) bool {
			return facts.Reaction.HasBest && facts.Reaction.BestTime <= 200*time.Millisecond
		},
	},
}

func AchievementByID(id AchievementID) (Achievement, bool) {
	for _, achievement := range Achievements {
		if achievement.ID == id {
			return achievement, true
		}
	}
	return Achievement{}, false
}
