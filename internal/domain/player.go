package domain

import "slices"

// PlayerState is the locally authoritative progression of the single player in a session.
//
// Invariant: XP < LevelThreshold(Level) after every mutation made through the progression engine.
type PlayerState struct {
	ID           string
	Level        int
	XP           int
	TotalScore   int
	Achievements []AchievementID
}

func NewPlayerState(id string) PlayerState {
	return PlayerState{
		ID:           id,
		Level:        1,
		XP:           0,
		TotalScore:   0,
		Achievements: []AchievementID{},
	}
}

// LevelThreshold is the XP required to advance from the given level to the next
func LevelThreshold(level int) int {
	return level*100 + (level-1)*50
}

// Progress returns how far the player is towards the next level, in [0, 1)
func (p PlayerState) Progress() float64 {
	threshold := LevelThreshold(p.Level)
	if threshold <= 0 {
		return 0
	}
	return float64(p.XP) / float64(threshold)
}

// TotalXPGained is the approximate lifetime XP shown on the dashboard
func (p PlayerState) TotalXPGained() int {
	return p.XP + (p.Level-1)*100
}

func (p PlayerState) HasAchievement(id AchievementID) bool {
	return slices.Contains(p.Achievements, id)
}

// Unlock adds the achievement unless already present. Returns true if it was added.
func (p *PlayerState) Unlock(id AchievementID) bool {
	if p.HasAchievement(id) {
		return false
	}
	p.Achievements = append(p.Achievements, id)
	return true
}

func (p PlayerState) Clone() PlayerState {
	clone := p
	clone.Achievements = slices.Clone(p.Achievements)
	if clone.Achievements == nil {
		clone.Achievements = []AchievementID{}
	}
	return clone
}

// Progress as stored by the external progression collaborator
type Progress struct {
	Level        int
	XP           int
	Achievements []AchievementID
}

type Identity struct {
	PlayerID string
	// Offline is set when the identity was generated locally because resolution failed
	Offline bool
}
