package domain

import (
	"fmt"
	"time"
)

type LeaderboardEntry struct {
	PlayerID   string
	PlayerName string
	Score      int64
	Rank       int
	Level      int
	UpdatedAt  time.Time
}

func (e LeaderboardEntry) DisplayName() string {
	if e.PlayerName != "" {
		return e.PlayerName
	}
	return e.PlayerID
}

type ServiceName string

const (
	ServiceGateway     ServiceName = "gateway"
	ServiceLeaderboard ServiceName = "leaderboard"
	ServiceProgression ServiceName = "progression"
	ServiceFairness    ServiceName = "fairness"
)

var AllServices = []ServiceName{ServiceGateway, ServiceLeaderboard, ServiceProgression, ServiceFairness}

type ServiceStatus struct {
	Service   ServiceName
	Online    bool
	CheckedAt time.Time
	Detail    string
}

func (s ServiceStatus) String() string {
	state := "offline"
	if s.Online {
		state = "online"
	}
	return fmt.Sprintf("%s: %s", s.Service, state)
}
