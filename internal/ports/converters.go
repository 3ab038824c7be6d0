package ports

import (
	"time"

	"github.com/Amund211/liveops/internal/app"
)

type playerResponse struct {
	Level        int      `json:"level"`
	XP           int      `json:"xp"`
	Threshold    int      `json:"threshold"`
	Progress     float64  `json:"progress"`
	TotalScore   int      `json:"totalScore"`
	Achievements []string `json:"achievements"`
}

type clickerResponse struct {
	Score       int `json:"score"`
	ClickCount  int `json:"clickCount"`
	Multiplier  int `json:"multiplier"`
	UpgradeCost int `json:"upgradeCost"`
}

type memoryResponse struct {
	Level          int    `json:"level"`
	Score          int    `json:"score"`
	Phase          string `json:"phase"`
	Shown          string `json:"shown"`
	SequenceLength int    `json:"sequenceLength"`
}

type reactionResponse struct {
	BestTimeMs    *int64 `json:"bestTimeMs"`
	AverageTimeMs *int64 `json:"averageTimeMs"`
	Attempts      int    `json:"attempts"`
	Phase         string `json:"phase"`
}

type dashboardResponse struct {
	GamesPlayed   int  `json:"gamesPlayed"`
	TotalXPGained int  `json:"totalXpGained"`
	Rank          *int `json:"rank"`
}

type leaderboardEntryResponse struct {
	Rank      int        `json:"rank"`
	PlayerID  string     `json:"playerId"`
	Name      string     `json:"name"`
	Score     int64      `json:"score"`
	Level     int        `json:"level,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

type leaderboardResponse struct {
	Entries     []leaderboardEntryResponse `json:"entries"`
	Unavailable bool                       `json:"unavailable"`
}

type serviceResponse struct {
	Service   string    `json:"service"`
	Online    bool      `json:"online"`
	Detail    string    `json:"detail,omitempty"`
	CheckedAt time.Time `json:"checkedAt"`
}

type achievementResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Unlocked    bool   `json:"unlocked"`
}

type notificationResponse struct {
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

type eventLogEntryResponse struct {
	EventType string    `json:"eventType"`
	Delivered bool      `json:"delivered"`
	Message   string    `json:"message"`
	At        time.Time `json:"at"`
}

type stateResponse struct {
	PlayerID      string                  `json:"playerId"`
	Offline       bool                    `json:"offline"`
	View          string                  `json:"view"`
	Player        playerResponse          `json:"player"`
	Clicker       clickerResponse         `json:"clicker"`
	Memory        memoryResponse          `json:"memory"`
	Reaction      reactionResponse        `json:"reaction"`
	Dashboard     dashboardResponse       `json:"dashboard"`
	Leaderboard   leaderboardResponse     `json:"leaderboard"`
	Services      []serviceResponse       `json:"services"`
	Achievements  []achievementResponse   `json:"achievements"`
	Notifications []notificationResponse  `json:"notifications"`
	EventLog      []eventLogEntryResponse `json:"eventLog"`
}

func durationMillis(d time.Duration, ok bool) *int64 {
	if !ok {
		return nil
	}
	ms := d.Milliseconds()
	return &ms
}

func snapshotToResponse(snapshot app.Snapshot) stateResponse {
	achievements := make([]string, 0, len(snapshot.Player.Achievements))
	for _, id := range snapshot.Player.Achievements {
		achievements = append(achievements, string(id))
	}

	entries := make([]leaderboardEntryResponse, 0, len(snapshot.Leaderboard.Entries))
	for _, entry := range snapshot.Leaderboard.Entries {
		var updatedAt *time.Time
		if !entry.UpdatedAt.IsZero() {
			t := entry.UpdatedAt
			updatedAt = &t
		}
		entries = append(entries, leaderboardEntryResponse{
			Rank:      entry.Rank,
			PlayerID:  entry.PlayerID,
			Name:      entry.DisplayName(),
			Score:     entry.Score,
			Level:     entry.Level,
			UpdatedAt: updatedAt,
		})
	}

	services := make([]serviceResponse, 0, len(snapshot.Services))
	for _, status := range snapshot.Services {
		services = append(services, serviceResponse{
			Service:   string(status.Service),
			Online:    status.Online,
			Detail:    status.Detail,
			CheckedAt: status.CheckedAt,
		})
	}

	achievementViews := make([]achievementResponse, 0, len(snapshot.Achievements))
	for _, achievement := range snapshot.Achievements {
		achievementViews = append(achievementViews, achievementResponse{
			ID:          string(achievement.ID),
			Name:        achievement.Name,
			Description: achievement.Description,
			Unlocked:    achievement.Unlocked,
		})
	}

	notifications := make([]notificationResponse, 0, len(snapshot.Notifications))
	for _, notification := range snapshot.Notifications {
		notifications = append(notifications, notificationResponse{
			Kind:    string(notification.Kind),
			Message: notification.Message,
			At:      notification.At,
		})
	}

	eventLog := make([]eventLogEntryResponse, 0, len(snapshot.EventLog))
	for _, entry := range snapshot.EventLog {
		eventLog = append(eventLog, eventLogEntryResponse{
			EventType: string(entry.EventType),
			Delivered: entry.Delivered,
			Message:   entry.Message,
			At:        entry.At,
		})
	}

	var rank *int
	if snapshot.Dashboard.Rank != nil {
		r := *snapshot.Dashboard.Rank
		rank = &r
	}

	return stateResponse{
		PlayerID: snapshot.PlayerID,
		Offline:  snapshot.Offline,
		View:     string(snapshot.View),
		Player: playerResponse{
			Level:        snapshot.Player.Level,
			XP:           snapshot.Player.XP,
			Threshold:    snapshot.Threshold,
			Progress:     snapshot.Progress,
			TotalScore:   snapshot.Player.TotalScore,
			Achievements: achievements,
		},
		Clicker: clickerResponse{
			Score:       snapshot.Clicker.Score,
			ClickCount:  snapshot.Clicker.ClickCount,
			Multiplier:  snapshot.Clicker.Multiplier,
			UpgradeCost: snapshot.Clicker.UpgradeCost,
		},
		Memory: memoryResponse{
			Level:          snapshot.Memory.Level,
			Score:          snapshot.Memory.Score,
			Phase:          snapshot.Memory.Phase.String(),
			Shown:          snapshot.Memory.Shown,
			SequenceLength: snapshot.Memory.SequenceLength,
		},
		Reaction: reactionResponse{
			BestTimeMs:    durationMillis(snapshot.Reaction.BestTime, snapshot.Reaction.HasBest),
			AverageTimeMs: durationMillis(snapshot.Reaction.Average, snapshot.Reaction.HasAverage),
			Attempts:      snapshot.Reaction.Attempts,
			Phase:         snapshot.Reaction.Phase.String(),
		},
		Dashboard: dashboardResponse{
			GamesPlayed:   snapshot.Dashboard.GamesPlayed,
			TotalXPGained: snapshot.Dashboard.TotalXPGained,
			Rank:          rank,
		},
		Leaderboard: leaderboardResponse{
			Entries:     entries,
			Unavailable: snapshot.Leaderboard.Unavailable,
		},
		Services:      services,
		Achievements:  achievementViews,
		Notifications: notifications,
		EventLog:      eventLog,
	}
}

type clickResult struct {
	DeltaScore int `json:"deltaScore"`
}

type upgradeResult struct {
	Purchased bool `json:"purchased"`
}

type memoryResult struct {
	Correct bool `json:"correct"`
	Level   int  `json:"level"`
	Score   int  `json:"score"`
}

type reactionResult struct {
	ReactionTimeMs int64 `json:"reactionTimeMs"`
	NewBest        bool  `json:"newBest"`
	XP             int   `json:"xp"`
}
