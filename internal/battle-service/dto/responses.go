package dto

type BattleResponse struct {
	BattleID         string             `json:"battleId"`
	HostID           string             `json:"hostId"`
	Status           string             `json:"status"`
	Participants     []ParticipantView  `json:"participants"`
	Odds             map[string]float64 `json:"odds"`
	TotalPoolCents   int64              `json:"total_pool_cents"`
	BettorCount      int                `json:"bettor_count"`
	Locked           bool               `json:"locked"`
	DurationSeconds  int                `json:"duration_seconds"`
	TimeRemainingSec int                `json:"time_remaining_sec"`
	WinnerID         string             `json:"winner_id,omitempty"`
}

type ParticipantView struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Tier        string `json:"tier,omitempty"`
	Score       int64  `json:"score"`
	PoolCents   int64  `json:"pool_cents"`
}

type PlaceBetResponse struct {
	BetID  string `json:"betId"`
	Status string `json:"status"` // ACCEPTED
}

type SendGiftResponse struct {
	ParticipantID string `json:"participantId"`
	NewScore      int64  `json:"new_score"`
}

type OddsResponse struct {
	BattleID       string             `json:"battleId"`
	Odds           map[string]float64 `json:"odds"`
	TotalPoolCents int64              `json:"total_pool_cents"`
	BettorCount    int                `json:"bettor_count"`
	Locked         bool               `json:"locked"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
