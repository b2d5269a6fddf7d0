package events

import "time"

// Status finais de aposta publicados em bet_resolved.
const (
	BetWon      = "WON"
	BetLost     = "LOST"
	BetRefunded = "REFUNDED"
)

// BetResolved é emitido pelo battle-service ao resolver o pool (fim ou cancelamento).
// O payout-worker consome e credita a carteira de forma idempotente por ExternalRef.
type BetResolved struct {
	BetID          string    `json:"bet_id"`
	BattleID       string    `json:"battle_id"`
	BettorID       string    `json:"bettor_id"`
	ParticipantID  string    `json:"participant_id"`
	Status         string    `json:"status"` // WON | LOST | REFUNDED
	StakeCents     int64     `json:"stake_cents"`
	OddsValue      float64   `json:"odds_value"`
	PayoutCents    int64     `json:"payout_cents"` // 0 para LOST
	ExternalRef    string    `json:"external_ref"` // "payout:{betId}" ou "refund:{betId}"
	ResolvedAt     time.Time `json:"resolved_at"`
	WinnerID       string    `json:"winner_id,omitempty"`
	TsUnixMs       int64     `json:"ts_unix_ms"`
}
