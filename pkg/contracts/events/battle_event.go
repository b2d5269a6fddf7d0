package events

import "time"

// Tipos de evento publicados no tópico "battle_events".
// O campo Type discrimina o payload preenchido; os demais ficam nulos.
const (
	TypeBattleStateChanged = "battle_state_changed"
	TypeScoreUpdated       = "score_updated"
	TypeOddsUpdated        = "odds_updated"
	TypeClockDesync        = "clock_desync"
)

// BattleEvent é o envelope único do tópico battle_events.
// Seq é a ordem de aceitação do comando dentro da batalha (por batalha, monotônico).
type BattleEvent struct {
	Type     string    `json:"type"`
	BattleID string    `json:"battle_id"`
	Seq      uint64    `json:"seq"`
	Ts       time.Time `json:"ts"`

	StateChanged *BattleStateChanged `json:"state_changed,omitempty"`
	ScoreUpdated *ScoreUpdated       `json:"score_updated,omitempty"`
	OddsUpdated  *OddsUpdated        `json:"odds_updated,omitempty"`
	ClockDesync  *ClockDesync        `json:"clock_desync,omitempty"`
}

// BattleStateChanged registra uma transição da máquina de estados.
type BattleStateChanged struct {
	From     string `json:"from"`
	To       string `json:"to"`
	WinnerID string `json:"winner_id,omitempty"` // preenchido em "ended" quando houver vencedor
}

// ScoreUpdated registra a aplicação de um presente no placar.
type ScoreUpdated struct {
	ParticipantID string `json:"participant_id"`
	NewScore      int64  `json:"new_score"`
	GiftID        string `json:"gift_id"`
	SenderID      string `json:"sender_id"`
}

// OddsUpdated carrega a cotação corrente após uma aposta aceita.
type OddsUpdated struct {
	OddsByParticipant map[string]float64 `json:"odds_by_participant"`
	TotalPoolCents    int64              `json:"total_pool_cents"`
	BettorCount       int                `json:"bettor_count"`
	Locked            bool               `json:"locked"`
}

// ClockDesync sinaliza que o watchdog forçou o encerramento da batalha.
type ClockDesync struct {
	StartedAt       time.Time `json:"started_at"`
	DurationSeconds int       `json:"duration_seconds"`
	DetectedAt      time.Time `json:"detected_at"`
}
