package repo

import "time"

// Battle é a linha persistida em battles.
type Battle struct {
	ID              string
	HostID          string
	ParticipantA    string
	ParticipantB    string
	Status          string
	DurationSeconds int
	WinnerID        string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Bet é a linha do log append-only de apostas. Odds e potential_payout são
// gravados na colocação e nunca reescritos; resolução só muda status/payout.
type Bet struct {
	ID                   string
	BattleID             string
	BettorID             string
	ParticipantID        string
	AmountCents          int64
	OddsValue            float64
	PotentialPayoutCents int64
	Status               string
	PayoutCents          int64
	PlacedAt             time.Time
	ResolvedAt           *time.Time
}

// PoolSnapshot é a última foto do pool de uma batalha (restart-safe junto com o log de bets).
type PoolSnapshot struct {
	BattleID    string
	SideACents  int64
	SideBCents  int64
	TotalCents  int64
	Locked      bool
	BettorCount int
	UpdatedAt   time.Time
}
