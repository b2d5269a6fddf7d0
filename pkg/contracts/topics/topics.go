package topics

const (
	// Eventos de domínio da arena (estado, placar, odds)
	BattleEvents = "battle_events"

	// Resoluções de aposta (won/lost/refunded) a serem pagas pelo payout-worker
	BetResolved = "bet_resolved"

	// DLQs
	BetResolvedDLQ = "bet_resolved_dlq"
)
