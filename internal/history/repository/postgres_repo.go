package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/radieske/battle-arena-poc/pkg/contracts/events"
)

// PostgresRepo persiste o histórico de eventos das batalhas.
// O par (battle_id, seq) é único: reentrega do Kafka não duplica linha.
type PostgresRepo struct {
	DB *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{DB: db} }

// InsertHistory grava o evento no histórico (idempotente por battle_id+seq)
func (r *PostgresRepo) InsertHistory(ctx context.Context, e events.BattleEvent) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, `
		INSERT INTO battle_history (battle_id, seq, event_type, payload, ts)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (battle_id, seq) DO NOTHING`,
		e.BattleID, e.Seq, e.Type, payload, e.Ts,
	)
	return err
}
