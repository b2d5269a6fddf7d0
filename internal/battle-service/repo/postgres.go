package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/radieske/battle-arena-poc/internal/battle-service/arena"
	"github.com/radieske/battle-arena-poc/internal/battle-service/pool"
)

// Postgres implementa a persistência mínima da arena: batalhas, log de
// apostas append-only e snapshot do pool. Implementa arena.Store.
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

func (p *Postgres) InsertBattle(ctx context.Context, battleID, hostID string, participants [2]arena.Participant, durationSeconds int) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO battles (id, host_id, participant_a, participant_b, status, duration_seconds)
		VALUES ($1,$2,$3,$4,'WAITING',$5)`,
		battleID, hostID, participants[0].ID, participants[1].ID, durationSeconds,
	)
	return err
}

func (p *Postgres) UpdateBattleStatus(ctx context.Context, battleID string, status arena.Status, winnerID string, at time.Time) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE battles SET status=$1, winner_id=NULLIF($2,''), updated_at=$3 WHERE id=$4`,
		string(status), winnerID, at, battleID,
	)
	return err
}

// InsertBet grava a aposta aceita no log. Nunca há UPDATE de odds/valor.
func (p *Postgres) InsertBet(ctx context.Context, b *pool.Bet) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO bets (id, battle_id, bettor_id, participant_id, amount_cents, odds_value, potential_payout_cents, status, placed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		b.ID, b.BattleID, b.BettorID, b.ParticipantID, b.AmountCents, b.Odds, b.PotentialPayoutCents, string(b.Status), b.PlacedAt,
	)
	return err
}

func (p *Postgres) MarkBetResolved(ctx context.Context, b *pool.Bet) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE bets SET status=$1, payout_cents=$2, resolved_at=$3 WHERE id=$4 AND resolved_at IS NULL`,
		string(b.Status), b.PayoutCents, b.ResolvedAt, b.ID,
	)
	return err
}

func (p *Postgres) UpsertPoolSnapshot(ctx context.Context, battleID string, sideCents map[string]int64, totalCents int64, locked bool, bettorCount int) error {
	var battle Battle
	err := p.db.QueryRowContext(ctx, `SELECT participant_a, participant_b FROM battles WHERE id=$1`, battleID).
		Scan(&battle.ParticipantA, &battle.ParticipantB)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO pool_snapshots (battle_id, side_a_cents, side_b_cents, total_cents, locked, bettor_count, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,NOW())
		ON CONFLICT (battle_id) DO UPDATE SET
			side_a_cents=EXCLUDED.side_a_cents,
			side_b_cents=EXCLUDED.side_b_cents,
			total_cents=EXCLUDED.total_cents,
			locked=EXCLUDED.locked,
			bettor_count=EXCLUDED.bettor_count,
			updated_at=NOW()`,
		battleID, sideCents[battle.ParticipantA], sideCents[battle.ParticipantB], totalCents, locked, bettorCount,
	)
	return err
}

// MarkBetRefunded é usado na recuperação pós-restart: devolve o valor integral
// de uma aposta ainda ativa de uma batalha abandonada.
func (p *Postgres) MarkBetRefunded(ctx context.Context, betID string, at time.Time) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE bets SET status='REFUNDED', payout_cents=amount_cents, resolved_at=$1
		WHERE id=$2 AND resolved_at IS NULL`,
		at, betID,
	)
	return err
}

// ListOpenBattles retorna batalhas não terminais para reidratação pós-restart.
func (p *Postgres) ListOpenBattles(ctx context.Context) ([]Battle, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, host_id, participant_a, participant_b, status, duration_seconds
		FROM battles WHERE status NOT IN ('ENDED','CANCELLED')`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Battle
	for rows.Next() {
		var b Battle
		if err := rows.Scan(&b.ID, &b.HostID, &b.ParticipantA, &b.ParticipantB, &b.Status, &b.DurationSeconds); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ListBetsByBattle retorna o log de apostas de uma batalha na ordem de colocação.
func (p *Postgres) ListBetsByBattle(ctx context.Context, battleID string) ([]Bet, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, battle_id, bettor_id, participant_id, amount_cents, odds_value, potential_payout_cents, status, COALESCE(payout_cents,0), placed_at, resolved_at
		FROM bets WHERE battle_id=$1 ORDER BY placed_at`, battleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Bet
	for rows.Next() {
		var b Bet
		if err := rows.Scan(&b.ID, &b.BattleID, &b.BettorID, &b.ParticipantID, &b.AmountCents, &b.OddsValue, &b.PotentialPayoutCents, &b.Status, &b.PayoutCents, &b.PlacedAt, &b.ResolvedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
