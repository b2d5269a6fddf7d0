package arena

import (
	"context"
	"time"

	"github.com/radieske/battle-arena-poc/internal/battle-service/pool"
	cevents "github.com/radieske/battle-arena-poc/pkg/contracts/events"
)

// Wallet é o colaborador de saldo. O core nunca guarda saldo; só debita a
// ação no momento do comando. Créditos (payouts) saem pelo payout-worker.
type Wallet interface {
	// Debit falha com arena.ErrInsufficientFunds quando não há saldo e com
	// qualquer outro erro em indisponibilidade/timeout (fail closed).
	Debit(ctx context.Context, userID string, amountCents int64, externalRef string) error
}

// EventSink publica os eventos de domínio na ordem em que o ator os emite.
type EventSink interface {
	PublishBattleEvent(ctx context.Context, e cevents.BattleEvent) error
	PublishBetResolved(ctx context.Context, e cevents.BetResolved) error
}

// Store é a persistência mínima para sobreviver a restart sem violar os
// invariantes do pool: log de apostas append-only + snapshot do pool.
type Store interface {
	InsertBattle(ctx context.Context, battleID, hostID string, participants [2]Participant, durationSeconds int) error
	UpdateBattleStatus(ctx context.Context, battleID string, status Status, winnerID string, at time.Time) error
	InsertBet(ctx context.Context, b *pool.Bet) error
	MarkBetResolved(ctx context.Context, b *pool.Bet) error
	UpsertPoolSnapshot(ctx context.Context, battleID string, sideCents map[string]int64, totalCents int64, locked bool, bettorCount int) error
}

// Hooks são callbacks de métricas por etapa (mesmo padrão do consumidor de
// odds da plataforma de apostas). Todos opcionais.
type Hooks struct {
	OnBetPlaced     func()
	OnBetRejected   func(reason string)
	OnGiftApplied   func()
	OnGiftDuplicate func()
	OnBattleEnded   func(reason string)
	OnPayoutEmitted func(status string, cents int64)
	OnStoreError    func(op string)
	OnForcedEnd     func()
}

func (h Hooks) betPlaced() {
	if h.OnBetPlaced != nil {
		h.OnBetPlaced()
	}
}

func (h Hooks) betRejected(reason string) {
	if h.OnBetRejected != nil {
		h.OnBetRejected(reason)
	}
}

func (h Hooks) giftApplied() {
	if h.OnGiftApplied != nil {
		h.OnGiftApplied()
	}
}

func (h Hooks) giftDuplicate() {
	if h.OnGiftDuplicate != nil {
		h.OnGiftDuplicate()
	}
}

func (h Hooks) battleEnded(reason string) {
	if h.OnBattleEnded != nil {
		h.OnBattleEnded(reason)
	}
}

func (h Hooks) payoutEmitted(status string, cents int64) {
	if h.OnPayoutEmitted != nil {
		h.OnPayoutEmitted(status, cents)
	}
}

func (h Hooks) storeError(op string) {
	if h.OnStoreError != nil {
		h.OnStoreError(op)
	}
}

func (h Hooks) forcedEnd() {
	if h.OnForcedEnd != nil {
		h.OnForcedEnd()
	}
}

// NopStore e NopSink servem para testes e para rodar o serviço sem
// infraestrutura externa (modo local).
type NopStore struct{}

func (NopStore) InsertBattle(context.Context, string, string, [2]Participant, int) error { return nil }
func (NopStore) UpdateBattleStatus(context.Context, string, Status, string, time.Time) error {
	return nil
}
func (NopStore) InsertBet(context.Context, *pool.Bet) error      { return nil }
func (NopStore) MarkBetResolved(context.Context, *pool.Bet) error { return nil }
func (NopStore) UpsertPoolSnapshot(context.Context, string, map[string]int64, int64, bool, int) error {
	return nil
}

type NopSink struct{}

func (NopSink) PublishBattleEvent(context.Context, cevents.BattleEvent) error { return nil }
func (NopSink) PublishBetResolved(context.Context, cevents.BetResolved) error { return nil }
