package metricsx

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/radieske/battle-arena-poc/internal/battle-service/arena"
)

// Set agrupa os contadores Prometheus do motor de batalha.
// Registrados num Registerer explícito pra não conflitar em testes.
type Set struct {
	BetsPlaced     prometheus.Counter
	BetsRejected   *prometheus.CounterVec
	GiftsApplied   prometheus.Counter
	GiftsDuplicate prometheus.Counter
	BattlesEnded   *prometheus.CounterVec
	PayoutsCents   *prometheus.CounterVec
	StoreErrors    *prometheus.CounterVec
	ForcedEndings  prometheus.Counter
}

func New(reg prometheus.Registerer) *Set {
	s := &Set{
		BetsPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arena_bets_placed_total",
			Help: "Apostas aceitas pelo pool",
		}),
		BetsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_bets_rejected_total",
			Help: "Apostas rejeitadas por motivo",
		}, []string{"reason"}),
		GiftsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arena_gifts_applied_total",
			Help: "Presentes aplicados ao placar",
		}),
		GiftsDuplicate: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arena_gifts_duplicate_total",
			Help: "Presentes ignorados por replay de gift ID",
		}),
		BattlesEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_battles_ended_total",
			Help: "Batalhas encerradas por causa (clock, host, watchdog, cancelled)",
		}, []string{"reason"}),
		PayoutsCents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_payouts_cents_total",
			Help: "Centavos prometidos em resoluções por status",
		}, []string{"status"}),
		StoreErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_store_errors_total",
			Help: "Falhas de persistência por operação",
		}, []string{"op"}),
		ForcedEndings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arena_clock_desync_forced_end_total",
			Help: "Encerramentos forçados pelo watchdog de relógio",
		}),
	}
	reg.MustRegister(
		s.BetsPlaced, s.BetsRejected, s.GiftsApplied, s.GiftsDuplicate,
		s.BattlesEnded, s.PayoutsCents, s.StoreErrors, s.ForcedEndings,
	)
	return s
}

// Hooks liga os contadores nos callbacks do motor (padrão de callbacks por
// etapa usado nos workers da plataforma).
func (s *Set) Hooks() arena.Hooks {
	return arena.Hooks{
		OnBetPlaced:     func() { s.BetsPlaced.Inc() },
		OnBetRejected:   func(reason string) { s.BetsRejected.WithLabelValues(reason).Inc() },
		OnGiftApplied:   func() { s.GiftsApplied.Inc() },
		OnGiftDuplicate: func() { s.GiftsDuplicate.Inc() },
		OnBattleEnded:   func(reason string) { s.BattlesEnded.WithLabelValues(reason).Inc() },
		OnPayoutEmitted: func(status string, cents int64) {
			s.PayoutsCents.WithLabelValues(status).Add(float64(cents))
		},
		OnStoreError: func(op string) { s.StoreErrors.WithLabelValues(op).Inc() },
		OnForcedEnd:  func() { s.ForcedEndings.Inc() },
	}
}
