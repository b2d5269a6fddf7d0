package arena

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/battle-arena-poc/internal/battle-service/pool"
	"github.com/radieske/battle-arena-poc/internal/battle-service/score"
	"github.com/radieske/battle-arena-poc/internal/shared/config"
	cevents "github.com/radieske/battle-arena-poc/pkg/contracts/events"
)

type cmdKind int

const (
	cmdStart cmdKind = iota
	cmdEnd
	cmdCancel
	cmdPlaceBet
	cmdSendGift
	cmdTick
	cmdSnapshot
)

// command é a variante fechada de comando aceita pelo ator. Um campo por
// tipo de comando; reply é nil para ticks (fire-and-forget, nunca descartados).
type command struct {
	kind cmdKind
	ctx  context.Context

	callerID      string // host (start/end/cancel) ou bettor (place)
	participantID string
	amountCents   int64
	gift          score.Gift
	now           time.Time // tick

	reply chan result
}

type result struct {
	err      error
	betID    string
	newScore int64
	snap     Snapshot
}

// actor é o dono exclusivo de uma batalha: todos os comandos passam pelo
// mailbox e são processados um a um, o que dá a atomicidade da colocação de
// apostas e a ordem de emissão de eventos por batalha.
type actor struct {
	ar *Arena
	b  *battle

	mailbox  chan command
	done     chan struct{}
	stopTick sync.Once
	tickStop chan struct{}
}

const mailboxSize = 256

func newActor(ar *Arena, b *battle) *actor {
	return &actor{
		ar:       ar,
		b:        b,
		mailbox:  make(chan command, mailboxSize),
		done:     make(chan struct{}),
		tickStop: make(chan struct{}),
	}
}

func (ac *actor) run() {
	defer ac.ar.wg.Done()
	for {
		select {
		case <-ac.ar.done:
			return
		case cmd := <-ac.mailbox:
			ac.handle(cmd)
		}
	}
}

// runClock é o relógio autoritativo da batalha: um ticker do clockwork
// empurra ticks para o mailbox. O envio bloqueia (enfileira, não descarta);
// se o ator estiver ocupado o tick espera a vez dele.
func (ac *actor) runClock(interval time.Duration) {
	defer ac.ar.wg.Done()
	t := ac.ar.clock.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ac.tickStop:
			return
		case <-ac.ar.done:
			return
		case now := <-t.Chan():
			select {
			case ac.mailbox <- command{kind: cmdTick, ctx: context.Background(), now: now}:
			case <-ac.tickStop:
				return
			case <-ac.ar.done:
				return
			}
		}
	}
}

func (ac *actor) stopClock() {
	ac.stopTick.Do(func() { close(ac.tickStop) })
}

func (ac *actor) handle(cmd command) {
	var res result
	switch cmd.kind {
	case cmdStart:
		res.err = ac.handleStart(cmd)
	case cmdEnd:
		res.err = ac.handleEnd(cmd)
	case cmdCancel:
		res.err = ac.handleCancel(cmd)
	case cmdPlaceBet:
		res.betID, res.err = ac.handlePlaceBet(cmd)
	case cmdSendGift:
		res.newScore, res.err = ac.handleSendGift(cmd)
	case cmdTick:
		ac.handleTick(cmd.now)
		return // sem reply
	case cmdSnapshot:
		res.snap = ac.snapshot()
	}
	if cmd.reply != nil {
		cmd.reply <- res
	}
}

func (ac *actor) handleStart(cmd command) error {
	b := ac.b
	if cmd.callerID != b.hostID {
		return ErrAuthorization
	}
	if b.status != StatusWaiting {
		return ErrState
	}

	now := ac.ar.clock.Now()
	b.countdownEndsAt = now.Add(time.Duration(ac.ar.cfg.CountdownSeconds) * time.Second)
	ac.transition(cmd.ctx, StatusStarting, "")

	// Política lock-on-start: a janela fecha junto com o comando de início.
	// Na lock-near-end o relógio trava N segundos antes do fim programado.
	if ac.ar.cfg.WindowPolicy == config.WindowLockOnStart {
		b.pool.Lock()
		ac.emitOdds(cmd.ctx)
		ac.persistSnapshot(cmd.ctx)
	}
	return nil
}

func (ac *actor) handleEnd(cmd command) error {
	b := ac.b
	if cmd.callerID != b.hostID {
		return ErrAuthorization
	}
	if b.status != StatusLive {
		return ErrState
	}
	ac.endBattle(cmd.ctx, "host")
	return nil
}

func (ac *actor) handleCancel(cmd command) error {
	b := ac.b
	if cmd.callerID != b.hostID {
		return ErrAuthorization
	}
	if b.status != StatusWaiting {
		return ErrState
	}

	resolved, err := b.pool.Resolve("", ac.ar.clock.Now())
	if err != nil {
		return err
	}
	ac.transition(cmd.ctx, StatusCancelled, "")
	ac.emitResolved(cmd.ctx, resolved, "")
	ac.persistResolution(cmd.ctx, resolved)
	ac.stopClock()
	ac.ar.hooks.battleEnded("cancelled")
	return nil
}

func (ac *actor) handlePlaceBet(cmd command) (string, error) {
	b := ac.b

	odds, err := b.pool.Admit(cmd.callerID, cmd.participantID, cmd.amountCents)
	if err != nil {
		ac.ar.hooks.betRejected(rejectReason(err))
		return "", err
	}

	// Débito antes de qualquer mutação: falha ou timeout da carteira não pode
	// deixar stake fantasma no pool.
	betID := uuid.NewString()
	if err := ac.ar.wallet.Debit(cmd.ctx, cmd.callerID, cmd.amountCents, "stake:"+betID); err != nil {
		if errors.Is(err, ErrInsufficientFunds) {
			ac.ar.hooks.betRejected("insufficient_funds")
			return "", err
		}
		ac.ar.hooks.betRejected("wallet_unavailable")
		return "", errors.Join(ErrWalletUnavailable, err)
	}

	bet := b.pool.Record(betID, cmd.callerID, cmd.participantID, cmd.amountCents, odds, ac.ar.clock.Now())
	ac.ar.hooks.betPlaced()

	if err := ac.ar.store.InsertBet(cmd.ctx, bet); err != nil {
		ac.ar.log.Warn("insert bet", zap.String("battle_id", b.id), zap.Error(err))
		ac.ar.hooks.storeError("insert_bet")
	}
	ac.persistSnapshot(cmd.ctx)
	ac.emitOdds(cmd.ctx)
	return betID, nil
}

func (ac *actor) handleSendGift(cmd command) (int64, error) {
	b := ac.b
	if b.status != StatusLive {
		return 0, ErrState
	}
	g := cmd.gift

	if !ac.isParticipant(g.ParticipantID) {
		return 0, score.ErrUnknownParticipant
	}
	if b.board.Seen(g.ID) {
		// Idempotência: presente repetido não debita nem pontua de novo.
		ac.ar.hooks.giftDuplicate()
		return b.board.Score(g.ParticipantID), nil
	}

	// Presente gratuito não passa pela carteira; a carteira rejeita débito
	// de valor não positivo.
	if g.CostCents > 0 {
		if err := ac.ar.wallet.Debit(cmd.ctx, g.SenderID, g.CostCents, "gift:"+g.ID); err != nil {
			if errors.Is(err, ErrInsufficientFunds) {
				return 0, err
			}
			return 0, errors.Join(ErrWalletUnavailable, err)
		}
	}

	newScore, _, err := b.board.Apply(g)
	if err != nil {
		return 0, err
	}
	ac.ar.hooks.giftApplied()
	ac.emitScore(cmd.ctx, g, newScore)
	return newScore, nil
}

func (ac *actor) isParticipant(id string) bool {
	return id == ac.b.participants[0].ID || id == ac.b.participants[1].ID
}

// handleTick avalia as condições dirigidas pelo relógio: fim da contagem
// regressiva, trava perto do fim, prazo final e o watchdog de dessincronia.
func (ac *actor) handleTick(now time.Time) {
	b := ac.b
	ctx := context.Background()

	if b.status == StatusStarting && !now.Before(b.countdownEndsAt) {
		b.startedAt = now
		b.endsAt = now.Add(time.Duration(b.durationSeconds) * time.Second)
		ac.transition(ctx, StatusLive, "")
	}

	if b.status != StatusLive {
		return
	}

	// Watchdog: um tick perdido não pode deixar a batalha LIVE além do prazo
	// indefinidamente. Passou da duração + folga, força o encerramento.
	grace := time.Duration(ac.ar.cfg.GraceSeconds) * time.Second
	if now.Sub(b.startedAt) > time.Duration(b.durationSeconds)*time.Second+grace {
		ac.ar.log.Warn("clock desync: forcing battle end",
			zap.String("battle_id", b.id),
			zap.Time("started_at", b.startedAt),
			zap.Int("duration_seconds", b.durationSeconds),
		)
		ac.emitDesync(ctx, now)
		ac.ar.hooks.forcedEnd()
		ac.endBattle(ctx, "watchdog")
		return
	}

	if ac.ar.cfg.WindowPolicy == config.WindowLockNearEnd && !b.pool.Locked() {
		lead := time.Duration(ac.ar.cfg.LockLeadSecs) * time.Second
		if b.timeRemaining(now) <= lead {
			b.pool.Lock()
			ac.emitOdds(ctx)
			ac.persistSnapshot(ctx)
		}
	}

	if !now.Before(b.endsAt) {
		ac.endBattle(ctx, "clock")
	}
}

// endBattle roda a resolução completa: placar final, vencedor, pool e eventos.
// Chamado uma única vez; estados terminais não voltam.
func (ac *actor) endBattle(ctx context.Context, reason string) {
	b := ac.b

	winnerID, _ := b.board.Winner() // vazio em empate: tudo reembolsado
	b.winnerID = winnerID

	resolved, err := b.pool.Resolve(winnerID, ac.ar.clock.Now())
	if err != nil {
		ac.ar.log.Error("pool resolve", zap.String("battle_id", b.id), zap.Error(err))
		return
	}

	ac.transition(ctx, StatusEnded, winnerID)
	ac.emitResolved(ctx, resolved, winnerID)
	ac.persistResolution(ctx, resolved)
	ac.stopClock()
	ac.ar.hooks.battleEnded(reason)
}

// transition muda o status, persiste e emite BattleStateChanged.
func (ac *actor) transition(ctx context.Context, to Status, winnerID string) {
	b := ac.b
	from := b.status
	b.status = to

	if err := ac.ar.store.UpdateBattleStatus(ctx, b.id, to, winnerID, ac.ar.clock.Now()); err != nil {
		ac.ar.log.Warn("update battle status", zap.String("battle_id", b.id), zap.Error(err))
		ac.ar.hooks.storeError("update_status")
	}

	ac.publish(ctx, cevents.BattleEvent{
		Type:     cevents.TypeBattleStateChanged,
		BattleID: b.id,
		Seq:      b.nextSeq(),
		Ts:       ac.ar.clock.Now(),
		StateChanged: &cevents.BattleStateChanged{
			From:     string(from),
			To:       string(to),
			WinnerID: winnerID,
		},
	})
}

func (ac *actor) emitScore(ctx context.Context, g score.Gift, newScore int64) {
	ac.publish(ctx, cevents.BattleEvent{
		Type:     cevents.TypeScoreUpdated,
		BattleID: ac.b.id,
		Seq:      ac.b.nextSeq(),
		Ts:       ac.ar.clock.Now(),
		ScoreUpdated: &cevents.ScoreUpdated{
			ParticipantID: g.ParticipantID,
			NewScore:      newScore,
			GiftID:        g.ID,
			SenderID:      g.SenderID,
		},
	})
}

func (ac *actor) emitOdds(ctx context.Context) {
	p := ac.b.pool
	ac.publish(ctx, cevents.BattleEvent{
		Type:     cevents.TypeOddsUpdated,
		BattleID: ac.b.id,
		Seq:      ac.b.nextSeq(),
		Ts:       ac.ar.clock.Now(),
		OddsUpdated: &cevents.OddsUpdated{
			OddsByParticipant: p.Quote(),
			TotalPoolCents:    p.TotalCents(),
			BettorCount:       p.BettorCount(),
			Locked:            p.Locked(),
		},
	})
}

func (ac *actor) emitDesync(ctx context.Context, detectedAt time.Time) {
	ac.publish(ctx, cevents.BattleEvent{
		Type:     cevents.TypeClockDesync,
		BattleID: ac.b.id,
		Seq:      ac.b.nextSeq(),
		Ts:       ac.ar.clock.Now(),
		ClockDesync: &cevents.ClockDesync{
			StartedAt:       ac.b.startedAt,
			DurationSeconds: ac.b.durationSeconds,
			DetectedAt:      detectedAt,
		},
	})
}

// emitResolved publica um BetResolved por aposta, na ordem de colocação.
// O crédito em si é feito pelo payout-worker, idempotente por external_ref,
// então a batalha chega ao estado terminal mesmo com a carteira fora do ar.
func (ac *actor) emitResolved(ctx context.Context, resolved []*pool.Bet, winnerID string) {
	now := ac.ar.clock.Now()
	for _, bet := range resolved {
		ref := "payout:" + bet.ID
		if bet.Status == pool.StatusRefunded {
			ref = "refund:" + bet.ID
		}
		e := cevents.BetResolved{
			BetID:         bet.ID,
			BattleID:      bet.BattleID,
			BettorID:      bet.BettorID,
			ParticipantID: bet.ParticipantID,
			Status:        betStatusName(bet.Status),
			StakeCents:    bet.AmountCents,
			OddsValue:     bet.Odds,
			PayoutCents:   bet.PayoutCents,
			ExternalRef:   ref,
			ResolvedAt:    bet.ResolvedAt,
			WinnerID:      winnerID,
			TsUnixMs:      now.UnixMilli(),
		}
		if err := ac.ar.sink.PublishBetResolved(ctx, e); err != nil {
			ac.ar.log.Warn("publish bet resolved", zap.String("bet_id", bet.ID), zap.Error(err))
		}
		ac.ar.hooks.payoutEmitted(e.Status, e.PayoutCents)
	}
}

func (ac *actor) persistResolution(ctx context.Context, resolved []*pool.Bet) {
	for _, bet := range resolved {
		if err := ac.ar.store.MarkBetResolved(ctx, bet); err != nil {
			ac.ar.log.Warn("mark bet resolved", zap.String("bet_id", bet.ID), zap.Error(err))
			ac.ar.hooks.storeError("mark_bet_resolved")
		}
	}
	ac.persistSnapshot(ctx)
}

func (ac *actor) persistSnapshot(ctx context.Context) {
	b := ac.b
	sides := map[string]int64{
		b.participants[0].ID: b.pool.SideCents(b.participants[0].ID),
		b.participants[1].ID: b.pool.SideCents(b.participants[1].ID),
	}
	err := ac.ar.store.UpsertPoolSnapshot(ctx, b.id, sides, b.pool.TotalCents(), b.pool.Locked(), b.pool.BettorCount())
	if err != nil {
		ac.ar.log.Warn("upsert pool snapshot", zap.String("battle_id", b.id), zap.Error(err))
		ac.ar.hooks.storeError("upsert_snapshot")
	}
}

func (ac *actor) publish(ctx context.Context, e cevents.BattleEvent) {
	if err := ac.ar.sink.PublishBattleEvent(ctx, e); err != nil {
		ac.ar.log.Warn("publish battle event",
			zap.String("battle_id", e.BattleID),
			zap.String("type", e.Type),
			zap.Error(err),
		)
	}
}

func (ac *actor) snapshot() Snapshot {
	b := ac.b
	now := ac.ar.clock.Now()
	return Snapshot{
		BattleID:     b.id,
		HostID:       b.hostID,
		Status:       b.status,
		Participants: b.participants,
		Scores:       b.board.Totals(),
		Odds:         b.pool.Quote(),
		TotalPoolCents: b.pool.TotalCents(),
		SideCents: map[string]int64{
			b.participants[0].ID: b.pool.SideCents(b.participants[0].ID),
			b.participants[1].ID: b.pool.SideCents(b.participants[1].ID),
		},
		BettorCount:      b.pool.BettorCount(),
		Locked:           b.pool.Locked(),
		DurationSeconds:  b.durationSeconds,
		TimeRemainingSec: int(b.timeRemaining(now) / time.Second),
		WinnerID:         b.winnerID,
	}
}

func betStatusName(s pool.Status) string {
	switch s {
	case pool.StatusWon:
		return cevents.BetWon
	case pool.StatusLost:
		return cevents.BetLost
	case pool.StatusRefunded:
		return cevents.BetRefunded
	default:
		return string(s)
	}
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, pool.ErrWindowClosed):
		return "window_closed"
	case errors.Is(err, pool.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, pool.ErrDuplicateBet):
		return "duplicate_bet"
	case errors.Is(err, pool.ErrStakeTooLarge):
		return "liability_cap"
	case errors.Is(err, pool.ErrUnknownParticipant):
		return "unknown_participant"
	default:
		return "other"
	}
}
