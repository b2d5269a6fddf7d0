package pool

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/radieske/battle-arena-poc/internal/shared/config"
)

var (
	ErrWindowClosed       = errors.New("betting window closed")
	ErrInvalidAmount      = errors.New("stake outside allowed bounds")
	ErrDuplicateBet       = errors.New("bettor already has an active bet on this battle")
	ErrUnknownParticipant = errors.New("unknown participant")
	ErrStakeTooLarge      = errors.New("stake too large for current pool liability")
	ErrAlreadyResolved    = errors.New("pool already resolved")
)

// Status de uma aposta dentro do pool.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusWon      Status = "WON"
	StatusLost     Status = "LOST"
	StatusRefunded Status = "REFUNDED"
)

// Bet é uma aposta aceita. Odds é capturada no momento da aceitação e nunca
// muda depois — esse é o contrato de justiça do modelo pari-mutuel daqui.
type Bet struct {
	ID                   string
	BattleID             string
	BettorID             string
	ParticipantID        string
	AmountCents          int64
	Odds                 float64
	PotentialPayoutCents int64
	Status               Status
	PlacedAt             time.Time
	ResolvedAt           time.Time
	PayoutCents          int64 // preenchido na resolução (WON/REFUNDED)
}

// Pool é o pool pari-mutuel de uma batalha: totais por participante, trava de
// janela e resolução. Não é seguro para uso concorrente; o ator da batalha
// serializa todas as mutações.
type Pool struct {
	cfg      config.BattleConfig
	battleID string
	sides    [2]string
	totals   map[string]int64 // centavos apostados por participante
	total    int64            // invariante: soma de totals
	locked   bool
	resolved bool

	bets    []*Bet
	bettors map[string]int // apostas ativas por bettor (política de aposta única)
}

// New cria o pool destravado para os dois participantes da batalha.
func New(cfg config.BattleConfig, battleID, participantA, participantB string) *Pool {
	return &Pool{
		cfg:      cfg,
		battleID: battleID,
		sides:    [2]string{participantA, participantB},
		totals: map[string]int64{
			participantA: 0,
			participantB: 0,
		},
		bettors: make(map[string]int),
	}
}

// Odds calcula a cotação corrente de um participante a partir do estado do pool:
//
//	pool vazio            -> DefaultOdds
//	lado escolhido vazio  -> EmptySideOdds
//	senão                 -> clamp(total*(1-fee)/lado, MinOdds, MaxOdds)
func (p *Pool) Odds(participantID string) float64 {
	side, ok := p.totals[participantID]
	if !ok {
		return 0
	}
	if p.total == 0 {
		return p.cfg.DefaultOdds
	}
	if side == 0 {
		return p.cfg.EmptySideOdds
	}
	odds := float64(p.total) * (1 - p.cfg.FeeRate) / float64(side)
	return clamp(odds, p.cfg.MinOdds, p.cfg.MaxOdds)
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

// Quote retorna a cotação corrente dos dois lados.
func (p *Pool) Quote() map[string]float64 {
	return map[string]float64{
		p.sides[0]: p.Odds(p.sides[0]),
		p.sides[1]: p.Odds(p.sides[1]),
	}
}

// Lock fecha a janela de apostas. Irreversível.
func (p *Pool) Lock() { p.locked = true }

func (p *Pool) Locked() bool   { return p.locked }
func (p *Pool) Resolved() bool { return p.resolved }
func (p *Pool) TotalCents() int64 { return p.total }
func (p *Pool) BattleID() string  { return p.battleID }
func (p *Pool) Bets() []*Bet      { return p.bets }

func (p *Pool) SideCents(id string) int64 { return p.totals[id] }

// BettorCount é o número de apostadores com aposta ativa.
func (p *Pool) BettorCount() int { return len(p.bettors) }

// Admit valida uma aposta candidata sem mutar o pool e retorna a odds que ela
// receberia. A ordem de checagem segue o fluxo de colocação: janela, alvo,
// faixa de valor, política de aposta única e limite de responsabilidade.
// O débito na carteira acontece entre Admit e Record; como o ator serializa
// os comandos, nenhum outro escritor enxerga o pool nesse intervalo.
func (p *Pool) Admit(bettorID, participantID string, amountCents int64) (odds float64, err error) {
	if p.locked || p.resolved {
		return 0, ErrWindowClosed
	}
	if _, ok := p.totals[participantID]; !ok {
		return 0, ErrUnknownParticipant
	}
	if amountCents < p.cfg.MinBetCents || amountCents > p.cfg.MaxBetCents {
		return 0, fmt.Errorf("%w: %d not in [%d,%d]", ErrInvalidAmount,
			amountCents, p.cfg.MinBetCents, p.cfg.MaxBetCents)
	}
	if p.cfg.MaxBetsPerUsr == 1 && p.bettors[bettorID] > 0 {
		return 0, ErrDuplicateBet
	}

	odds = p.Odds(participantID)
	if err := p.checkLiability(participantID, amountCents, odds); err != nil {
		return 0, err
	}
	return odds, nil
}

// checkLiability garante que o total prometido ao lado candidato nunca passa
// do pool coletado líquido de taxa mais a reserva declarada da casa. Só o lado
// da aposta precisa de checagem: o teto dos lados cresce junto com o pool,
// então exposições já admitidas continuam cobertas.
func (p *Pool) checkLiability(participantID string, amountCents int64, odds float64) error {
	obligation := p.exposure(participantID) + payoutFor(amountCents, odds)
	ceiling := int64(math.Floor(float64(p.total+amountCents)*(1-p.cfg.FeeRate))) + p.cfg.HouseReserveCents
	if obligation > ceiling {
		return fmt.Errorf("%w: obligation=%d ceiling=%d", ErrStakeTooLarge, obligation, ceiling)
	}
	return nil
}

// exposure soma os payouts prometidos às apostas ativas de um lado.
func (p *Pool) exposure(participantID string) int64 {
	var sum int64
	for _, b := range p.bets {
		if b.Status == StatusActive && b.ParticipantID == participantID {
			sum += b.PotentialPayoutCents
		}
	}
	return sum
}

func payoutFor(amountCents int64, odds float64) int64 {
	return int64(math.Round(float64(amountCents) * odds))
}

// Record registra a aposta depois do débito confirmado na carteira, usando a
// odds devolvida por Admit (estado do pool ANTES desta aposta entrar).
func (p *Pool) Record(betID, bettorID, participantID string, amountCents int64, odds float64, placedAt time.Time) *Bet {
	b := &Bet{
		ID:                   betID,
		BattleID:             p.battleID,
		BettorID:             bettorID,
		ParticipantID:        participantID,
		AmountCents:          amountCents,
		Odds:                 odds,
		PotentialPayoutCents: payoutFor(amountCents, odds),
		Status:               StatusActive,
		PlacedAt:             placedAt,
	}
	p.bets = append(p.bets, b)
	p.bettors[bettorID]++
	p.totals[participantID] += amountCents
	p.total += amountCents
	return b
}

// Resolve fecha o pool exatamente uma vez e muda o status de cada aposta ativa.
// winnerID vazio significa empate (ou cancelamento): tudo é reembolsado
// integralmente, sem taxa. Com vencedor, apostas vencedoras recebem
// stake*odds e as perdedoras são perdidas para a plataforma.
func (p *Pool) Resolve(winnerID string, now time.Time) ([]*Bet, error) {
	if p.resolved {
		return nil, ErrAlreadyResolved
	}
	p.locked = true
	p.resolved = true

	resolved := make([]*Bet, 0, len(p.bets))
	for _, b := range p.bets {
		if b.Status != StatusActive {
			continue
		}
		switch {
		case winnerID == "":
			b.Status = StatusRefunded
			b.PayoutCents = b.AmountCents
		case b.ParticipantID == winnerID:
			b.Status = StatusWon
			b.PayoutCents = b.PotentialPayoutCents
		default:
			b.Status = StatusLost
			b.PayoutCents = 0
		}
		b.ResolvedAt = now
		resolved = append(resolved, b)
	}
	return resolved, nil
}
