package score

import (
	"errors"
	"time"
)

var ErrUnknownParticipant = errors.New("unknown participant")

// Gift é um presente pago pela audiência que soma pontos a um participante.
// ID é a chave de idempotência: o mesmo presente nunca pontua duas vezes.
type Gift struct {
	ID            string
	BattleID      string
	SenderID      string
	ParticipantID string
	CostCents     int64
	ScoreValue    int64
	SentAt        time.Time
}

// Board acumula o placar de uma batalha entre dois participantes.
// Não é seguro para uso concorrente: o dono (ator da batalha) serializa o acesso.
type Board struct {
	scores  map[string]int64
	applied map[string]struct{} // gift IDs já aplicados
}

// NewBoard cria o placar zerado para os dois participantes.
func NewBoard(participantA, participantB string) *Board {
	return &Board{
		scores: map[string]int64{
			participantA: 0,
			participantB: 0,
		},
		applied: make(map[string]struct{}),
	}
}

// Seen informa se um presente já foi aplicado (sem alterar nada).
func (b *Board) Seen(giftID string) bool {
	_, ok := b.applied[giftID]
	return ok
}

// Apply soma o valor do presente ao placar do participante alvo.
// Reaplicar o mesmo gift ID é um no-op e retorna duplicate=true com o placar corrente.
func (b *Board) Apply(g Gift) (newScore int64, duplicate bool, err error) {
	cur, ok := b.scores[g.ParticipantID]
	if !ok {
		return 0, false, ErrUnknownParticipant
	}
	if b.Seen(g.ID) {
		return cur, true, nil
	}
	b.applied[g.ID] = struct{}{}
	b.scores[g.ParticipantID] = cur + g.ScoreValue
	return b.scores[g.ParticipantID], false, nil
}

// Score retorna o placar atual de um participante (0 se desconhecido).
func (b *Board) Score(participantID string) int64 {
	return b.scores[participantID]
}

// Totals retorna uma cópia do placar corrente.
func (b *Board) Totals() map[string]int64 {
	out := make(map[string]int64, len(b.scores))
	for id, s := range b.scores {
		out[id] = s
	}
	return out
}

// Winner retorna o participante com placar estritamente maior.
// Empate não tem vencedor (ok=false).
func (b *Board) Winner() (participantID string, ok bool) {
	var bestID string
	var best int64
	tie := false
	for id, s := range b.scores {
		switch {
		case bestID == "" || s > best:
			bestID, best, tie = id, s, false
		case s == best:
			tie = true
		}
	}
	if tie || bestID == "" {
		return "", false
	}
	return bestID, true
}
