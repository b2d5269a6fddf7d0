package producer

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"github.com/radieske/battle-arena-poc/pkg/contracts/events"
)

// KafkaPublisher publica os eventos de domínio da arena em dois tópicos:
// battle_events (estado/placar/odds) e bet_resolved (pagamentos pendentes).
// A chave da mensagem é o battleID para manter a ordem por partição.
type KafkaPublisher struct {
	BattleWriter   *kafka.Writer
	ResolvedWriter *kafka.Writer
}

func NewKafkaPublisher(battleWriter, resolvedWriter *kafka.Writer) *KafkaPublisher {
	return &KafkaPublisher{BattleWriter: battleWriter, ResolvedWriter: resolvedWriter}
}

func (p *KafkaPublisher) PublishBattleEvent(ctx context.Context, e events.BattleEvent) error {
	b, _ := json.Marshal(e)
	return p.BattleWriter.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.BattleID),
		Value: b,
	})
}

func (p *KafkaPublisher) PublishBetResolved(ctx context.Context, e events.BetResolved) error {
	b, _ := json.Marshal(e)
	return p.ResolvedWriter.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.BattleID),
		Value: b,
	})
}
