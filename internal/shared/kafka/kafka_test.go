package kafka

import (
	"testing"

	kafkago "github.com/segmentio/kafka-go"
)

// Eventos de uma batalha usam o battleID como chave; o balancer precisa
// mandar a mesma chave sempre pra mesma partição, senão o consumidor vê
// os eventos fora de ordem.
func TestWriterPinsKeyToOnePartition(t *testing.T) {
	w := NewWriter("localhost:9092", "battle_events")

	partitions := []int{0, 1, 2}
	seen := map[int]bool{}
	for i := 0; i < 20; i++ {
		msg := kafkago.Message{Key: []byte("battle-1"), Value: []byte(`{}`)}
		seen[w.Balancer.Balance(msg, partitions...)] = true
	}
	if len(seen) != 1 {
		t.Fatalf("same key routed to %d partitions: %v", len(seen), seen)
	}
}

func TestWriterSpreadsDistinctKeys(t *testing.T) {
	w := NewWriter("localhost:9092", "battle_events")

	partitions := []int{0, 1, 2, 3, 4, 5, 6, 7}
	seen := map[int]bool{}
	keys := []string{"battle-1", "battle-2", "battle-3", "battle-4", "battle-5", "battle-6"}
	for _, k := range keys {
		msg := kafkago.Message{Key: []byte(k), Value: []byte(`{}`)}
		seen[w.Balancer.Balance(msg, partitions...)] = true
	}
	if len(seen) < 2 {
		t.Fatalf("distinct keys all collapsed onto one partition: %v", seen)
	}
}
