// Package events publishes engine events to Kafka for downstream
// consumers (leaderboard projections, notification workers). Publishing
// is best-effort and happens after the atomic commit, never inside it.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

// Topics.
const (
	TopicEntryPlaced = "entry_placed"
	TopicPoolSettled = "pool_settled"
)

// EntryPlaced is emitted after a stake is admitted to a pool.
type EntryPlaced struct {
	PoolID     string `json:"pool_id"`
	Sport      string `json:"sport"`
	UserID     string `json:"user_id"`
	Prediction string `json:"prediction"`
	Fee        string `json:"fee"`
	PoolTotal  string `json:"pool_total"`
	TsUnixMs   int64  `json:"ts_unix_ms"`
}

// PoolSettled is emitted after a pool settles.
type PoolSettled struct {
	PoolID    string   `json:"pool_id"`
	Outcome   string   `json:"outcome"`
	Total     string   `json:"total"`
	HouseCut  string   `json:"house_cut"`
	Payout    string   `json:"payout"`
	Remainder string   `json:"remainder"`
	Winners   []string `json:"winners"`
	TsUnixMs  int64    `json:"ts_unix_ms"`
}

// Publisher writes engine events to Kafka.
type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher creates a publisher against the given broker address.
func NewPublisher(broker string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(broker),
			Balancer:               &kafka.LeastBytes{},
			AllowAutoTopicCreation: true,
		},
	}
}

// PublishEntryPlaced emits an EntryPlaced event.
func (p *Publisher) PublishEntryPlaced(ctx context.Context, e EntryPlaced) error {
	e.TsUnixMs = time.Now().UnixMilli()
	b, _ := json.Marshal(e)
	return p.writer.WriteMessages(ctx, kafka.Message{
		Topic: TopicEntryPlaced,
		Key:   []byte(e.PoolID),
		Value: b,
	})
}

// PublishPoolSettled emits a PoolSettled event.
func (p *Publisher) PublishPoolSettled(ctx context.Context, e PoolSettled) error {
	e.TsUnixMs = time.Now().UnixMilli()
	b, _ := json.Marshal(e)
	return p.writer.WriteMessages(ctx, kafka.Message{
		Topic: TopicPoolSettled,
		Key:   []byte(e.PoolID),
		Value: b,
	})
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
