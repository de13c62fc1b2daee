package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/dvloznov/exchange-settler/internal/logger"
)

// SettlementRequest is an inbound transaction submitted through the request
// topic. It mirrors the settlement transaction shape; the consumer hands it
// to the worker without interpreting it.
type SettlementRequest struct {
	UserID       string  `json:"user_id"`
	BTCAmount    float64 `json:"btc_amount"`
	BaseCurrency string  `json:"base_currency"`
}

// RequestHandler processes one inbound settlement request. A returned error
// marks that request as failed; the consumer keeps draining the topic.
type RequestHandler func(ctx context.Context, req SettlementRequest) error

// RequestConsumer reads settlement requests from a Kafka topic. Requests
// are handled strictly one at a time in partition order, which keeps
// pipeline runs against a shared ledger from interleaving.
type RequestConsumer struct {
	reader *kafka.Reader
}

// NewRequestConsumer builds a consumer in the given consumer group. All
// worker replicas share the group, so each request is settled once.
func NewRequestConsumer(brokers []string, topic, groupID string) *RequestConsumer {
	return &RequestConsumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: brokers,
			Topic:   topic,
			GroupID: groupID,
		}),
	}
}

// Run drains the topic until ctx is cancelled, invoking handler for each
// decoded request. Undecodable messages are logged and skipped rather than
// wedging the intake. Run returns nil on cancellation and the reader error
// otherwise.
func (c *RequestConsumer) Run(ctx context.Context, handler RequestHandler) error {
	log := logger.FromContext(ctx)

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("events: reading request topic: %w", err)
		}

		var req SettlementRequest
		if err := json.Unmarshal(msg.Value, &req); err != nil {
			log.Warn().
				Err(err).
				Str("topic", msg.Topic).
				Int64("offset", msg.Offset).
				Msg("Skipping undecodable settlement request")
			continue
		}

		if err := handler(ctx, req); err != nil {
			log.Error().
				Err(err).
				Str("user_id", req.UserID).
				Int64("offset", msg.Offset).
				Msg("Settlement request failed")
		}
	}
}

// Close releases the underlying reader.
func (c *RequestConsumer) Close() error {
	return c.reader.Close()
}
