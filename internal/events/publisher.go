package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// EventType identifies the kind of event on the stream.
type EventType string

const (
	// EventTypeInventoryDiscovered is published after a retailer crawl
	// finishes and its records are stored.
	EventTypeInventoryDiscovered EventType = "INVENTORY_DISCOVERED"
)

// RedisClient is the subset of redis operations the publisher needs.
type RedisClient interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
	Close() error
}

// InventoryDiscoveredPayload describes one finished retailer crawl.
type InventoryDiscoveredPayload struct {
	EventID     string    `json:"event_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	SessionID   string    `json:"session_id"`
	Retailer    string    `json:"retailer"`
	RecordCount int       `json:"record_count"`
	Source      string    `json:"source"`
}

// Publisher appends crawl events to a Redis stream.
type Publisher struct {
	client RedisClient
	stream string
	logger *slog.Logger
}

func NewPublisher(client RedisClient, stream string, logger *slog.Logger) *Publisher {
	if stream == "" {
		stream = "inventory-events"
	}
	return &Publisher{
		client: client,
		stream: stream,
		logger: logger.With("component", "event_publisher"),
	}
}

// PublishInventoryDiscovered fills in event metadata and appends the payload
// to the stream.
func (p *Publisher) PublishInventoryDiscovered(ctx context.Context, payload *InventoryDiscoveredPayload) error {
	if payload.EventID == "" {
		payload.EventID = uuid.New().String()
	}
	if payload.EventType == "" {
		payload.EventType = string(EventTypeInventoryDiscovered)
	}
	if payload.Timestamp.IsZero() {
		payload.Timestamp = time.Now()
	}
	if payload.Source == "" {
		payload.Source = "crawler"
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"event_type": payload.EventType,
			"payload":    string(data),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Info("published event",
		"event_type", payload.EventType,
		"retailer", payload.Retailer,
		"records", payload.RecordCount,
	)
	return nil
}
