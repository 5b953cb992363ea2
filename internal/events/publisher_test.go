package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedis records XAdd calls instead of talking to a server.
type fakeRedis struct {
	args []*redis.XAddArgs
	err  error
}

func (f *fakeRedis) XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd {
	f.args = append(f.args, args)
	cmd := redis.NewStringCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
	} else {
		cmd.SetVal("1-0")
	}
	return cmd
}

func (f *fakeRedis) Close() error { return nil }

func TestPublishInventoryDiscovered(t *testing.T) {
	client := &fakeRedis{}
	p := NewPublisher(client, "inventory-events", slog.Default())

	err := p.PublishInventoryDiscovered(context.Background(), &InventoryDiscoveredPayload{
		SessionID:   "session-1",
		Retailer:    "shop.example.com",
		RecordCount: 42,
	})
	require.NoError(t, err)

	require.Len(t, client.args, 1)
	args := client.args[0]
	assert.Equal(t, "inventory-events", args.Stream)
	assert.Equal(t, string(EventTypeInventoryDiscovered), args.Values.(map[string]interface{})["event_type"])

	var payload InventoryDiscoveredPayload
	raw := args.Values.(map[string]interface{})["payload"].(string)
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))

	assert.Equal(t, "shop.example.com", payload.Retailer)
	assert.Equal(t, 42, payload.RecordCount)
	assert.Equal(t, "crawler", payload.Source)
	assert.NotEmpty(t, payload.EventID)
	assert.False(t, payload.Timestamp.IsZero())
}

func TestPublishDefaultStream(t *testing.T) {
	client := &fakeRedis{}
	p := NewPublisher(client, "", slog.Default())

	err := p.PublishInventoryDiscovered(context.Background(), &InventoryDiscoveredPayload{
		Retailer: "shop.example.com",
	})
	require.NoError(t, err)
	require.Len(t, client.args, 1)
	assert.Equal(t, "inventory-events", client.args[0].Stream)
}

func TestPublishRedisError(t *testing.T) {
	client := &fakeRedis{err: errors.New("connection refused")}
	p := NewPublisher(client, "inventory-events", slog.Default())

	err := p.PublishInventoryDiscovered(context.Background(), &InventoryDiscoveredPayload{
		Retailer: "shop.example.com",
	})
	require.Error(t, err)
}
