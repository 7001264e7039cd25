package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
)

const EventHistoryUpdated = "history_updated"

// Event is the payload pushed to connected clients.
type Event struct {
	Type string `json:"type"`
}

func channelFor(userID int64) string {
	return fmt.Sprintf("chat_updates:%d", userID)
}

// Publisher fans chat updates out through Redis so every server instance's
// hub sees them, not just the one that handled the request. The chat
// service uses it to announce history changes.
type Publisher struct {
	redisClient *redis.Client
}

func NewPublisher(redisClient *redis.Client) *Publisher {
	return &Publisher{redisClient: redisClient}
}

func (p *Publisher) HistoryUpdated(ctx context.Context, userID int64) {
	data, err := json.Marshal(Event{Type: EventHistoryUpdated})
	if err != nil {
		return
	}
	if err := p.redisClient.Publish(ctx, channelFor(userID), data).Err(); err != nil {
		log.Printf("Warning: failed to publish chat update for user %d: %v", userID, err)
	}
}
