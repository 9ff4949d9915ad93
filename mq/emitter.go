package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"staybook/models"
)

// Channel is the redis pub/sub channel every instance relays from.
const Channel = "calendar-events"

// Sink receives relayed events; websock.Hub implements it.
type Sink interface {
	Broadcast(msg models.Message)
}

// Emitter publishes calendar events to redis so every instance can push them.
type Emitter struct {
	rdb     *redis.Client
	channel string
}

func NewEmitter(rdb *redis.Client) *Emitter {
	return &Emitter{rdb: rdb, channel: Channel}
}

func (e *Emitter) Publish(ctx context.Context, msg models.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", msg.Type, err)
	}
	if err := e.rdb.Publish(ctx, e.channel, data).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", msg.Type, err)
	}
	log.Printf("[Emit] %s published to '%s'", msg.Type, e.channel)
	return nil
}

// StartRelay forwards every event on the channel to sink until ctx ends.
// It blocks; run it in its own goroutine.
func StartRelay(ctx context.Context, rdb *redis.Client, sink Sink) error {
	sub := rdb.Subscribe(ctx, Channel)
	defer sub.Close()

	// wait for the subscription so nothing published after startup is missed
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", Channel, err)
	}
	log.Printf("[Relay] Listening for calendar events on '%s'...", Channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			log.Println("[Relay] stopped")
			return nil
		case raw, ok := <-ch:
			if !ok {
				return nil
			}
			relay(sink, []byte(raw.Payload))
		}
	}
}

func relay(sink Sink, payload []byte) {
	var msg models.Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		log.Printf("[Relay] Failed to parse event: %v", err)
		return
	}
	if msg.Type == "" {
		log.Printf("[Relay] dropping event without type")
		return
	}
	sink.Broadcast(msg)
}

// LocalPublisher hands events straight to the sink. Used when redis is not
// configured and the server runs as a single instance.
type LocalPublisher struct {
	Sink Sink
}

func (p LocalPublisher) Publish(_ context.Context, msg models.Message) error {
	p.Sink.Broadcast(msg)
	return nil
}
