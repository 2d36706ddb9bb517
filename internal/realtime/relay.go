package realtime

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisRelay publishes events to the local broker and to a Redis channel,
// and replays events from other instances into the local broker.
type RedisRelay struct {
	client  *redis.Client
	channel string
	broker  *Broker
	origin  string
}

// NewRedisRelay wires broker to client on channel.
func NewRedisRelay(client *redis.Client, channel string, broker *Broker) *RedisRelay {
	return &RedisRelay{
		client:  client,
		channel: channel,
		broker:  broker,
		origin:  uuid.NewString(),
	}
}

// Publish delivers ev locally first, then to Redis. A Redis failure is logged
// and counted; local subscribers still receive the event.
func (r *RedisRelay) Publish(ctx context.Context, ev Event) error {
	ev.Origin = r.origin
	_ = r.broker.Publish(ctx, ev)

	b, err := json.Marshal(ev)
	if err != nil {
		relayErrors.Inc()
		return err
	}
	if err := r.client.Publish(ctx, r.channel, b).Err(); err != nil {
		relayErrors.Inc()
		log.Warn().Err(err).Str("channel", r.channel).Msg("realtime relay publish failed")
	}
	return nil
}

// Run forwards events published by other instances into the local broker
// until ctx is done.
func (r *RedisRelay) Run(ctx context.Context) error {
	ps := r.client.Subscribe(ctx, r.channel)
	defer ps.Close()

	if _, err := ps.Receive(ctx); err != nil {
		return err
	}
	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				relayErrors.Inc()
				log.Warn().Err(err).Msg("realtime relay: bad message")
				continue
			}
			if ev.Origin == r.origin {
				continue
			}
			_ = r.broker.Publish(ctx, ev)
		}
	}
}
