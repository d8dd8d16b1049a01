// Package events delivers lifecycle events over Redis pub/sub, where the
// gateway forwards them to clients and the notification worker fans them out.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"alumnet/engagement-service/internal/lifecycle"
)

// RedisPublisher publishes each event on a channel named after its type.
type RedisPublisher struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisPublisher returns a publisher. prefix, when set, is prepended to
// every channel name ("prod:" → "prod:EVENT_PROPOSAL_ACCEPTED").
func NewRedisPublisher(rdb *redis.Client, prefix string) *RedisPublisher {
	return &RedisPublisher{rdb: rdb, prefix: prefix}
}

// Publish implements lifecycle.Publisher.
func (p *RedisPublisher) Publish(ctx context.Context, e lifecycle.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", e.Type, err)
	}
	if err := p.rdb.Publish(ctx, p.prefix+e.Type, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", e.Type, err)
	}
	return nil
}

// Channels lists every channel this service publishes on.
func Channels(prefix string) []string {
	types := []string{
		lifecycle.EventProposalCreated,
		lifecycle.EventProposalAccepted,
		lifecycle.EventProposalRejected,
		lifecycle.EventProposalWithdrawn,
		lifecycle.EventListingToggled,
	}
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = prefix + t
	}
	return out
}
