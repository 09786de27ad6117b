// Package notifications fans stale-cache hints out over Redis pub/sub and websockets.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"

	"breaksphere/internal/middleware"
	"breaksphere/internal/models"

	"github.com/redis/go-redis/v9"
)

// HintChannel is the Redis channel carrying stale hints between API instances.
const HintChannel = "hints:stale"

// Notifier publishes hints into Redis and subscribes to them.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// PublishStale sends a stale hint to every subscribed instance.
func (n *Notifier) PublishStale(ctx context.Context, hint models.StaleHint) error {
	if n.rdb == nil {
		return nil
	}
	payload, err := json.Marshal(hint)
	if err != nil {
		return fmt.Errorf("marshal hint: %w", err)
	}
	return n.rdb.Publish(ctx, HintChannel, string(payload)).Err()
}

// StartHintSubscriber subscribes to HintChannel and calls onMessage for each
// payload until ctx is cancelled.
func (n *Notifier) StartHintSubscriber(ctx context.Context, onMessage func(payload string)) error {
	if n.rdb == nil {
		return nil
	}
	sub := n.rdb.Subscribe(ctx, HintChannel)
	// Wait for the subscription to be confirmed so no publish is missed.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", HintChannel, err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							middleware.Logger.Error("panic in hint subscriber",
								"panic", r, "stack", string(debug.Stack()))
						}
					}()
					onMessage(msg.Payload)
				}()
			}
		}
	}()

	return nil
}
