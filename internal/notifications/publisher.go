package notifications

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"breaksphere/internal/cache"
	"breaksphere/internal/middleware"
	"breaksphere/internal/models"
	"breaksphere/internal/observability"
)

const defaultHintTimeout = 2 * time.Second

// HintPublisher drops cached renderings for mutated entities and announces
// the change. Work runs in the background and never fails the caller.
type HintPublisher struct {
	notifier *Notifier
	hub      *Hub
	timeout  time.Duration
	wg       sync.WaitGroup
}

// NewHintPublisher wires a publisher. Without Redis, hints go straight to the
// local hub.
func NewHintPublisher(n *Notifier, hub *Hub) *HintPublisher {
	return &HintPublisher{notifier: n, hub: hub, timeout: defaultHintTimeout}
}

// Invalidate schedules cache eviction and hint delivery for hint.
func (p *HintPublisher) Invalidate(ctx context.Context, hint models.StaleHint) {
	if len(hint.IDs) == 0 {
		return
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
		defer cancel()
		p.deliver(ctx, hint)
	}()
}

func (p *HintPublisher) deliver(ctx context.Context, hint models.StaleHint) {
	switch hint.Entity {
	case models.HintProfile:
		cache.InvalidateProfiles(ctx, hint.IDs...)
	case models.HintPost:
		cache.InvalidatePosts(ctx, hint.IDs...)
	}
	observability.HintsPublished.WithLabelValues(string(hint.Entity)).Inc()

	if p.notifier != nil && p.notifier.rdb != nil {
		err := p.notifier.PublishStale(ctx, hint)
		if err == nil {
			return
		}
		middleware.Logger.WarnContext(ctx, "publish stale hint failed, delivering locally", "error", err)
	}
	if p.hub == nil {
		return
	}
	payload, err := json.Marshal(hint)
	if err != nil {
		middleware.Logger.ErrorContext(ctx, "marshal stale hint", "error", err)
		return
	}
	p.hub.Fanout(payload)
}

// Wait blocks until every scheduled hint has been handled.
func (p *HintPublisher) Wait() {
	p.wg.Wait()
}
