// Package service holds the feed, mutation and profile use cases.
package service

import (
	"context"

	"breaksphere/internal/models"
)

// Invalidator is told about every committed mutation so derived renderings can
// be dropped. Implementations must not block the caller.
type Invalidator interface {
	Invalidate(ctx context.Context, hint models.StaleHint)
}

type nopInvalidator struct{}

func (nopInvalidator) Invalidate(context.Context, models.StaleHint) {}

func orNop(inv Invalidator) Invalidator {
	if inv == nil {
		return nopInvalidator{}
	}
	return inv
}

func requireUser(userID string) error {
	if userID == "" {
		return models.NewUnauthorizedError("Sign in required")
	}
	return nil
}
