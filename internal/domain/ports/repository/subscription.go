package repository

import (
	"context"
	"time"

	"subscription-tracker/internal/domain/model"
)

type SubscriptionRepository interface {
	Save(ctx context.Context, s *model.Subscription) error
	FindByID(ctx context.Context, id string) (*model.Subscription, error)
	ListByUser(ctx context.Context, userID string) ([]*model.Subscription, error)
	// ListDue returns active subscriptions whose next billing date is on or
	// before asOf, oldest first, capped at limit. The SQL predicate must stay
	// semantically identical to model.IsDue.
	ListDue(ctx context.Context, asOf time.Time, limit int) ([]*model.Subscription, error)
	// UpdateNextBilling advances a subscription's next billing date after a
	// renewal has been executed.
	UpdateNextBilling(ctx context.Context, id string, next time.Time) error
}
