package repository

import (
	"context"

	"subscription-tracker/internal/domain/model"
)

// EntitlementStore is the source of truth for a user's plan, quota counters
// and permission grants. The engine only ever reads it through the
// entitlement cache, except for IncrementQuota which is a direct command.
//
// Implementations map transport failures to domain.ErrStoreUnavailable and a
// user with no assigned plan to domain.ErrNotFound.
type EntitlementStore interface {
	FetchPlan(ctx context.Context, userID string) (*model.SubscriptionPlan, error)
	FetchQuotaUsage(ctx context.Context, userID string, qt model.QuotaType) (model.QuotaUsage, error)
	FetchAllQuotaUsage(ctx context.Context, userID string) ([]model.QuotaUsage, error)
	// IncrementQuota adds amount to a usage counter. It is not retried by the
	// engine; callers decide what to do with a failure.
	IncrementQuota(ctx context.Context, userID string, qt model.QuotaType, amount int) error
}
