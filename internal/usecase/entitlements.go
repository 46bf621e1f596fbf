package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"subscription-tracker/internal/domain/model"
	"subscription-tracker/internal/domain/ports/repository"
	"subscription-tracker/internal/entcache"
)

// EntitlementTTLs is the one coherent cache policy for entitlement resources.
// Plan data changes only on upgrade/downgrade, so it carries a long TTL;
// quota counters move with every recorded action and stay fresh mostly via
// explicit invalidation, so their TTL is short.
type EntitlementTTLs struct {
	Plan         time.Duration
	Quota        time.Duration
	FetchTimeout time.Duration
}

// DefaultEntitlementTTLs: plan 30m, quota 30s.
func DefaultEntitlementTTLs() EntitlementTTLs {
	return EntitlementTTLs{
		Plan:         30 * time.Minute,
		Quota:        30 * time.Second,
		FetchTimeout: 10 * time.Second,
	}
}

// Entitlements resolves a user's plan and quota usage through per-resource
// caches over the entitlement store. It is the only path the engine uses to
// read entitlement data.
type Entitlements struct {
	store      repository.EntitlementStore
	plans      *entcache.Cache[*model.SubscriptionPlan]
	quotas     *entcache.Cache[model.QuotaUsage]
	quotaLists *entcache.Cache[[]model.QuotaUsage]
}

func NewEntitlements(store repository.EntitlementStore, ttls EntitlementTTLs, logger *zerolog.Logger) *Entitlements {
	return &Entitlements{
		store: store,
		plans: entcache.New[*model.SubscriptionPlan](entcache.Options{
			Name:         "plan",
			TTL:          ttls.Plan,
			FetchTimeout: ttls.FetchTimeout,
		}, logger),
		quotas: entcache.New[model.QuotaUsage](entcache.Options{
			Name:         "quota",
			TTL:          ttls.Quota,
			FetchTimeout: ttls.FetchTimeout,
		}, logger),
		quotaLists: entcache.New[[]model.QuotaUsage](entcache.Options{
			Name:         "quota_list",
			TTL:          ttls.Quota,
			FetchTimeout: ttls.FetchTimeout,
		}, logger),
	}
}

func planKey(userID string) string { return "plan:" + userID }
func quotaKey(userID string, qt model.QuotaType) string {
	return fmt.Sprintf("quota:%s:%s", userID, qt)
}
func quotaListKey(userID string) string { return "quotas:" + userID }

// Plan returns the user's plan, cached. Store errors pass through untouched;
// retry policy belongs to the caller.
func (e *Entitlements) Plan(ctx context.Context, userID string) (*model.SubscriptionPlan, error) {
	return e.plans.Get(ctx, planKey(userID), userID, func(ctx context.Context) (*model.SubscriptionPlan, error) {
		return e.store.FetchPlan(ctx, userID)
	})
}

// Quota returns one usage counter for the user, cached.
func (e *Entitlements) Quota(ctx context.Context, userID string, qt model.QuotaType) (model.QuotaUsage, error) {
	return e.quotas.Get(ctx, quotaKey(userID, qt), userID, func(ctx context.Context) (model.QuotaUsage, error) {
		return e.store.FetchQuotaUsage(ctx, userID, qt)
	})
}

// AllQuotas returns every usage counter for the user, cached as one list.
func (e *Entitlements) AllQuotas(ctx context.Context, userID string) ([]model.QuotaUsage, error) {
	return e.quotaLists.Get(ctx, quotaListKey(userID), userID, func(ctx context.Context) ([]model.QuotaUsage, error) {
		return e.store.FetchAllQuotaUsage(ctx, userID)
	})
}

// InvalidateQuota drops the cached counter and list for one quota type so the
// next read reflects a just-recorded increment.
func (e *Entitlements) InvalidateQuota(userID string, qt model.QuotaType) {
	e.quotas.Invalidate(quotaKey(userID, qt))
	e.quotaLists.Invalidate(quotaListKey(userID))
}

// InvalidatePlan forces the next plan read to fetch, used after an
// upgrade/downgrade lands.
func (e *Entitlements) InvalidatePlan(userID string) {
	e.plans.Invalidate(planKey(userID))
}

// InvalidateUser drops everything cached for a user (logout, user switch).
func (e *Entitlements) InvalidateUser(userID string) {
	e.plans.InvalidateUser(userID)
	e.quotas.InvalidateUser(userID)
	e.quotaLists.InvalidateUser(userID)
}
