//go:build !integration

package usecase

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"subscription-tracker/internal/domain/model"
	"subscription-tracker/internal/domain/ports/repository"
)

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// mockEntitlementStore lets each test pin the behavior it needs and counts
// underlying fetches so cache behavior is observable.
type mockEntitlementStore struct {
	FetchPlanFunc         func(ctx context.Context, userID string) (*model.SubscriptionPlan, error)
	FetchQuotaUsageFunc   func(ctx context.Context, userID string, qt model.QuotaType) (model.QuotaUsage, error)
	FetchAllQuotaFunc     func(ctx context.Context, userID string) ([]model.QuotaUsage, error)
	IncrementQuotaFunc    func(ctx context.Context, userID string, qt model.QuotaType, amount int) error
	planFetches           int64
	quotaFetches          int64
	quotaListFetches      int64
	incrementCalls        int64
	lastIncrementedAmount int64
}

var _ repository.EntitlementStore = (*mockEntitlementStore)(nil)

func (m *mockEntitlementStore) FetchPlan(ctx context.Context, userID string) (*model.SubscriptionPlan, error) {
	atomic.AddInt64(&m.planFetches, 1)
	if m.FetchPlanFunc != nil {
		return m.FetchPlanFunc(ctx, userID)
	}
	return &model.SubscriptionPlan{ID: "plan-free", Name: "Free"}, nil
}

func (m *mockEntitlementStore) FetchQuotaUsage(ctx context.Context, userID string, qt model.QuotaType) (model.QuotaUsage, error) {
	atomic.AddInt64(&m.quotaFetches, 1)
	if m.FetchQuotaUsageFunc != nil {
		return m.FetchQuotaUsageFunc(ctx, userID, qt)
	}
	return model.QuotaUsage{Type: qt}, nil
}

func (m *mockEntitlementStore) FetchAllQuotaUsage(ctx context.Context, userID string) ([]model.QuotaUsage, error) {
	atomic.AddInt64(&m.quotaListFetches, 1)
	if m.FetchAllQuotaFunc != nil {
		return m.FetchAllQuotaFunc(ctx, userID)
	}
	return nil, nil
}

func (m *mockEntitlementStore) IncrementQuota(ctx context.Context, userID string, qt model.QuotaType, amount int) error {
	atomic.AddInt64(&m.incrementCalls, 1)
	atomic.StoreInt64(&m.lastIncrementedAmount, int64(amount))
	if m.IncrementQuotaFunc != nil {
		return m.IncrementQuotaFunc(ctx, userID, qt, amount)
	}
	return nil
}

type mockSubscriptionRepo struct {
	SaveFunc              func(ctx context.Context, s *model.Subscription) error
	FindByIDFunc          func(ctx context.Context, id string) (*model.Subscription, error)
	ListByUserFunc        func(ctx context.Context, userID string) ([]*model.Subscription, error)
	ListDueFunc           func(ctx context.Context, asOf time.Time, limit int) ([]*model.Subscription, error)
	UpdateNextBillingFunc func(ctx context.Context, id string, next time.Time) error
	saved                 []*model.Subscription
}

var _ repository.SubscriptionRepository = (*mockSubscriptionRepo)(nil)

func (m *mockSubscriptionRepo) Save(ctx context.Context, s *model.Subscription) error {
	if m.SaveFunc != nil {
		if err := m.SaveFunc(ctx, s); err != nil {
			return err
		}
	}
	m.saved = append(m.saved, s)
	return nil
}

func (m *mockSubscriptionRepo) FindByID(ctx context.Context, id string) (*model.Subscription, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, id)
	}
	for _, s := range m.saved {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, nil
}

func (m *mockSubscriptionRepo) ListByUser(ctx context.Context, userID string) ([]*model.Subscription, error) {
	if m.ListByUserFunc != nil {
		return m.ListByUserFunc(ctx, userID)
	}
	var out []*model.Subscription
	for _, s := range m.saved {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockSubscriptionRepo) ListDue(ctx context.Context, asOf time.Time, limit int) ([]*model.Subscription, error) {
	if m.ListDueFunc != nil {
		return m.ListDueFunc(ctx, asOf, limit)
	}
	return nil, nil
}

func (m *mockSubscriptionRepo) UpdateNextBilling(ctx context.Context, id string, next time.Time) error {
	if m.UpdateNextBillingFunc != nil {
		return m.UpdateNextBillingFunc(ctx, id, next)
	}
	return nil
}

// newTestEntitlements builds the cache stack over a mock store with real
// production TTLs; tests that need expiry use their own short TTLs.
func newTestEntitlements(store repository.EntitlementStore) *Entitlements {
	return NewEntitlements(store, DefaultEntitlementTTLs(), testLogger())
}

func proPlan() *model.SubscriptionPlan {
	return &model.SubscriptionPlan{
		ID:   "plan-pro",
		Name: "Pro",
		Permissions: map[model.Capability]struct{}{
			model.CapabilityCreateSubscription: {},
			model.CapabilityExportData:         {},
			model.CapabilityAPIAccess:          {},
		},
		Quotas: map[model.QuotaType]int{},
	}
}

func freePlan() *model.SubscriptionPlan {
	return &model.SubscriptionPlan{
		ID:   "plan-free",
		Name: "Free",
		Permissions: map[model.Capability]struct{}{
			model.CapabilityCreateSubscription: {},
		},
		Quotas: map[model.QuotaType]int{
			model.QuotaSubscriptionCount: 5,
			model.QuotaExportCount:       1,
		},
	}
}
