package usecase

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"subscription-tracker/internal/domain/model"
	"subscription-tracker/internal/domain/ports/repository"
	"subscription-tracker/internal/infra/logging"
)

// Compile-time check
var _ SubscriptionUseCase = (*subscriptionUC)(nil)

// SubscriptionUseCase implements the tracked-subscription operations the API
// exposes. Creation is quota-aware: it runs behind a permission guard and
// records subscription_count usage when it succeeds.
type SubscriptionUseCase interface {
	Create(ctx context.Context, userID, name string, amountCents int64, currency string, cycle model.BillingCycle, startDate time.Time) (*model.Subscription, Decision, error)
	Get(ctx context.Context, id string) (*model.Subscription, error)
	ListByUser(ctx context.Context, userID string) ([]*model.Subscription, error)
}

type subscriptionUC struct {
	subs    repository.SubscriptionRepository
	perms   PermissionUseCase
	quotaUC QuotaUseCase
	log     *zerolog.Logger
}

func NewSubscriptionUseCase(subs repository.SubscriptionRepository, perms PermissionUseCase, quotaUC QuotaUseCase, logger *zerolog.Logger) *subscriptionUC {
	l := logger.With().Str("component", "SubscriptionUC").Logger()
	return &subscriptionUC{subs: subs, perms: perms, quotaUC: quotaUC, log: &l}
}

// Create records a new subscription after a fresh permission + quota check.
// A denial comes back in the Decision with a nil subscription and nil error;
// the caller renders the reason and the upgrade prompt.
func (u *subscriptionUC) Create(ctx context.Context, userID, name string, amountCents int64, currency string, cycle model.BillingCycle, startDate time.Time) (*model.Subscription, Decision, error) {
	defer logging.TraceDuration(u.log, "SubscriptionUC.Create")()

	var created *model.Subscription
	var denied Decision
	err := u.perms.Guard(ctx, userID, model.CapabilityCreateSubscription, model.QuotaSubscriptionCount,
		func(ctx context.Context) error {
			s, err := model.NewSubscription(ulid.Make().String(), userID, name, amountCents, currency, cycle, startDate)
			if err != nil {
				return err
			}
			if err := u.subs.Save(ctx, s); err != nil {
				return err
			}
			created = s
			// Best effort: a failed increment leaves the counter stale by
			// one until the next fetch, never blocks the create.
			if ok := u.quotaUC.RecordUsage(ctx, model.QuotaSubscriptionCount, 1, userID); !ok {
				u.log.Warn().Str("user_id", userID).Msg("subscription_count increment failed after create")
			}
			return nil
		},
		func(d Decision) { denied = d },
	)
	if err != nil {
		return nil, Decision{}, err
	}
	if created == nil {
		return nil, denied, nil
	}
	return created, Decision{Allowed: true}, nil
}

func (u *subscriptionUC) Get(ctx context.Context, id string) (*model.Subscription, error) {
	return u.subs.FindByID(ctx, id)
}

func (u *subscriptionUC) ListByUser(ctx context.Context, userID string) ([]*model.Subscription, error) {
	return u.subs.ListByUser(ctx, userID)
}
