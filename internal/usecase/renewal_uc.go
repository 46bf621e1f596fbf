package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"subscription-tracker/internal/domain/model"
	"subscription-tracker/internal/domain/ports/repository"
	"subscription-tracker/internal/infra/logging"
	"subscription-tracker/internal/infra/metrics"
)

// Compile-time check
var _ RenewalUseCase = (*renewalUC)(nil)

// RenewalResult summarizes one batch run.
type RenewalResult struct {
	Processed int
	Failed    int
}

// RenewalUseCase owns the due-date predicate and the batch that advances due
// subscriptions to their next billing date. The SQL behind ListDue and
// model.IsDue are the same contract; keep them in sync.
type RenewalUseCase interface {
	NextBillingDate(s *model.Subscription, asOf time.Time) time.Time
	IsDue(s *model.Subscription, asOf time.Time) bool
	ListDue(ctx context.Context, asOf time.Time, limit int) ([]*model.Subscription, error)
	RenewBatch(ctx context.Context, limit int) (RenewalResult, error)
}

type renewalUC struct {
	subs repository.SubscriptionRepository
	log  *zerolog.Logger
}

func NewRenewalUseCase(subs repository.SubscriptionRepository, logger *zerolog.Logger) *renewalUC {
	l := logger.With().Str("component", "RenewalUC").Logger()
	return &renewalUC{subs: subs, log: &l}
}

// NextBillingDate returns the first cycle boundary after asOf, anchored to
// the subscription's original start date so the billing day-of-month is
// preserved across renewals.
func (u *renewalUC) NextBillingDate(s *model.Subscription, asOf time.Time) time.Time {
	return model.NextBillingDateFromStart(s.StartDate, asOf, s.BillingCycle)
}

func (u *renewalUC) IsDue(s *model.Subscription, asOf time.Time) bool {
	return s.IsActive() && model.IsDue(s.NextBillingDate, asOf)
}

func (u *renewalUC) ListDue(ctx context.Context, asOf time.Time, limit int) ([]*model.Subscription, error) {
	if limit <= 0 {
		limit = 100
	}
	return u.subs.ListDue(ctx, model.DateOnly(asOf), limit)
}

// RenewBatch advances every due subscription by as many cycles as needed to
// land strictly in the future. Per-item failures are counted and the batch
// keeps going; failed items remain due and are retried on the next run.
func (u *renewalUC) RenewBatch(ctx context.Context, limit int) (RenewalResult, error) {
	defer logging.TraceDuration(u.log, "RenewalUC.RenewBatch")()
	start := time.Now()

	today := model.DateOnly(time.Now())
	due, err := u.ListDue(ctx, today, limit)
	if err != nil {
		return RenewalResult{}, err
	}

	var res RenewalResult
	for _, s := range due {
		next := model.NextBillingDateFromStart(s.StartDate, today, s.BillingCycle)
		if err := u.subs.UpdateNextBilling(ctx, s.ID, next); err != nil {
			res.Failed++
			u.log.Error().Err(err).Str("subscription_id", s.ID).Msg("renewal failed")
			continue
		}
		res.Processed++
		u.log.Debug().
			Str("subscription_id", s.ID).
			Str("next_billing", model.FormatDate(next)).
			Msg("subscription renewed")
	}

	metrics.AddRenewalsProcessed(res.Processed)
	metrics.AddRenewalsFailed(res.Failed)
	metrics.ObserveRenewalBatch(time.Since(start).Seconds())
	if res.Processed > 0 || res.Failed > 0 {
		u.log.Info().Int("processed", res.Processed).Int("failed", res.Failed).Msg("renewal batch done")
	}
	return res, nil
}
