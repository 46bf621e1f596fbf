package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"subscription-tracker/internal/domain/model"
	"subscription-tracker/internal/domain/ports/repository"
)

// Compile-time check
var _ StatsUseCase = (*statsUC)(nil)

// SpendSummary is the normalized monthly cost of a user's active
// subscriptions, grouped by currency. Mixed-currency accounts get one row per
// currency; nothing is converted.
type SpendSummary struct {
	MonthlyCentsByCurrency map[string]int64
	ByCycle                map[model.BillingCycle]int
	ActiveCount            int
}

// StatsUseCase surfaces spend analytics for dashboard displays.
type StatsUseCase interface {
	MonthlySpend(ctx context.Context, userID string) (SpendSummary, error)
}

type statsUC struct {
	subs repository.SubscriptionRepository
	log  *zerolog.Logger
}

func NewStatsUseCase(subs repository.SubscriptionRepository, logger *zerolog.Logger) *statsUC {
	return &statsUC{subs: subs, log: logger}
}

func (u *statsUC) MonthlySpend(ctx context.Context, userID string) (SpendSummary, error) {
	subs, err := u.subs.ListByUser(ctx, userID)
	if err != nil {
		return SpendSummary{}, err
	}
	sum := SpendSummary{
		MonthlyCentsByCurrency: map[string]int64{},
		ByCycle:                map[model.BillingCycle]int{},
	}
	for _, s := range subs {
		if !s.IsActive() {
			continue
		}
		sum.ActiveCount++
		sum.ByCycle[s.BillingCycle]++
		sum.MonthlyCentsByCurrency[s.Currency] += monthlyCents(s)
	}
	return sum, nil
}

// monthlyCents normalizes a cycle amount to a per-month figure: 52 weeks a
// year spread over 12 months, quarters over 3, years over 12.
func monthlyCents(s *model.Subscription) int64 {
	switch s.BillingCycle {
	case model.BillingCycleWeekly:
		return s.AmountCents * 52 / 12
	case model.BillingCycleQuarterly:
		return s.AmountCents / 3
	case model.BillingCycleYearly:
		return s.AmountCents / 12
	default:
		return s.AmountCents
	}
}
