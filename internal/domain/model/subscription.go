package model

import (
	"time"

	"subscription-tracker/internal/domain"
)

type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusPaused    SubscriptionStatus = "paused"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
)

// BillingCycle is the recurrence unit governing when a subscription charges again.
type BillingCycle string

const (
	BillingCycleWeekly    BillingCycle = "weekly"
	BillingCycleMonthly   BillingCycle = "monthly"
	BillingCycleQuarterly BillingCycle = "quarterly"
	BillingCycleYearly    BillingCycle = "yearly"
)

// Valid reports whether the cycle is a known recurrence unit. Callers must
// check this before handing a cycle to the billing date functions.
func (c BillingCycle) Valid() bool {
	switch c {
	case BillingCycleWeekly, BillingCycleMonthly, BillingCycleQuarterly, BillingCycleYearly:
		return true
	}
	return false
}

// Subscription is a user-recorded recurring expense. The engine only derives
// dates from it; user-entered fields are never mutated here.
type Subscription struct {
	ID              string // ULID
	UserID          string // UUID of owning user
	Name            string // e.g. "Netflix"
	AmountCents     int64
	Currency        string // ISO 4217
	BillingCycle    BillingCycle
	StartDate       time.Time // date-only, UTC midnight
	NextBillingDate time.Time // date-only, UTC midnight
	Status          SubscriptionStatus
	CreatedAt       time.Time
}

// NewSubscription validates and constructs a subscription. The first billing
// date is one full cycle after the start date since no charge has happened yet.
func NewSubscription(id, userID, name string, amountCents int64, currency string, cycle BillingCycle, startDate time.Time) (*Subscription, error) {
	if id == "" || userID == "" || name == "" || amountCents < 0 || !cycle.Valid() {
		return nil, domain.ErrInvalidArgument
	}
	if currency == "" {
		currency = "USD"
	}
	start := DateOnly(startDate)
	return &Subscription{
		ID:              id,
		UserID:          userID,
		Name:            name,
		AmountCents:     amountCents,
		Currency:        currency,
		BillingCycle:    cycle,
		StartDate:       start,
		NextBillingDate: NextBillingDateForNew(start, cycle),
		Status:          SubscriptionStatusActive,
		CreatedAt:       time.Now(),
	}, nil
}

func (s *Subscription) IsActive() bool { return s != nil && s.Status == SubscriptionStatusActive }
