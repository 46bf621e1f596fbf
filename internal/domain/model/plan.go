package model

import (
	"time"

	"subscription-tracker/internal/domain"
)

// Capability is a named action a plan may grant.
type Capability string

const (
	CapabilityCreateSubscription Capability = "create_subscription"
	CapabilityExportData         Capability = "export_data"
	CapabilityAPIAccess          Capability = "api_access"
	CapabilityAdvancedAnalytics  Capability = "advanced_analytics"
)

func (c Capability) Valid() bool {
	switch c {
	case CapabilityCreateSubscription, CapabilityExportData, CapabilityAPIAccess, CapabilityAdvancedAnalytics:
		return true
	}
	return false
}

// SubscriptionPlan is a user's entitlement bundle: granted capabilities,
// quota ceilings, and feature toggles. Plans change only on upgrade or
// downgrade, which is why plan data carries the long cache TTL.
type SubscriptionPlan struct {
	ID          string
	Name        string
	Permissions map[Capability]struct{}
	Quotas      map[QuotaType]int
	Features    map[string]bool
	CreatedAt   time.Time
}

func (p *SubscriptionPlan) IsZero() bool { return p == nil || p.ID == "" }

// HasPermission is a pure membership test against already-resolved plan data.
func (p *SubscriptionPlan) HasPermission(c Capability) bool {
	if p.IsZero() {
		return false
	}
	_, ok := p.Permissions[c]
	return ok
}

// QuotaLimit returns the plan's ceiling for a quota type; 0 (or a negative
// configured value) means unlimited, as does a quota the plan never mentions.
func (p *SubscriptionPlan) QuotaLimit(qt QuotaType) int {
	if p.IsZero() {
		return 0
	}
	return p.Quotas[qt]
}

func (p *SubscriptionPlan) HasFeature(key string) bool {
	return !p.IsZero() && p.Features[key]
}

// NewSubscriptionPlan validates and constructs a plan.
func NewSubscriptionPlan(id, name string, permissions []Capability, quotas map[QuotaType]int, features map[string]bool) (*SubscriptionPlan, error) {
	if id == "" || name == "" {
		return nil, domain.ErrInvalidArgument
	}
	perms := make(map[Capability]struct{}, len(permissions))
	for _, c := range permissions {
		if !c.Valid() {
			return nil, domain.ErrInvalidArgument
		}
		perms[c] = struct{}{}
	}
	if quotas == nil {
		quotas = map[QuotaType]int{}
	}
	if features == nil {
		features = map[string]bool{}
	}
	return &SubscriptionPlan{
		ID:          id,
		Name:        name,
		Permissions: perms,
		Quotas:      quotas,
		Features:    features,
		CreatedAt:   time.Now(),
	}, nil
}
