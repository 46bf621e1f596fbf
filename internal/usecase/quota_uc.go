package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"subscription-tracker/internal/domain/model"
	"subscription-tracker/internal/domain/ports/repository"
	"subscription-tracker/internal/infra/logging"
	"subscription-tracker/internal/infra/metrics"
)

// Compile-time check
var _ QuotaUseCase = (*quotaUC)(nil)

// QuotaOverview is the aggregate view used by dashboard displays. The flags
// are derived by scanning the list, never cached separately.
type QuotaOverview struct {
	Usages           []model.QuotaUsage
	HasWarnings      bool
	HasLimitsReached bool
}

// QuotaUseCase surfaces a user's usage against plan limits and classifies
// urgency.
type QuotaUseCase interface {
	CheckQuota(ctx context.Context, qt model.QuotaType, userID string) (model.QuotaUsage, error)
	// RecordUsage forwards an increment to the store. On success the cached
	// counter is invalidated so the next CheckQuota reflects the new total;
	// on failure the cache is left untouched and false is returned. The
	// engine never retries on the caller's behalf.
	RecordUsage(ctx context.Context, qt model.QuotaType, amount int, userID string) bool
	AllQuotaUsage(ctx context.Context, userID string) (QuotaOverview, error)
}

type quotaUC struct {
	ent   *Entitlements
	store repository.EntitlementStore
	log   *zerolog.Logger
}

func NewQuotaUseCase(ent *Entitlements, store repository.EntitlementStore, logger *zerolog.Logger) *quotaUC {
	l := logger.With().Str("component", "QuotaUC").Logger()
	return &quotaUC{ent: ent, store: store, log: &l}
}

func (u *quotaUC) CheckQuota(ctx context.Context, qt model.QuotaType, userID string) (model.QuotaUsage, error) {
	usage, err := u.ent.Quota(ctx, userID, qt)
	if err != nil {
		return model.QuotaUsage{}, err
	}
	metrics.IncQuotaCheck(string(qt), band(usage))
	return usage, nil
}

func band(u model.QuotaUsage) string {
	switch {
	case u.IsUnlimited():
		return "unlimited"
	case u.IsAtLimit():
		return "at_limit"
	case u.IsNearLimit():
		return "warning"
	}
	return "ok"
}

func (u *quotaUC) RecordUsage(ctx context.Context, qt model.QuotaType, amount int, userID string) bool {
	defer logging.TraceDuration(u.log, "QuotaUC.RecordUsage")()

	if amount <= 0 || !qt.Valid() {
		u.log.Warn().Str("quota", string(qt)).Int("amount", amount).Msg("rejecting invalid usage record")
		return false
	}
	if err := u.store.IncrementQuota(ctx, userID, qt, amount); err != nil {
		metrics.IncQuotaRecord(string(qt), "failed")
		u.log.Error().Err(err).Str("quota", string(qt)).Str("user_id", userID).Msg("increment failed; cache left as-is")
		return false
	}
	// Invalidate before returning so the next CheckQuota observes the
	// increment. A check already in flight may be stale by this one
	// increment; the call after it is fresh.
	u.ent.InvalidateQuota(userID, qt)
	metrics.IncQuotaRecord(string(qt), "ok")
	return true
}

func (u *quotaUC) AllQuotaUsage(ctx context.Context, userID string) (QuotaOverview, error) {
	usages, err := u.ent.AllQuotas(ctx, userID)
	if err != nil {
		return QuotaOverview{}, err
	}
	ov := QuotaOverview{Usages: usages}
	for _, usage := range usages {
		if usage.IsNearLimit() {
			ov.HasWarnings = true
		}
		if usage.IsAtLimit() {
			ov.HasLimitsReached = true
		}
	}
	return ov, nil
}
