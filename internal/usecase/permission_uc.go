package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"subscription-tracker/internal/domain/model"
	"subscription-tracker/internal/infra/metrics"
)

// Compile-time check
var _ PermissionUseCase = (*permissionUC)(nil)

// Decision is the outcome of a permission evaluation. Reason is
// human-readable; UpgradeRequired tells the UI to prompt a plan upgrade.
type Decision struct {
	Allowed         bool
	Reason          string
	UpgradeRequired bool
}

// Action is a guarded unit of work that only runs after a fresh allow.
type Action func(ctx context.Context) error

// PermissionUseCase answers allow/deny for a named capability, optionally
// gated by a quota check. Any failure to resolve the plan is a denial, never
// an allow (fail-closed).
type PermissionUseCase interface {
	CanPerformAction(ctx context.Context, userID string, capability model.Capability, qt model.QuotaType) (Decision, error)
	// Guard runs action only after CanPerformAction allows it; on denial it
	// invokes onDenied with the decision instead and the action never runs.
	Guard(ctx context.Context, userID string, capability model.Capability, qt model.QuotaType, action Action, onDenied func(Decision)) error
}

type permissionUC struct {
	ent     *Entitlements
	quotaUC QuotaUseCase
	log     *zerolog.Logger
}

func NewPermissionUseCase(ent *Entitlements, quotaUC QuotaUseCase, logger *zerolog.Logger) *permissionUC {
	l := logger.With().Str("component", "PermissionUC").Logger()
	return &permissionUC{ent: ent, quotaUC: quotaUC, log: &l}
}

// CanPerformAction resolves the user's plan and checks the capability, then
// the optional quota gate. Pass an empty QuotaType to skip the quota check.
// The returned error is informational; the Decision alone is sufficient for
// callers that only branch on allow/deny.
func (u *permissionUC) CanPerformAction(ctx context.Context, userID string, capability model.Capability, qt model.QuotaType) (Decision, error) {
	plan, err := u.ent.Plan(ctx, userID)
	if err != nil {
		// Fail closed: a plan we cannot resolve never grants anything.
		u.log.Warn().Err(err).Str("user_id", userID).Str("capability", string(capability)).Msg("plan fetch failed; denying")
		metrics.IncPermissionDecision(string(capability), false)
		return Decision{Allowed: false, Reason: "temporarily unable to verify plan; action blocked"}, err
	}
	if !plan.HasPermission(capability) {
		metrics.IncPermissionDecision(string(capability), false)
		return Decision{
			Allowed:         false,
			Reason:          "your plan does not include " + string(capability),
			UpgradeRequired: true,
		}, nil
	}
	if qt != "" {
		usage, err := u.quotaUC.CheckQuota(ctx, qt, userID)
		if err != nil {
			u.log.Warn().Err(err).Str("user_id", userID).Str("quota", string(qt)).Msg("quota fetch failed; denying")
			metrics.IncPermissionDecision(string(capability), false)
			return Decision{Allowed: false, Reason: "temporarily unable to verify quota; action blocked"}, err
		}
		if usage.IsAtLimit() {
			metrics.IncPermissionDecision(string(capability), false)
			return Decision{
				Allowed: false,
				Reason:  "you have reached your " + string(qt) + " limit",
			}, nil
		}
	}
	metrics.IncPermissionDecision(string(capability), true)
	return Decision{Allowed: true}, nil
}

func (u *permissionUC) Guard(ctx context.Context, userID string, capability model.Capability, qt model.QuotaType, action Action, onDenied func(Decision)) error {
	dec, _ := u.CanPerformAction(ctx, userID, capability, qt)
	if !dec.Allowed {
		if onDenied != nil {
			onDenied(dec)
		}
		return nil
	}
	return action(ctx)
}
