package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"subscription-tracker/internal/domain"
	"subscription-tracker/internal/domain/model"
	"subscription-tracker/internal/domain/ports/repository"
)

// Ensure interface compliance
var _ repository.EntitlementStore = (*EntitlementStore)(nil)

// EntitlementStore reads plan assignments, quota ceilings and usage counters
// from Postgres. This is the single source of truth the entitlement cache
// sits in front of.
type EntitlementStore struct {
	pool *pgxpool.Pool
}

func NewEntitlementStore(pool *pgxpool.Pool) *EntitlementStore {
	return &EntitlementStore{pool: pool}
}

// storeErr keeps the operation and driver detail in the message while making
// the failure classifiable with errors.Is against the domain sentinels.
func storeErr(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	return fmt.Errorf("%s: %v: %w", op, err, domain.ErrStoreUnavailable)
}

func (s *EntitlementStore) FetchPlan(ctx context.Context, userID string) (*model.SubscriptionPlan, error) {
	const planSQL = `
SELECT p.id, p.name, p.created_at
  FROM user_plans up
  JOIN subscription_plans p ON p.id = up.plan_id
 WHERE up.user_id = $1;`

	row := s.pool.QueryRow(ctx, planSQL, userID)
	plan := &model.SubscriptionPlan{
		Permissions: map[model.Capability]struct{}{},
		Quotas:      map[model.QuotaType]int{},
		Features:    map[string]bool{},
	}
	if err := row.Scan(&plan.ID, &plan.Name, &plan.CreatedAt); err != nil {
		return nil, storeErr("FetchPlan", err)
	}

	const permsSQL = `SELECT capability FROM plan_permissions WHERE plan_id = $1;`
	rows, err := s.pool.Query(ctx, permsSQL, plan.ID)
	if err != nil {
		return nil, storeErr("FetchPlan permissions", err)
	}
	defer rows.Close()
	for rows.Next() {
		var c model.Capability
		if err := rows.Scan(&c); err != nil {
			return nil, storeErr("FetchPlan permissions", err)
		}
		plan.Permissions[c] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		// A truncated permission set must never be served as a plan.
		return nil, storeErr("FetchPlan permissions", err)
	}

	const quotasSQL = `SELECT quota_type, quota_limit FROM plan_quotas WHERE plan_id = $1;`
	qrows, err := s.pool.Query(ctx, quotasSQL, plan.ID)
	if err != nil {
		return nil, storeErr("FetchPlan quotas", err)
	}
	defer qrows.Close()
	for qrows.Next() {
		var qt model.QuotaType
		var limit int
		if err := qrows.Scan(&qt, &limit); err != nil {
			return nil, storeErr("FetchPlan quotas", err)
		}
		plan.Quotas[qt] = limit
	}
	if err := qrows.Err(); err != nil {
		return nil, storeErr("FetchPlan quotas", err)
	}

	const featuresSQL = `SELECT feature_key, enabled FROM plan_features WHERE plan_id = $1;`
	frows, err := s.pool.Query(ctx, featuresSQL, plan.ID)
	if err != nil {
		return nil, storeErr("FetchPlan features", err)
	}
	defer frows.Close()
	for frows.Next() {
		var key string
		var enabled bool
		if err := frows.Scan(&key, &enabled); err != nil {
			return nil, storeErr("FetchPlan features", err)
		}
		plan.Features[key] = enabled
	}
	if err := frows.Err(); err != nil {
		return nil, storeErr("FetchPlan features", err)
	}

	return plan, nil
}

func (s *EntitlementStore) FetchQuotaUsage(ctx context.Context, userID string, qt model.QuotaType) (model.QuotaUsage, error) {
	const sql = `
SELECT COALESCE(q.quota_limit, 0), COALESCE(u.used, 0), u.reset_date
  FROM user_plans up
  LEFT JOIN plan_quotas q ON q.plan_id = up.plan_id AND q.quota_type = $2
  LEFT JOIN quota_usage u ON u.user_id = up.user_id AND u.quota_type = $2
 WHERE up.user_id = $1;`

	usage := model.QuotaUsage{Type: qt}
	row := s.pool.QueryRow(ctx, sql, userID, qt)
	if err := row.Scan(&usage.Limit, &usage.Used, &usage.ResetDate); err != nil {
		return model.QuotaUsage{}, storeErr("FetchQuotaUsage", err)
	}
	return usage, nil
}

func (s *EntitlementStore) FetchAllQuotaUsage(ctx context.Context, userID string) ([]model.QuotaUsage, error) {
	const sql = `
SELECT q.quota_type, q.quota_limit, COALESCE(u.used, 0), u.reset_date
  FROM user_plans up
  JOIN plan_quotas q ON q.plan_id = up.plan_id
  LEFT JOIN quota_usage u ON u.user_id = up.user_id AND u.quota_type = q.quota_type
 WHERE up.user_id = $1
 ORDER BY q.quota_type;`

	rows, err := s.pool.Query(ctx, sql, userID)
	if err != nil {
		return nil, storeErr("FetchAllQuotaUsage", err)
	}
	defer rows.Close()
	return scanQuotaUsages(rows)
}

// scanQuotaUsages drains rows, treating a mid-stream failure as a store
// error rather than a shorter list.
func scanQuotaUsages(rows pgx.Rows) ([]model.QuotaUsage, error) {
	var out []model.QuotaUsage
	for rows.Next() {
		var u model.QuotaUsage
		if err := rows.Scan(&u.Type, &u.Limit, &u.Used, &u.ResetDate); err != nil {
			return nil, storeErr("FetchAllQuotaUsage", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("FetchAllQuotaUsage", err)
	}
	return out, nil
}

func (s *EntitlementStore) IncrementQuota(ctx context.Context, userID string, qt model.QuotaType, amount int) error {
	const sql = `
INSERT INTO quota_usage (user_id, quota_type, used)
VALUES ($1, $2, $3)
ON CONFLICT (user_id, quota_type) DO UPDATE
  SET used = quota_usage.used + EXCLUDED.used;`

	if _, err := s.pool.Exec(ctx, sql, userID, qt, amount); err != nil {
		return storeErr("IncrementQuota", err)
	}
	return nil
}
