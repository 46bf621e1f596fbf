package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"subscription-tracker/internal/domain"
	"subscription-tracker/internal/domain/model"
	"subscription-tracker/internal/domain/ports/repository"
)

// Ensure interface compliance
var _ repository.SubscriptionRepository = (*SubscriptionRepo)(nil)

type SubscriptionRepo struct {
	pool *pgxpool.Pool
}

func NewSubscriptionRepo(pool *pgxpool.Pool) *SubscriptionRepo {
	return &SubscriptionRepo{pool: pool}
}

const subscriptionCols = `id, user_id, name, amount_cents, currency, billing_cycle, start_date, next_billing_date, status, created_at`

func (r *SubscriptionRepo) Save(ctx context.Context, s *model.Subscription) error {
	const sql = `
INSERT INTO subscriptions (` + subscriptionCols + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (id) DO UPDATE SET
  name=$3, amount_cents=$4, currency=$5, billing_cycle=$6,
  start_date=$7, next_billing_date=$8, status=$9;`

	_, err := r.pool.Exec(ctx, sql,
		s.ID, s.UserID, s.Name, s.AmountCents, s.Currency, s.BillingCycle,
		s.StartDate, s.NextBillingDate, s.Status, s.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrAlreadyExists
		}
		return storeErr("Save subscription", err)
	}
	return nil
}

func (r *SubscriptionRepo) FindByID(ctx context.Context, id string) (*model.Subscription, error) {
	const sql = `SELECT ` + subscriptionCols + ` FROM subscriptions WHERE id = $1;`
	return r.queryOne(ctx, sql, id)
}

func (r *SubscriptionRepo) ListByUser(ctx context.Context, userID string) ([]*model.Subscription, error) {
	const sql = `
SELECT ` + subscriptionCols + `
  FROM subscriptions
 WHERE user_id = $1
 ORDER BY created_at DESC;`
	return r.queryMany(ctx, sql, userID)
}

// ListDue selects renewal candidates with the same predicate as model.IsDue:
// active and next_billing_date <= asOf, date-only.
func (r *SubscriptionRepo) ListDue(ctx context.Context, asOf time.Time, limit int) ([]*model.Subscription, error) {
	const sql = `
SELECT ` + subscriptionCols + `
  FROM subscriptions
 WHERE status = 'active' AND next_billing_date <= $1
 ORDER BY next_billing_date
 LIMIT $2;`
	return r.queryMany(ctx, sql, asOf, limit)
}

func (r *SubscriptionRepo) UpdateNextBilling(ctx context.Context, id string, next time.Time) error {
	const sql = `UPDATE subscriptions SET next_billing_date = $2 WHERE id = $1;`
	tag, err := r.pool.Exec(ctx, sql, id, next)
	if err != nil {
		return storeErr("UpdateNextBilling", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *SubscriptionRepo) queryOne(ctx context.Context, sql string, args ...interface{}) (*model.Subscription, error) {
	row := r.pool.QueryRow(ctx, sql, args...)
	s, err := scanSubscription(row)
	if err != nil {
		return nil, storeErr("query subscription", err)
	}
	return s, nil
}

func (r *SubscriptionRepo) queryMany(ctx context.Context, sql string, args ...interface{}) ([]*model.Subscription, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, storeErr("query subscriptions", err)
	}
	defer rows.Close()
	return scanSubscriptions(rows)
}

// scanSubscriptions drains rows and surfaces mid-stream failures: Next()
// returning false on a broken connection must not pass a truncated list off
// as a complete result.
func scanSubscriptions(rows pgx.Rows) ([]*model.Subscription, error) {
	var out []*model.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, storeErr("scan subscription", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("read subscriptions", err)
	}
	return out, nil
}

func scanSubscription(row pgx.Row) (*model.Subscription, error) {
	var s model.Subscription
	err := row.Scan(
		&s.ID, &s.UserID, &s.Name, &s.AmountCents, &s.Currency, &s.BillingCycle,
		&s.StartDate, &s.NextBillingDate, &s.Status, &s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	// Billing dates are date-only throughout the engine.
	s.StartDate = model.DateOnly(s.StartDate)
	s.NextBillingDate = model.DateOnly(s.NextBillingDate)
	return &s, nil
}
