package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"subscription-tracker/internal/config"
	pg "subscription-tracker/internal/infra/db/postgres"
)

// Seeds the schema plus the two stock plans so a fresh environment can serve
// entitlement lookups immediately.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	schema := []string{
		`CREATE TABLE IF NOT EXISTS subscription_plans (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE TABLE IF NOT EXISTS plan_permissions (
			plan_id    TEXT NOT NULL REFERENCES subscription_plans(id),
			capability TEXT NOT NULL,
			PRIMARY KEY (plan_id, capability)
		);`,
		`CREATE TABLE IF NOT EXISTS plan_quotas (
			plan_id     TEXT NOT NULL REFERENCES subscription_plans(id),
			quota_type  TEXT NOT NULL,
			quota_limit INT  NOT NULL,
			PRIMARY KEY (plan_id, quota_type)
		);`,
		`CREATE TABLE IF NOT EXISTS plan_features (
			plan_id     TEXT NOT NULL REFERENCES subscription_plans(id),
			feature_key TEXT NOT NULL,
			enabled     BOOLEAN NOT NULL DEFAULT false,
			PRIMARY KEY (plan_id, feature_key)
		);`,
		`CREATE TABLE IF NOT EXISTS user_plans (
			user_id TEXT PRIMARY KEY,
			plan_id TEXT NOT NULL REFERENCES subscription_plans(id)
		);`,
		`CREATE TABLE IF NOT EXISTS quota_usage (
			user_id    TEXT NOT NULL,
			quota_type TEXT NOT NULL,
			used       INT  NOT NULL DEFAULT 0,
			reset_date TIMESTAMPTZ,
			PRIMARY KEY (user_id, quota_type)
		);`,
		`CREATE TABLE IF NOT EXISTS subscriptions (
			id                TEXT PRIMARY KEY,
			user_id           TEXT NOT NULL,
			name              TEXT NOT NULL,
			amount_cents      BIGINT NOT NULL,
			currency          TEXT NOT NULL,
			billing_cycle     TEXT NOT NULL,
			start_date        DATE NOT NULL,
			next_billing_date DATE NOT NULL,
			status            TEXT NOT NULL,
			created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_subscriptions_due
			ON subscriptions (next_billing_date) WHERE status = 'active';`,
	}
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			log.Fatalf("schema: %v", err)
		}
	}

	var existing int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM subscription_plans`).Scan(&existing); err != nil {
		log.Fatalf("count plans: %v", err)
	}
	if existing > 0 {
		fmt.Printf("%d plans already present. No changes.\n", existing)
		return
	}

	seed := []struct {
		stmt string
		args []interface{}
	}{
		{`INSERT INTO subscription_plans (id, name) VALUES ($1, $2)`, []interface{}{"plan-free", "Free"}},
		{`INSERT INTO subscription_plans (id, name) VALUES ($1, $2)`, []interface{}{"plan-pro", "Pro"}},

		{`INSERT INTO plan_permissions (plan_id, capability) VALUES ($1, $2)`, []interface{}{"plan-free", "create_subscription"}},
		{`INSERT INTO plan_permissions (plan_id, capability) VALUES ($1, $2)`, []interface{}{"plan-pro", "create_subscription"}},
		{`INSERT INTO plan_permissions (plan_id, capability) VALUES ($1, $2)`, []interface{}{"plan-pro", "export_data"}},
		{`INSERT INTO plan_permissions (plan_id, capability) VALUES ($1, $2)`, []interface{}{"plan-pro", "api_access"}},
		{`INSERT INTO plan_permissions (plan_id, capability) VALUES ($1, $2)`, []interface{}{"plan-pro", "advanced_analytics"}},

		{`INSERT INTO plan_quotas (plan_id, quota_type, quota_limit) VALUES ($1, $2, $3)`, []interface{}{"plan-free", "subscription_count", 5}},
		{`INSERT INTO plan_quotas (plan_id, quota_type, quota_limit) VALUES ($1, $2, $3)`, []interface{}{"plan-free", "export_count", 1}},
		{`INSERT INTO plan_quotas (plan_id, quota_type, quota_limit) VALUES ($1, $2, $3)`, []interface{}{"plan-pro", "subscription_count", 0}},
		{`INSERT INTO plan_quotas (plan_id, quota_type, quota_limit) VALUES ($1, $2, $3)`, []interface{}{"plan-pro", "export_count", 0}},
		{`INSERT INTO plan_quotas (plan_id, quota_type, quota_limit) VALUES ($1, $2, $3)`, []interface{}{"plan-pro", "api_calls_per_hour", 1000}},

		{`INSERT INTO plan_features (plan_id, feature_key, enabled) VALUES ($1, $2, $3)`, []interface{}{"plan-pro", "csv_export", true}},
		{`INSERT INTO plan_features (plan_id, feature_key, enabled) VALUES ($1, $2, $3)`, []interface{}{"plan-pro", "spend_forecast", true}},
	}
	for _, s := range seed {
		if _, err := pool.Exec(ctx, s.stmt, s.args...); err != nil {
			log.Fatalf("seed: %v", err)
		}
	}
	fmt.Println("Seeded plans: Free (5 subscriptions, 1 export), Pro (unlimited).")
}
