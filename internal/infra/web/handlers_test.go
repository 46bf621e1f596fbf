//go:build !integration

package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subscription-tracker/internal/domain"
	"subscription-tracker/internal/domain/model"
	"subscription-tracker/internal/usecase"
)

// ===== stub usecases =====

type stubQuotaUC struct {
	checkFunc  func(ctx context.Context, qt model.QuotaType, userID string) (model.QuotaUsage, error)
	recordFunc func(ctx context.Context, qt model.QuotaType, amount int, userID string) bool
	allFunc    func(ctx context.Context, userID string) (usecase.QuotaOverview, error)
}

func (s *stubQuotaUC) CheckQuota(ctx context.Context, qt model.QuotaType, userID string) (model.QuotaUsage, error) {
	if s.checkFunc != nil {
		return s.checkFunc(ctx, qt, userID)
	}
	return model.QuotaUsage{Type: qt, Used: 1, Limit: 5}, nil
}

func (s *stubQuotaUC) RecordUsage(ctx context.Context, qt model.QuotaType, amount int, userID string) bool {
	if s.recordFunc != nil {
		return s.recordFunc(ctx, qt, amount, userID)
	}
	return true
}

func (s *stubQuotaUC) AllQuotaUsage(ctx context.Context, userID string) (usecase.QuotaOverview, error) {
	if s.allFunc != nil {
		return s.allFunc(ctx, userID)
	}
	return usecase.QuotaOverview{}, nil
}

type stubPermUC struct {
	decision usecase.Decision
	err      error
}

func (s *stubPermUC) CanPerformAction(ctx context.Context, userID string, capability model.Capability, qt model.QuotaType) (usecase.Decision, error) {
	return s.decision, s.err
}

func (s *stubPermUC) Guard(ctx context.Context, userID string, capability model.Capability, qt model.QuotaType, action usecase.Action, onDenied func(usecase.Decision)) error {
	if !s.decision.Allowed {
		if onDenied != nil {
			onDenied(s.decision)
		}
		return nil
	}
	return action(ctx)
}

type stubSubUC struct {
	createFunc func(ctx context.Context, userID, name string, amountCents int64, currency string, cycle model.BillingCycle, startDate time.Time) (*model.Subscription, usecase.Decision, error)
	getFunc    func(ctx context.Context, id string) (*model.Subscription, error)
	listFunc   func(ctx context.Context, userID string) ([]*model.Subscription, error)
}

func (s *stubSubUC) Create(ctx context.Context, userID, name string, amountCents int64, currency string, cycle model.BillingCycle, startDate time.Time) (*model.Subscription, usecase.Decision, error) {
	if s.createFunc != nil {
		return s.createFunc(ctx, userID, name, amountCents, currency, cycle, startDate)
	}
	sub, err := model.NewSubscription("01HX0000000000000000000000", userID, name, amountCents, currency, cycle, startDate)
	if err != nil {
		return nil, usecase.Decision{}, err
	}
	return sub, usecase.Decision{Allowed: true}, nil
}

func (s *stubSubUC) Get(ctx context.Context, id string) (*model.Subscription, error) {
	if s.getFunc != nil {
		return s.getFunc(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (s *stubSubUC) ListByUser(ctx context.Context, userID string) ([]*model.Subscription, error) {
	if s.listFunc != nil {
		return s.listFunc(ctx, userID)
	}
	return nil, nil
}

type stubRenewalUC struct {
	batchFunc func(ctx context.Context, limit int) (usecase.RenewalResult, error)
}

func (s *stubRenewalUC) NextBillingDate(sub *model.Subscription, asOf time.Time) time.Time {
	return model.NextBillingDateFromStart(sub.StartDate, asOf, sub.BillingCycle)
}

func (s *stubRenewalUC) IsDue(sub *model.Subscription, asOf time.Time) bool {
	return sub.IsActive() && model.IsDue(sub.NextBillingDate, asOf)
}

func (s *stubRenewalUC) ListDue(ctx context.Context, asOf time.Time, limit int) ([]*model.Subscription, error) {
	return nil, nil
}

func (s *stubRenewalUC) RenewBatch(ctx context.Context, limit int) (usecase.RenewalResult, error) {
	if s.batchFunc != nil {
		return s.batchFunc(ctx, limit)
	}
	return usecase.RenewalResult{}, nil
}

type stubStatsUC struct {
	spendFunc func(ctx context.Context, userID string) (usecase.SpendSummary, error)
}

func (s *stubStatsUC) MonthlySpend(ctx context.Context, userID string) (usecase.SpendSummary, error) {
	if s.spendFunc != nil {
		return s.spendFunc(ctx, userID)
	}
	return usecase.SpendSummary{}, nil
}

type stubStore struct{}

func (stubStore) FetchPlan(ctx context.Context, userID string) (*model.SubscriptionPlan, error) {
	return nil, domain.ErrNotFound
}
func (stubStore) FetchQuotaUsage(ctx context.Context, userID string, qt model.QuotaType) (model.QuotaUsage, error) {
	return model.QuotaUsage{}, domain.ErrNotFound
}
func (stubStore) FetchAllQuotaUsage(ctx context.Context, userID string) ([]model.QuotaUsage, error) {
	return nil, nil
}
func (stubStore) IncrementQuota(ctx context.Context, userID string, qt model.QuotaType, amount int) error {
	return nil
}

// ===== fixture =====

type fixture struct {
	quota   *stubQuotaUC
	perm    *stubPermUC
	sub     *stubSubUC
	renewal *stubRenewalUC
	stats   *stubStatsUC
	auth    *AuthManager
	srv     *httptest.Server
	token   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zerolog.Nop()
	f := &fixture{
		quota:   &stubQuotaUC{},
		perm:    &stubPermUC{decision: usecase.Decision{Allowed: true}},
		sub:     &stubSubUC{},
		renewal: &stubRenewalUC{},
		stats:   &stubStatsUC{},
		auth:    NewAuthManager("test-secret", "test-admin-key", time.Minute),
	}
	ents := usecase.NewEntitlements(stubStore{}, usecase.DefaultEntitlementTTLs(), &logger)
	server := NewServer(f.quota, f.perm, f.sub, f.renewal, f.stats, ents, f.auth, nil, 0, &logger)
	f.srv = httptest.NewServer(server.Routes())
	t.Cleanup(f.srv.Close)

	token, err := f.auth.Mint()
	require.NoError(t, err)
	f.token = token
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, f.srv.URL+path, &buf)
	require.NoError(t, err)
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

// ===== tests =====

func TestHealth(t *testing.T) {
	f := newFixture(t)
	resp, err := http.Get(f.srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	f.token = "" // login is unauthenticated

	t.Run("valid key mints a token", func(t *testing.T) {
		resp := f.do(t, http.MethodPost, "/api/v1/login", map[string]string{"key": "test-admin-key"})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var body map[string]string
		decode(t, resp, &body)
		assert.NotEmpty(t, body["token"])

		claims, err := f.auth.Verify(body["token"])
		require.NoError(t, err)
		assert.Equal(t, "admin", claims.Role)
	})

	t.Run("wrong key is forbidden", func(t *testing.T) {
		resp := f.do(t, http.MethodPost, "/api/v1/login", map[string]string{"key": "nope"})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})
}

func TestAuthMiddleware(t *testing.T) {
	f := newFixture(t)

	t.Run("missing token is rejected", func(t *testing.T) {
		f2 := *f
		f2.token = ""
		resp := f2.do(t, http.MethodGet, "/api/v1/users/u1/quotas", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("garbage token is rejected", func(t *testing.T) {
		f2 := *f
		f2.token = "not-a-jwt"
		resp := f2.do(t, http.MethodGet, "/api/v1/users/u1/quotas", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("minted token passes", func(t *testing.T) {
		resp := f.do(t, http.MethodGet, "/api/v1/users/u1/quotas", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestQuotaEndpoints(t *testing.T) {
	t.Run("overview carries classification flags", func(t *testing.T) {
		f := newFixture(t)
		f.quota.allFunc = func(ctx context.Context, userID string) (usecase.QuotaOverview, error) {
			return usecase.QuotaOverview{
				Usages: []model.QuotaUsage{
					{Type: model.QuotaSubscriptionCount, Used: 4, Limit: 5},
					{Type: model.QuotaExportCount, Used: 1, Limit: 1},
				},
				HasWarnings:      true,
				HasLimitsReached: true,
			}, nil
		}

		resp := f.do(t, http.MethodGet, "/api/v1/users/u1/quotas", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			Usages []struct {
				Type        string  `json:"type"`
				Percentage  float64 `json:"percentage"`
				IsNearLimit bool    `json:"is_near_limit"`
				IsAtLimit   bool    `json:"is_at_limit"`
			} `json:"usages"`
			HasWarnings      bool `json:"has_warnings"`
			HasLimitsReached bool `json:"has_limits_reached"`
		}
		decode(t, resp, &body)
		require.Len(t, body.Usages, 2)
		assert.True(t, body.HasWarnings)
		assert.True(t, body.HasLimitsReached)
		assert.True(t, body.Usages[0].IsNearLimit)
		assert.True(t, body.Usages[1].IsAtLimit)
		assert.Equal(t, 80.0, body.Usages[0].Percentage)
	})

	t.Run("single quota check", func(t *testing.T) {
		f := newFixture(t)
		resp := f.do(t, http.MethodGet, "/api/v1/users/u1/quotas/subscription_count", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var body struct {
			Type  string `json:"type"`
			Used  int    `json:"used"`
			Limit int    `json:"limit"`
		}
		decode(t, resp, &body)
		assert.Equal(t, "subscription_count", body.Type)
		assert.Equal(t, 1, body.Used)
	})

	t.Run("unknown quota type is a bad request", func(t *testing.T) {
		f := newFixture(t)
		resp := f.do(t, http.MethodGet, "/api/v1/users/u1/quotas/storage_bytes", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("record defaults amount to one", func(t *testing.T) {
		f := newFixture(t)
		var gotAmount int
		f.quota.recordFunc = func(ctx context.Context, qt model.QuotaType, amount int, userID string) bool {
			gotAmount = amount
			return true
		}
		resp := f.do(t, http.MethodPost, "/api/v1/users/u1/quotas/export_count/record", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, 1, gotAmount)

		var body map[string]bool
		decode(t, resp, &body)
		assert.True(t, body["success"])
	})

	t.Run("store unavailable maps to 503", func(t *testing.T) {
		f := newFixture(t)
		f.quota.checkFunc = func(ctx context.Context, qt model.QuotaType, userID string) (model.QuotaUsage, error) {
			return model.QuotaUsage{}, domain.ErrStoreUnavailable
		}
		resp := f.do(t, http.MethodGet, "/api/v1/users/u1/quotas/export_count", nil)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})
}

func TestPermissionEndpoint(t *testing.T) {
	t.Run("denial renders reason and upgrade prompt", func(t *testing.T) {
		f := newFixture(t)
		f.perm.decision = usecase.Decision{
			Allowed:         false,
			Reason:          "your plan does not include advanced_analytics",
			UpgradeRequired: true,
		}

		resp := f.do(t, http.MethodGet, "/api/v1/users/u1/permissions/advanced_analytics", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			Allowed         bool   `json:"allowed"`
			Reason          string `json:"reason"`
			UpgradeRequired bool   `json:"upgrade_required"`
		}
		decode(t, resp, &body)
		assert.False(t, body.Allowed)
		assert.True(t, body.UpgradeRequired)
		assert.Contains(t, body.Reason, "advanced_analytics")
	})

	t.Run("unknown capability is a bad request", func(t *testing.T) {
		f := newFixture(t)
		resp := f.do(t, http.MethodGet, "/api/v1/users/u1/permissions/fly", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unknown quota gate is a bad request", func(t *testing.T) {
		f := newFixture(t)
		resp := f.do(t, http.MethodGet, "/api/v1/users/u1/permissions/export_data?quota=bogus", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestSubscriptionEndpoints(t *testing.T) {
	t.Run("create returns the persisted subscription", func(t *testing.T) {
		f := newFixture(t)
		resp := f.do(t, http.MethodPost, "/api/v1/users/u1/subscriptions", map[string]interface{}{
			"name":          "Netflix",
			"amount_cents":  1599,
			"billing_cycle": "monthly",
			"start_date":    "2024-01-31",
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		var body struct {
			ID              string `json:"id"`
			NextBillingDate string `json:"next_billing_date"`
			Status          string `json:"status"`
		}
		decode(t, resp, &body)
		assert.NotEmpty(t, body.ID)
		assert.Equal(t, "2024-02-29", body.NextBillingDate)
		assert.Equal(t, "active", body.Status)
	})

	t.Run("denied create is a 403 with reason", func(t *testing.T) {
		f := newFixture(t)
		f.sub.createFunc = func(ctx context.Context, userID, name string, amountCents int64, currency string, cycle model.BillingCycle, startDate time.Time) (*model.Subscription, usecase.Decision, error) {
			return nil, usecase.Decision{Allowed: false, Reason: "you have reached your subscription_count limit"}, nil
		}
		resp := f.do(t, http.MethodPost, "/api/v1/users/u1/subscriptions", map[string]interface{}{
			"name":          "Netflix",
			"amount_cents":  1599,
			"billing_cycle": "monthly",
		})
		require.Equal(t, http.StatusForbidden, resp.StatusCode)

		var body struct {
			Reason string `json:"reason"`
		}
		decode(t, resp, &body)
		assert.Contains(t, body.Reason, "subscription_count")
	})

	t.Run("unknown billing cycle is a bad request", func(t *testing.T) {
		f := newFixture(t)
		resp := f.do(t, http.MethodPost, "/api/v1/users/u1/subscriptions", map[string]interface{}{
			"name":          "Netflix",
			"billing_cycle": "daily",
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("missing subscription is a 404", func(t *testing.T) {
		f := newFixture(t)
		resp := f.do(t, http.MethodGet, "/api/v1/subscriptions/does-not-exist", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("next-billing reports the upcoming boundary for an overdue subscription", func(t *testing.T) {
		f := newFixture(t)
		today := model.DateOnly(time.Now())
		f.sub.getFunc = func(ctx context.Context, id string) (*model.Subscription, error) {
			return &model.Subscription{
				ID:              id,
				UserID:          "u1",
				Name:            "Netflix",
				AmountCents:     1599,
				Currency:        "USD",
				BillingCycle:    model.BillingCycleMonthly,
				StartDate:       today.AddDate(0, -2, 0),
				NextBillingDate: today.AddDate(0, -1, 0),
				Status:          model.SubscriptionStatusActive,
			}, nil
		}

		resp := f.do(t, http.MethodGet, "/api/v1/subscriptions/s1/next-billing", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			NextBillingDate string `json:"next_billing_date"`
			UpcomingDate    string `json:"upcoming_date"`
			Due             bool   `json:"due"`
		}
		decode(t, resp, &body)
		assert.True(t, body.Due)
		assert.Equal(t, model.FormatDate(today.AddDate(0, -1, 0)), body.NextBillingDate)

		upcoming, err := time.Parse("2006-01-02", body.UpcomingDate)
		require.NoError(t, err)
		assert.True(t, upcoming.After(today))
	})

	t.Run("list marks due subscriptions", func(t *testing.T) {
		f := newFixture(t)
		yesterday := model.DateOnly(time.Now()).AddDate(0, 0, -1)
		f.sub.listFunc = func(ctx context.Context, userID string) ([]*model.Subscription, error) {
			return []*model.Subscription{{
				ID:              "s1",
				UserID:          userID,
				Name:            "Netflix",
				AmountCents:     1599,
				Currency:        "USD",
				BillingCycle:    model.BillingCycleMonthly,
				StartDate:       yesterday.AddDate(0, -1, 0),
				NextBillingDate: yesterday,
				Status:          model.SubscriptionStatusActive,
			}}, nil
		}

		resp := f.do(t, http.MethodGet, "/api/v1/users/u1/subscriptions", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body []struct {
			ID  string `json:"id"`
			Due bool   `json:"due"`
		}
		decode(t, resp, &body)
		require.Len(t, body, 1)
		assert.True(t, body[0].Due)
	})
}

func TestSpendEndpoint(t *testing.T) {
	f := newFixture(t)
	f.stats.spendFunc = func(ctx context.Context, userID string) (usecase.SpendSummary, error) {
		return usecase.SpendSummary{
			MonthlyCentsByCurrency: map[string]int64{"USD": 2599},
			ByCycle:                map[model.BillingCycle]int{model.BillingCycleMonthly: 2},
			ActiveCount:            2,
		}, nil
	}

	resp := f.do(t, http.MethodGet, "/api/v1/users/u1/spend", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		MonthlyCentsByCurrency map[string]int64 `json:"monthly_cents_by_currency"`
		ByCycle                map[string]int   `json:"by_cycle"`
		ActiveCount            int              `json:"active_count"`
	}
	decode(t, resp, &body)
	assert.EqualValues(t, 2599, body.MonthlyCentsByCurrency["USD"])
	assert.Equal(t, 2, body.ByCycle["monthly"])
	assert.Equal(t, 2, body.ActiveCount)
}

func TestRunRenewalsEndpoint(t *testing.T) {
	f := newFixture(t)
	var gotLimit int
	f.renewal.batchFunc = func(ctx context.Context, limit int) (usecase.RenewalResult, error) {
		gotLimit = limit
		return usecase.RenewalResult{Processed: 3, Failed: 1}, nil
	}

	resp := f.do(t, http.MethodPost, "/api/v1/renewals/run", map[string]int{"limit": 50})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 50, gotLimit)

	var body struct {
		Processed int `json:"processed"`
		Failed    int `json:"failed"`
	}
	decode(t, resp, &body)
	assert.Equal(t, 3, body.Processed)
	assert.Equal(t, 1, body.Failed)
}

func TestLogoutInvalidatesUser(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodPost, "/api/v1/users/u1/logout", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}
