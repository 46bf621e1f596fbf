package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"subscription-tracker/internal/domain"
	"subscription-tracker/internal/domain/model"
	"subscription-tracker/internal/infra/logging"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain sentinels onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrUnauthorized):
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	case errors.Is(err, domain.ErrInvalidArgument):
		http.Error(w, "invalid argument", http.StatusBadRequest)
	case errors.Is(err, domain.ErrStoreUnavailable):
		http.Error(w, "temporarily unable to verify; action blocked", http.StatusServiceUnavailable)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// ===== auth =====

type loginRequest struct {
	Key string `json:"key"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if !s.auth.CheckKey(req.Key) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	token, err := s.auth.Mint()
	if err != nil {
		s.log.Error().Err(err).Msg("minting session token failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	s.ents.InvalidateUser(userID)
	w.WriteHeader(http.StatusNoContent)
}

// ===== quotas =====

type quotaUsageResponse struct {
	Type        string  `json:"type"`
	Used        int     `json:"used"`
	Limit       int     `json:"limit"`
	Percentage  float64 `json:"percentage"`
	Unlimited   bool    `json:"unlimited"`
	IsNearLimit bool    `json:"is_near_limit"`
	IsAtLimit   bool    `json:"is_at_limit"`
	ResetDate   *string `json:"reset_date,omitempty"`
}

func toQuotaResponse(u model.QuotaUsage) quotaUsageResponse {
	resp := quotaUsageResponse{
		Type:        string(u.Type),
		Used:        u.Used,
		Limit:       u.Limit,
		Percentage:  u.Percentage(),
		Unlimited:   u.IsUnlimited(),
		IsNearLimit: u.IsNearLimit(),
		IsAtLimit:   u.IsAtLimit(),
	}
	if u.ResetDate != nil {
		d := model.FormatDate(*u.ResetDate)
		resp.ResetDate = &d
	}
	return resp
}

func (s *Server) handleQuotaOverview(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	ov, err := s.quotaUC.AllQuotaUsage(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	usages := make([]quotaUsageResponse, 0, len(ov.Usages))
	for _, u := range ov.Usages {
		usages = append(usages, toQuotaResponse(u))
	}
	writeJSON(w, http.StatusOK, struct {
		Usages           []quotaUsageResponse `json:"usages"`
		HasWarnings      bool                 `json:"has_warnings"`
		HasLimitsReached bool                 `json:"has_limits_reached"`
	}{usages, ov.HasWarnings, ov.HasLimitsReached})
}

func (s *Server) handleQuotaCheck(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	qt := model.QuotaType(chi.URLParam(r, "quotaType"))
	if !qt.Valid() {
		http.Error(w, "unknown quota type", http.StatusBadRequest)
		return
	}
	usage, err := s.quotaUC.CheckQuota(r.Context(), qt, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toQuotaResponse(usage))
}

type recordUsageRequest struct {
	Amount int `json:"amount"`
}

func (s *Server) handleRecordUsage(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	qt := model.QuotaType(chi.URLParam(r, "quotaType"))
	if !qt.Valid() {
		http.Error(w, "unknown quota type", http.StatusBadRequest)
		return
	}
	req := recordUsageRequest{Amount: 1}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}
	ok := s.quotaUC.RecordUsage(r.Context(), qt, req.Amount, userID)
	writeJSON(w, http.StatusOK, map[string]bool{"success": ok})
}

// ===== permissions =====

func (s *Server) handlePermissionCheck(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	capability := model.Capability(chi.URLParam(r, "capability"))
	if !capability.Valid() {
		http.Error(w, "unknown capability", http.StatusBadRequest)
		return
	}
	var qt model.QuotaType
	if q := r.URL.Query().Get("quota"); q != "" {
		qt = model.QuotaType(q)
		if !qt.Valid() {
			http.Error(w, "unknown quota type", http.StatusBadRequest)
			return
		}
	}
	dec, _ := s.permUC.CanPerformAction(r.Context(), userID, capability, qt)
	writeJSON(w, http.StatusOK, struct {
		Allowed         bool   `json:"allowed"`
		Reason          string `json:"reason,omitempty"`
		UpgradeRequired bool   `json:"upgrade_required,omitempty"`
	}{dec.Allowed, dec.Reason, dec.UpgradeRequired})
}

// ===== subscriptions =====

type subscriptionResponse struct {
	ID              string `json:"id"`
	UserID          string `json:"user_id"`
	Name            string `json:"name"`
	AmountCents     int64  `json:"amount_cents"`
	Currency        string `json:"currency"`
	BillingCycle    string `json:"billing_cycle"`
	StartDate       string `json:"start_date"`
	NextBillingDate string `json:"next_billing_date"`
	Status          string `json:"status"`
	Due             bool   `json:"due"`
}

func (s *Server) toSubscriptionResponse(sub *model.Subscription) subscriptionResponse {
	return subscriptionResponse{
		ID:              sub.ID,
		UserID:          sub.UserID,
		Name:            sub.Name,
		AmountCents:     sub.AmountCents,
		Currency:        sub.Currency,
		BillingCycle:    string(sub.BillingCycle),
		StartDate:       model.FormatDate(sub.StartDate),
		NextBillingDate: model.FormatDate(sub.NextBillingDate),
		Status:          string(sub.Status),
		Due:             s.renewalUC.IsDue(sub, time.Now()),
	}
}

type subscriptionCreateRequest struct {
	Name         string `json:"name"`
	AmountCents  int64  `json:"amount_cents"`
	Currency     string `json:"currency"`
	BillingCycle string `json:"billing_cycle"`
	StartDate    string `json:"start_date"` // YYYY-MM-DD, defaults to today
}

func (s *Server) handleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	var req subscriptionCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	cycle := model.BillingCycle(req.BillingCycle)
	if !cycle.Valid() {
		http.Error(w, "unknown billing cycle", http.StatusBadRequest)
		return
	}
	start := time.Now()
	if req.StartDate != "" {
		parsed, err := time.Parse("2006-01-02", req.StartDate)
		if err != nil {
			http.Error(w, "start_date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		start = parsed
	}

	sub, dec, err := s.subUC.Create(r.Context(), userID, req.Name, req.AmountCents, req.Currency, cycle, start)
	if err != nil {
		writeError(w, err)
		return
	}
	if !dec.Allowed {
		logging.With(r.Context(), s.log).Info().
			Str("reason", dec.Reason).
			Bool("upgrade_required", dec.UpgradeRequired).
			Msg("subscription create denied")
		writeJSON(w, http.StatusForbidden, struct {
			Reason          string `json:"reason"`
			UpgradeRequired bool   `json:"upgrade_required,omitempty"`
		}{dec.Reason, dec.UpgradeRequired})
		return
	}
	writeJSON(w, http.StatusCreated, s.toSubscriptionResponse(sub))
}

func (s *Server) handleListSubscriptions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	subs, err := s.subUC.ListByUser(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]subscriptionResponse, 0, len(subs))
	for _, sub := range subs {
		out = append(out, s.toSubscriptionResponse(sub))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := s.subUC.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.toSubscriptionResponse(sub))
}

// handleNextBilling reports the stored next billing date plus the upcoming
// boundary as of today, which differ while a subscription is overdue.
func (s *Server) handleNextBilling(w http.ResponseWriter, r *http.Request) {
	sub, err := s.subUC.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	now := time.Now()
	writeJSON(w, http.StatusOK, struct {
		SubscriptionID  string `json:"subscription_id"`
		NextBillingDate string `json:"next_billing_date"`
		UpcomingDate    string `json:"upcoming_date"`
		Due             bool   `json:"due"`
	}{
		SubscriptionID:  sub.ID,
		NextBillingDate: model.FormatDate(sub.NextBillingDate),
		UpcomingDate:    model.FormatDate(s.renewalUC.NextBillingDate(sub, now)),
		Due:             s.renewalUC.IsDue(sub, now),
	})
}

// ===== spend & renewals =====

func (s *Server) handleSpend(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	sum, err := s.statsUC.MonthlySpend(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	byCycle := make(map[string]int, len(sum.ByCycle))
	for c, n := range sum.ByCycle {
		byCycle[string(c)] = n
	}
	writeJSON(w, http.StatusOK, struct {
		MonthlyCentsByCurrency map[string]int64 `json:"monthly_cents_by_currency"`
		ByCycle                map[string]int   `json:"by_cycle"`
		ActiveCount            int              `json:"active_count"`
	}{sum.MonthlyCentsByCurrency, byCycle, sum.ActiveCount})
}

type runRenewalsRequest struct {
	Limit int `json:"limit"`
}

func (s *Server) handleRunRenewals(w http.ResponseWriter, r *http.Request) {
	var req runRenewalsRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}
	res, err := s.renewalUC.RenewBatch(r.Context(), req.Limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Processed int `json:"processed"`
		Failed    int `json:"failed"`
	}{res.Processed, res.Failed})
}
