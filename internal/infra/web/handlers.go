package web

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"net/http"
	"time"

	"business-suite-billing/internal/domain"
	"business-suite-billing/internal/domain/model"
	"business-suite-billing/internal/infra/worker"
)

const maxBodyBytes = 64 << 10

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps domain errors onto user-facing responses. Secrets and
// internals never leak: configuration problems surface as a generic
// unavailability message.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrCodeNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "invalid code"})
	case errors.Is(err, domain.ErrCodeAlreadyUsed):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "code already used"})
	case errors.Is(err, domain.ErrTrialAlreadyUsed):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "trial already used"})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	case errors.Is(err, domain.ErrInvalidArgument):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request"})
	case errors.Is(err, domain.ErrUpstream):
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "payment provider rejected the request, try again"})
	case errors.Is(err, domain.ErrTransient):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "temporary failure, try again"})
	case errors.Is(err, domain.ErrConfiguration):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "service temporarily unavailable"})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

// ===== activation surface =====

type redeemRequest struct {
	Code string `json:"code"`
}

func (s *Server) handleRedeem(w http.ResponseWriter, r *http.Request) {
	userID, _ := s.sessions.UserFromRequest(r)

	var req redeemRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalidArgument)
		return
	}
	ent, err := s.redemptionUC.Redeem(r.Context(), userID, req.Code)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entitlementResponse(ent))
}

type checkoutRequest struct {
	PlanID string `json:"plan_id"`
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	userID, _ := s.sessions.UserFromRequest(r)

	var req checkoutRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalidArgument)
		return
	}
	intent, err := s.paymentUC.CreateIntent(r.Context(), userID, req.PlanID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"checkout_id":  intent.CheckoutID,
		"redirect_url": intent.RedirectURL,
	})
}

func (s *Server) handleTrial(w http.ResponseWriter, r *http.Request) {
	userID, _ := s.sessions.UserFromRequest(r)
	ent, err := s.entitlementUC.StartTrial(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entitlementResponse(ent))
}

func (s *Server) handlePlans(w http.ResponseWriter, r *http.Request) {
	type planView struct {
		ID       string `json:"id"`
		Title    string `json:"title"`
		Price    int64  `json:"price"`
		Currency string `json:"currency"`
	}
	plans := s.paymentUC.Plans()
	out := make([]planView, 0, len(plans))
	for _, p := range plans {
		out = append(out, planView{ID: p.ID, Title: p.Title, Price: p.Price, Currency: p.Currency})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	userID, _ := s.sessions.UserFromRequest(r)
	ent, err := s.entitlementUC.Observe(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entitlementResponse(ent))
}

type profileRequest struct {
	DisplayName  string `json:"display_name"`
	BusinessName string `json:"business_name"`
}

func (s *Server) handleAccountUpdate(w http.ResponseWriter, r *http.Request) {
	userID, _ := s.sessions.UserFromRequest(r)

	var req profileRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalidArgument)
		return
	}
	ent, err := s.entitlementUC.UpdateProfile(r.Context(), userID, req.DisplayName, req.BusinessName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entitlementResponse(ent))
}

func entitlementResponse(e *model.Entitlement) map[string]interface{} {
	out := map[string]interface{}{
		"user_id":       e.UserID,
		"status":        string(e.Status),
		"trial_started": e.TrialStarted,
	}
	if e.ExpiresAt != nil {
		out["expires_at"] = e.ExpiresAt.UTC().Format(time.RFC3339)
	}
	if e.DisplayName != "" {
		out["display_name"] = e.DisplayName
	}
	if e.BusinessName != "" {
		out["business_name"] = e.BusinessName
	}
	return out
}

// ===== webhook =====

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	if !s.verifySignature(r, body) {
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	// No provider wired means no way to resolve the payment; ask for a
	// redelivery once the credential is configured.
	if s.webhookUC == nil {
		http.Error(w, "retry later", http.StatusServiceUnavailable)
		return
	}

	outcome, err := s.webhookUC.HandleNotification(r.Context(), body)
	if err == nil {
		writeJSON(w, http.StatusOK, map[string]string{"outcome": string(outcome)})
		return
	}
	if errors.Is(err, domain.ErrInvalidArgument) {
		http.Error(w, "invalid notification", http.StatusBadRequest)
		return
	}

	// Transient: hand the delivery to the deferred pool when there is
	// one, acknowledging immediately; otherwise ask the provider to
	// redeliver. The idempotency ledger makes either path safe.
	if s.async != nil {
		raw := append([]byte(nil), body...)
		submitErr := s.async.Submit(worker.Retry(3, 30*time.Second, func(ctx context.Context) error {
			_, err := s.webhookUC.HandleNotification(ctx, raw)
			return err
		}))
		if submitErr == nil {
			writeJSON(w, http.StatusOK, map[string]string{"outcome": "deferred"})
			return
		}
	}
	http.Error(w, "retry later", http.StatusServiceUnavailable)
}

// ===== session endpoints =====

// handleLogin is the trust boundary with the external identity
// provider: it receives the opaque user id from the provider's callback
// and mints the session cookie. Profile and credential handling stay
// with the provider.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		s.renderHTML(w, http.StatusOK, "Sign in", "Sign in through your identity provider to continue.")
		return
	}
	if err := r.ParseForm(); err != nil {
		writeError(w, domain.ErrInvalidArgument)
		return
	}
	userID := r.PostFormValue("user_id")
	if userID == "" {
		writeError(w, domain.ErrInvalidArgument)
		return
	}
	if _, err := s.sessions.Mint(w, userID); err != nil {
		writeError(w, err)
		return
	}
	// Land on the gate: it will route to the app or the activation page.
	http.Redirect(w, r, "/app", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.sessions.Clear(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// ===== admin codes API =====

type mintCodeRequest struct {
	Days   int `json:"days"`
	Months int `json:"months"`
	Years  int `json:"years"`
}

func (s *Server) handleMintCode(w http.ResponseWriter, r *http.Request) {
	var req mintCodeRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalidArgument)
		return
	}
	code, err := s.redemptionUC.GenerateCode(r.Context(), model.PlanDuration{
		Days:   req.Days,
		Months: req.Months,
		Years:  req.Years,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"code": code.Code})
}

// ===== checkout result pages =====

var resultPage = template.Must(template.New("result").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8" />
<meta name="viewport" content="width=device-width,initial-scale=1" />
<title>{{.Title}}</title>
<style>
body{font-family:system-ui,Arial,sans-serif;margin:2rem;}
.card{max-width:560px;border:1px solid #ddd;border-radius:12px;padding:24px;}
.btn{display:inline-block;margin-top:16px;padding:10px 16px;border-radius:8px;border:1px solid #888;text-decoration:none}
</style>
</head>
<body>
<div class="card">
  <h2>{{.Title}}</h2>
  <p>{{.Msg}}</p>
  <a class="btn" href="/app">Back to the app</a>
</div>
</body>
</html>`))

func (s *Server) renderHTML(w http.ResponseWriter, code int, title, msg string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	_ = resultPage.Execute(w, struct {
		Title string
		Msg   string
	}{Title: title, Msg: msg})
}

func (s *Server) handleCheckoutSuccess(w http.ResponseWriter, r *http.Request) {
	// The entitlement follows through the webhook; do not promise it is
	// active yet.
	s.renderHTML(w, http.StatusOK, "Payment received", "Thanks! Your plan will be active in a moment.")
}

func (s *Server) handleCheckoutFailure(w http.ResponseWriter, r *http.Request) {
	s.renderHTML(w, http.StatusOK, "Payment not completed", "The payment could not be processed. You can try again from the activation page.")
}

func (s *Server) handleCheckoutPending(w http.ResponseWriter, r *http.Request) {
	s.renderHTML(w, http.StatusOK, "Payment pending", "The payment is still processing. Your plan activates automatically once it is approved.")
}

func (s *Server) handleActivationPage(w http.ResponseWriter, r *http.Request) {
	s.renderHTML(w, http.StatusOK, "Activate your plan", "Redeem a code or choose a plan to continue using the app.")
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
