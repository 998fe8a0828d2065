package web

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"business-suite-billing/internal/domain/model"
	"business-suite-billing/internal/infra/logging"
	"business-suite-billing/internal/infra/metrics"
)

// PathClass buckets request paths for the access gate.
type PathClass int

const (
	// PathPublic needs no session: login, marketing, help, health,
	// metrics, the provider webhook and checkout back URLs.
	PathPublic PathClass = iota
	// PathActivation is the activation landing page; entitled users are
	// bounced from it to the app home.
	PathActivation
	// PathBilling is always accessible once authenticated, entitled or
	// not: redeem/checkout/trial actions and the account page.
	PathBilling
	// PathAdmin additionally requires the identity allowlist.
	PathAdmin
	// PathGated is everything else: the application proper.
	PathGated
)

const (
	loginPath      = "/login"
	activationPath = "/activate"
	homePath       = "/app"
)

// ClassifyPath is deliberately prefix-based: the application pages
// behind the gate are external collaborators and mount arbitrary routes.
func ClassifyPath(p string) PathClass {
	switch {
	case p == "/" || p == loginPath || p == "/logout" || p == "/health" || p == "/metrics",
		strings.HasPrefix(p, "/help"),
		strings.HasPrefix(p, "/static/"),
		strings.HasPrefix(p, "/webhook/"),
		strings.HasPrefix(p, "/checkout/"):
		return PathPublic
	case p == activationPath:
		return PathActivation
	case strings.HasPrefix(p, activationPath+"/") || p == "/account" || p == "/trial":
		return PathBilling
	case strings.HasPrefix(p, "/admin") || strings.HasPrefix(p, "/api/v1/codes"):
		return PathAdmin
	default:
		return PathGated
	}
}

// EntitlementObserver is the slice of the entitlement use case the gate
// needs: a read that applies lazy expiration as a side effect.
type EntitlementObserver interface {
	Observe(ctx context.Context, userID string) (*model.Entitlement, error)
}

// Gate decides Allow-or-Redirect per request from authentication,
// entitlement and path class. It recomputes active-ness from the expiry
// on every decision instead of trusting the stored status flag.
type Gate struct {
	sessions *SessionManager
	ents     EntitlementObserver
	adminIDs map[string]struct{}
	apiKey   string
	log      *zerolog.Logger
	now      func() time.Time
}

func NewGate(sessions *SessionManager, ents EntitlementObserver, adminIDs []string, apiKey string, logger *zerolog.Logger) *Gate {
	ids := make(map[string]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		ids[id] = struct{}{}
	}
	return &Gate{sessions: sessions, ents: ents, adminIDs: ids, apiKey: apiKey, log: logger, now: time.Now}
}

// bearerKeyOK lets service-to-service callers hit the admin API with a
// pre-shared key instead of a session.
func (g *Gate) bearerKeyOK(r *http.Request) bool {
	if g.apiKey == "" {
		return false
	}
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	return len(parts) == 2 && strings.EqualFold(parts[0], "bearer") && parts[1] == g.apiKey
}

func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		class := ClassifyPath(r.URL.Path)
		if class == PathPublic {
			metrics.IncGateDecision("allow")
			next.ServeHTTP(w, r)
			return
		}

		// The service key authorizes the admin API on its own, with or
		// without a session riding along.
		if class == PathAdmin && g.bearerKeyOK(r) {
			metrics.IncGateDecision("allow")
			next.ServeHTTP(w, r)
			return
		}

		userID, authed := g.sessions.UserFromRequest(r)
		if !authed {
			metrics.IncGateDecision("redirect_login")
			http.Redirect(w, r, loginPath, http.StatusSeeOther)
			return
		}
		ctx := logging.WithUserID(r.Context(), userID)
		r = r.WithContext(ctx)

		if class == PathAdmin {
			if _, ok := g.adminIDs[userID]; !ok {
				metrics.IncGateDecision("forbidden")
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			metrics.IncGateDecision("allow")
			next.ServeHTTP(w, r)
			return
		}

		// Observing applies lazy expiration before the decision.
		ent, err := g.ents.Observe(ctx, userID)
		if err != nil {
			g.log.Error().Err(err).Str("user_id", userID).Msg("entitlement lookup failed")
			http.Error(w, "Service unavailable", http.StatusServiceUnavailable)
			return
		}
		active := ent.IsActiveAt(g.now())

		switch class {
		case PathBilling:
			metrics.IncGateDecision("allow")
			next.ServeHTTP(w, r)
		case PathActivation:
			if active {
				metrics.IncGateDecision("redirect_home")
				http.Redirect(w, r, homePath, http.StatusSeeOther)
				return
			}
			metrics.IncGateDecision("allow")
			next.ServeHTTP(w, r)
		default: // PathGated
			if !active {
				metrics.IncGateDecision("redirect_activation")
				http.Redirect(w, r, activationPath, http.StatusSeeOther)
				return
			}
			metrics.IncGateDecision("allow")
			next.ServeHTTP(w, r)
		}
	})
}
