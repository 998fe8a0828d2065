package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"business-suite-billing/internal/config"
	"business-suite-billing/internal/infra/payment"
	"business-suite-billing/internal/infra/worker"
	"business-suite-billing/internal/usecase"
)

// Server is the single HTTP surface: session endpoints, the activation
// and billing routes, the provider webhook, the admin codes API and the
// gated application mount.
type Server struct {
	cfg           *config.Config
	sessions      *SessionManager
	gate          *Gate
	redemptionUC  *usecase.RedemptionUseCase
	paymentUC     *usecase.PaymentIntentUseCase
	webhookUC     *usecase.WebhookUseCase
	entitlementUC *usecase.EntitlementUseCase
	async         *worker.Pool
	app           http.Handler
	log           *zerolog.Logger
	server        *http.Server
}

func NewServer(
	cfg *config.Config,
	sessions *SessionManager,
	gate *Gate,
	redemptionUC *usecase.RedemptionUseCase,
	paymentUC *usecase.PaymentIntentUseCase,
	webhookUC *usecase.WebhookUseCase,
	entitlementUC *usecase.EntitlementUseCase,
	async *worker.Pool,
	app http.Handler,
	logger *zerolog.Logger,
) *Server {
	if app == nil {
		app = http.NotFoundHandler()
	}
	return &Server{
		cfg:           cfg,
		sessions:      sessions,
		gate:          gate,
		redemptionUC:  redemptionUC,
		paymentUC:     paymentUC,
		webhookUC:     webhookUC,
		entitlementUC: entitlementUC,
		async:         async,
		app:           app,
		log:           logger,
	}
}

// Routes builds the full handler chain. The gate wraps everything, so
// route handlers can assume ClassifyPath already ran for them.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		s.renderHTML(w, http.StatusOK, "Business Suite", "Sign in to manage your business.")
	})
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Get(loginPath, s.handleLogin)
	r.Post(loginPath, s.handleLogin)
	r.Get("/logout", s.handleLogout)
	r.Post("/logout", s.handleLogout)

	r.Post("/webhook/payments", s.handleWebhook)

	r.Route("/checkout", func(cr chi.Router) {
		cr.Get("/success", s.handleCheckoutSuccess)
		cr.Get("/failure", s.handleCheckoutFailure)
		cr.Get("/pending", s.handleCheckoutPending)
	})

	r.Get(activationPath, s.handleActivationPage)
	r.Get(activationPath+"/plans", s.handlePlans)
	r.Post(activationPath+"/redeem", s.handleRedeem)
	r.Post(activationPath+"/checkout", s.handleCheckout)
	r.Post("/trial", s.handleTrial)
	r.Get("/account", s.handleAccount)
	r.Post("/account", s.handleAccountUpdate)

	r.Post("/api/v1/codes", s.handleMintCode)

	r.Mount(homePath, s.app)

	timeout := s.cfg.Server.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return Chain(r,
		Recover(s.log),
		TraceID(),
		RequestLog(s.log),
		Timeout(timeout),
		s.gate.Middleware,
	)
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.log.Info().Str("addr", s.server.Addr).Msg("http server listening")
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// verifySignature checks the provider's x-signature header against the
// shared webhook secret. An empty secret disables verification, which
// is how local environments and the provider sandbox run.
func (s *Server) verifySignature(r *http.Request, _ []byte) bool {
	secret := s.cfg.Payment.WebhookSecret
	if secret == "" {
		return true
	}
	return payment.VerifyWebhookSignature(secret, r.Header.Get("x-signature"), r.URL.Query().Get("data.id"))
}
