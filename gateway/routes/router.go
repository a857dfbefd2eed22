package routes

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"cdpchain/core/events"
	cdpstate "cdpchain/core/state"
	"cdpchain/gateway/middleware"
	"cdpchain/native/cdp"
	"cdpchain/native/oracle"
	"cdpchain/native/token"
)

// Rate limit keys applied to the route groups.
const (
	RateLimitCDP    = "cdp"
	RateLimitAdmin  = "admin"
	RateLimitTokens = "tokens"
)

type Config struct {
	Engine   *cdp.Engine
	Feed     *oracle.Feed
	Ledger   *token.Ledger
	State    *cdpstate.Manager
	Recorder *events.Recorder

	Authenticator *middleware.Authenticator
	AdminScope    string
	RateLimiter   *middleware.RateLimiter
	Observability *middleware.Observability
	CORS          middleware.CORSConfig
	Logger        *slog.Logger
}

// New builds the gateway handler. Reads are public, writes require an
// authenticated caller and the admin group additionally requires the admin
// scope.
func New(cfg Config) (http.Handler, error) {
	if cfg.Engine == nil || cfg.Feed == nil || cfg.Ledger == nil || cfg.State == nil {
		return nil, errors.New("routes: engine, feed, ledger and state are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	auth := cfg.Authenticator
	if auth == nil {
		auth = middleware.NewAuthenticator(middleware.AuthConfig{}, logger)
	}
	limiter := cfg.RateLimiter
	if limiter == nil {
		limiter = middleware.NewRateLimiter(nil, logger)
	}
	adminScope := cfg.AdminScope
	if adminScope == "" {
		adminScope = "cdp:admin"
	}
	recorder := cfg.Recorder
	if recorder == nil {
		recorder = events.NewRecorder(0)
	}

	api := &cdpRoutes{
		engine: cfg.Engine,
		feed:   cfg.Feed,
		ledger: cfg.Ledger,
		state:  cfg.State,
		access: cdp.NewRoleAccess(cfg.State),
		events: recorder,
		logger: logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(cfg.CORS))
	if obs := cfg.Observability; obs != nil {
		r.Use(obs.Middleware)
		r.Handle("/metrics", obs.MetricsHandler())
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/v1/cdp", func(sr chi.Router) {
		sr.Group(func(pub chi.Router) {
			pub.Use(limiter.Middleware(RateLimitCDP))
			api.mountViews(pub)
		})
		sr.Group(func(user chi.Router) {
			user.Use(limiter.Middleware(RateLimitCDP))
			user.Use(auth.Middleware())
			api.mountWrites(user)
		})
		sr.Route("/admin", func(admin chi.Router) {
			admin.Use(limiter.Middleware(RateLimitAdmin))
			admin.Use(auth.Middleware(adminScope))
			api.mountAdmin(admin)
		})
	})

	r.Route("/v1/tokens", func(sr chi.Router) {
		sr.Use(limiter.Middleware(RateLimitTokens))
		sr.Get("/{symbol}/balances/{address}", api.balance)
		sr.Get("/{symbol}/allowances/{owner}/{spender}", api.allowance)
		sr.With(auth.Middleware()).Post("/{symbol}/approve", api.approve)
	})

	return r, nil
}
