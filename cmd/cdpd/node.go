package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"cdpchain/config"
	"cdpchain/core/events"
	cdpstate "cdpchain/core/state"
	gatewayconfig "cdpchain/gateway/config"
	"cdpchain/gateway/middleware"
	"cdpchain/gateway/routes"
	"cdpchain/native/cdp"
	"cdpchain/native/oracle"
	"cdpchain/native/token"
	"cdpchain/observability"
	"cdpchain/storage"
)

var genesisMarkerKey = []byte("node/genesis")

// node holds the wired engine and its collaborators.
type node struct {
	cfg      *config.Config
	logger   *slog.Logger
	state    *cdpstate.Manager
	ledger   *token.Ledger
	feed     *oracle.Feed
	engine   *cdp.Engine
	recorder *events.Recorder
}

func newNode(cfg *config.Config, db storage.Database, logger *slog.Logger, eventBuffer int) (*node, error) {
	if logger == nil {
		logger = slog.Default()
	}
	module, err := cfg.Module()
	if err != nil {
		return nil, err
	}
	st := cdpstate.NewManager(db)
	ledger := token.NewLedger(st)
	feed := oracle.NewFeed(ledger, cfg.Oracle.MaxAge())
	recorder := events.NewRecorder(eventBuffer)

	engine := cdp.NewEngine(st, cdp.Config{ModuleAddress: module, StableToken: cfg.StableToken})
	engine.SetTokenLedger(token.NewCustody(ledger, module))
	engine.SetPriceFeed(feed)
	engine.SetAccessControl(cdp.NewRoleAccess(st))
	engine.SetPauses(st)
	sink := events.Fanout{recorder, observability.Events()}
	ledger.SetEmitter(sink)
	engine.SetEmitter(sink)
	engine.SetLogger(logger.With(slog.String("module", cdp.ModuleName)))

	n := &node{
		cfg:      cfg,
		logger:   logger,
		state:    st,
		ledger:   ledger,
		feed:     feed,
		engine:   engine,
		recorder: recorder,
	}
	if err := n.applyGenesis(); err != nil {
		return nil, fmt.Errorf("genesis: %w", err)
	}
	if err := n.applyRuntime(); err != nil {
		return nil, err
	}
	return n, nil
}

// applyGenesis seeds an empty store. Ledger writes land in one update; the
// engine calls that follow are upserts, so a crash before the marker is
// written is repaired on the next start.
func (n *node) applyGenesis() error {
	var done bool
	if _, err := n.state.KVGet(genesisMarkerKey, &done); err != nil {
		return err
	}
	if done {
		return nil
	}
	g := n.cfg.Genesis
	managers, err := g.ManagerAddresses()
	if err != nil {
		return err
	}
	collaterals, err := g.CollateralConfigs()
	if err != nil {
		return err
	}
	payees, shares, err := g.PayeeTable()
	if err != nil {
		return err
	}
	reserve, err := g.Reserve()
	if err != nil {
		return err
	}
	if len(managers) == 0 && (len(collaterals) > 0 || len(payees) > 0) {
		return errors.New("genesis collaterals and payees need at least one manager")
	}
	stable := strings.ToUpper(strings.TrimSpace(n.cfg.StableToken))
	if !n.state.TokenExists(stable) {
		err := n.state.Update(func() error {
			for _, tok := range g.Tokens {
				if err := n.ledger.Register(tok.Symbol, tok.Name, tok.Decimals); err != nil {
					return fmt.Errorf("register %s: %w", tok.Symbol, err)
				}
			}
			if !n.state.TokenExists(stable) {
				return fmt.Errorf("stable token %s is not among the genesis tokens", stable)
			}
			for _, manager := range managers {
				if err := n.state.SetRole(cdp.ManagerRole, manager.Bytes()); err != nil {
					return err
				}
			}
			if reserve.Sign() > 0 {
				return n.ledger.Mint(stable, n.engine.ModuleAddress(), reserve)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	for _, cfg := range collaterals {
		if _, err := n.engine.SetCollateralConfig(managers[0], cfg); err != nil {
			return fmt.Errorf("collateral %s: %w", cfg.CollateralType, err)
		}
	}
	if len(payees) > 0 {
		if err := n.engine.ChangePayees(managers[0], payees, shares); err != nil {
			return fmt.Errorf("payees: %w", err)
		}
	}
	if err := n.state.Update(func() error { return n.state.KVPut(genesisMarkerKey, true) }); err != nil {
		return err
	}
	n.logger.Info("genesis applied",
		slog.Int("tokens", len(g.Tokens)),
		slog.Int("collaterals", len(collaterals)),
		slog.Int("payees", len(payees)),
		slog.String("insuranceReserve", reserve.String()))
	return nil
}

// applyRuntime applies the settings that follow the configuration file on
// every start: the pause switch and the oracle seed prices.
func (n *node) applyRuntime() error {
	if err := n.state.Update(func() error {
		return n.state.SetPaused(cdp.ModuleName, n.cfg.Pauses.CDP)
	}); err != nil {
		return err
	}
	prices, err := n.cfg.Genesis.PriceMap()
	if err != nil {
		return err
	}
	for symbol, price := range prices {
		if err := n.feed.SetPrice(symbol, price, "config"); err != nil {
			return fmt.Errorf("seed price %s: %w", symbol, err)
		}
	}
	return nil
}

// handler builds the gateway over the node.
func (n *node) handler(gw gatewayconfig.Config) (http.Handler, error) {
	limits := make(map[string]middleware.RateLimit, len(gw.RateLimits))
	for _, entry := range gw.RateLimits {
		limits[entry.ID] = middleware.RateLimit{RequestsPerMinute: entry.RequestsPerMinute, Burst: entry.Burst}
	}
	if len(limits) == 0 {
		limits[routes.RateLimitCDP] = middleware.RateLimit{RequestsPerMinute: 600, Burst: 60}
		limits[routes.RateLimitAdmin] = middleware.RateLimit{RequestsPerMinute: 60, Burst: 10}
		limits[routes.RateLimitTokens] = middleware.RateLimit{RequestsPerMinute: 600, Burst: 60}
	}
	return routes.New(routes.Config{
		Engine:   n.engine,
		Feed:     n.feed,
		Ledger:   n.ledger,
		State:    n.state,
		Recorder: n.recorder,
		Authenticator: middleware.NewAuthenticator(middleware.AuthConfig{
			Enabled:        gw.Auth.Enabled,
			HMACSecret:     gw.Auth.HMACSecret,
			Issuer:         gw.Auth.Issuer,
			Audience:       gw.Auth.Audience,
			ScopeClaim:     gw.Auth.ScopeClaim,
			OptionalPaths:  gw.Auth.OptionalPaths,
			AllowAnonymous: gw.Auth.AllowAnonymous,
			ClockSkew:      gw.Auth.ClockSkew,
		}, n.logger),
		AdminScope:  gw.Auth.AdminScope,
		RateLimiter: middleware.NewRateLimiter(limits, n.logger),
		Observability: middleware.NewObservability(middleware.ObservabilityConfig{
			ServiceName: gw.Observability.ServiceName,
			LogRequests: gw.Observability.LogRequests,
			Enabled:     gw.Observability.Metrics || gw.Observability.Tracing,
		}, n.logger),
		CORS: middleware.CORSConfig{
			AllowedOrigins:   gw.CORS.AllowedOrigins,
			AllowCredentials: gw.CORS.AllowCredentials,
		},
		Logger: n.logger,
	})
}
