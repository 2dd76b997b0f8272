package coordinator

import (
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const defaultTokenTTL = 24 * time.Hour

// API wires the workflow engine, store, and auth resolver for HTTP handlers.
type API struct {
	engine   *Engine
	store    Store
	resolver *Resolver
	logger   zerolog.Logger
	tokenTTL time.Duration
}

// New initialises the API layer with sane defaults applied to the provided
// configuration. The resolver is mandatory; every route past the health
// probes requires an authenticated caller.
func New(engine *Engine, store Store, resolver *Resolver, logger zerolog.Logger, tokenTTL time.Duration) (*API, error) {
	if engine == nil {
		return nil, errors.New("engine is required")
	}
	if store == nil {
		return nil, errors.New("store is required")
	}
	if resolver == nil {
		return nil, errors.New("resolver is required")
	}
	if tokenTTL <= 0 {
		tokenTTL = defaultTokenTTL
	}

	return &API{
		engine:   engine,
		store:    store,
		resolver: resolver,
		logger:   logger,
		tokenTTL: tokenTTL,
	}, nil
}

// Authenticate is the bearer-token middleware guarding the /v1 routes.
func (a *API) Authenticate(next http.Handler) http.Handler {
	return a.resolver.Authenticate(next)
}
