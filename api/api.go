package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"aegis/config"
	"aegis/core"
	"aegis/report"
	"aegis/storage"
	"aegis/ticket"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// rateLimiterEntry holds a rate limiter with last seen time
type rateLimiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// authFailureEntry holds auth failure count and last failure time
type authFailureEntry struct {
	count    int
	lastFail time.Time
}

// Ingestor evaluates a stored event against the correlation rules. The
// correlation engine satisfies this.
type Ingestor interface {
	Process(event *core.LogEvent)
}

// RuleReloader refreshes the engine's rule snapshot after an API edit.
type RuleReloader interface {
	ReloadRules() error
}

// API holds the HTTP server and its dependencies.
type API struct {
	router *mux.Router
	server *http.Server

	events   storage.EventStorageInterface
	rules    storage.RuleStorageInterface
	alerts   storage.AlertStorageInterface
	analysts storage.AnalystStorageInterface
	tickets  *ticket.Service
	reporter *report.Reporter
	ingestor Ingestor
	reloader RuleReloader

	config         *config.Config
	logger         *zap.SugaredLogger
	rateLimiters   map[string]*rateLimiterEntry
	rateLimitersMu sync.Mutex
	authFailures   map[string]*authFailureEntry
	authFailuresMu sync.Mutex
	stopCh         chan struct{}
}

// NewAPI creates the API server and wires its routes.
func NewAPI(
	events storage.EventStorageInterface,
	rules storage.RuleStorageInterface,
	alerts storage.AlertStorageInterface,
	analysts storage.AnalystStorageInterface,
	tickets *ticket.Service,
	reporter *report.Reporter,
	ingestor Ingestor,
	reloader RuleReloader,
	cfg *config.Config,
	logger *zap.SugaredLogger,
) *API {
	api := &API{
		router:       mux.NewRouter(),
		events:       events,
		rules:        rules,
		alerts:       alerts,
		analysts:     analysts,
		tickets:      tickets,
		reporter:     reporter,
		ingestor:     ingestor,
		reloader:     reloader,
		config:       cfg,
		logger:       logger,
		rateLimiters: make(map[string]*rateLimiterEntry),
		authFailures: make(map[string]*authFailureEntry),
		stopCh:       make(chan struct{}),
	}
	api.setupRoutes()
	go api.cleanupRateLimiters()
	return api
}

// setupRoutes sets up the API routes
func (a *API) setupRoutes() {
	a.router.Use(a.corsMiddleware)
	a.router.Use(a.rateLimitMiddleware)
	if a.config.Auth.Enabled {
		a.router.Use(a.basicAuthMiddleware)
	}

	a.router.HandleFunc("/api/logs", a.ingestLog).Methods("POST")
	a.router.HandleFunc("/api/logs/search", a.searchLogs).Methods("GET")

	a.router.HandleFunc("/api/correlation-rules", a.getRules).Methods("GET")
	a.router.HandleFunc("/api/correlation-rules", a.createRule).Methods("POST")
	a.router.HandleFunc("/api/correlation-rules/{id}", a.getRule).Methods("GET")
	a.router.HandleFunc("/api/correlation-rules/{id}", a.updateRule).Methods("PUT")
	a.router.HandleFunc("/api/correlation-rules/{id}", a.deleteRule).Methods("DELETE")

	a.router.HandleFunc("/api/correlated-alerts", a.getAlerts).Methods("GET")

	a.router.HandleFunc("/api/tickets/create", a.createTicket).Methods("POST")
	a.router.HandleFunc("/api/tickets/search", a.searchTickets).Methods("GET")
	a.router.HandleFunc("/api/tickets/{id}", a.getTicket).Methods("GET")
	a.router.HandleFunc("/api/tickets/{id}/history", a.getTicketHistory).Methods("GET")
	a.router.HandleFunc("/api/tickets/{id}/assign", a.assignTicket).Methods("POST")
	a.router.HandleFunc("/api/tickets/{id}/close", a.closeTicket).Methods("POST")
	a.router.HandleFunc("/api/tickets/{id}/reopen", a.reopenTicket).Methods("POST")
	a.router.HandleFunc("/api/tickets/{id}/email-client", a.emailClient).Methods("POST")

	a.router.HandleFunc("/api/analysts", a.getAnalysts).Methods("GET")
	a.router.HandleFunc("/api/analysts", a.createAnalyst).Methods("POST")
	a.router.HandleFunc("/api/analysts/by-level/{level}", a.getAnalystsByLevel).Methods("GET")
	a.router.HandleFunc("/api/analysts/{id}", a.updateAnalyst).Methods("PUT")
	a.router.HandleFunc("/api/analysts/{id}", a.deleteAnalyst).Methods("DELETE")

	a.router.HandleFunc("/api/dashboard/severity", a.getSeverityDistribution).Methods("GET")
	a.router.HandleFunc("/api/dashboard/timeline", a.getTimeline).Methods("GET")
	a.router.HandleFunc("/api/dashboard/ticket-status", a.getTicketStatusDistribution).Methods("GET")

	a.router.HandleFunc("/api/health", a.healthCheck).Methods("GET")
	a.router.Handle("/metrics", promhttp.Handler()).Methods("GET")
}

// Start starts the API server
func (a *API) Start(addr string) error {
	a.server = &http.Server{
		Addr:         addr,
		Handler:      a.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return a.server.ListenAndServe()
}

// Stop stops the API server
func (a *API) Stop(ctx context.Context) error {
	close(a.stopCh)
	if a.server != nil {
		return a.server.Shutdown(ctx)
	}
	return nil
}

// Handler exposes the router. Test hook.
func (a *API) Handler() http.Handler {
	return a.router
}
