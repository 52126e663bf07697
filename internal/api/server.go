package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"price-predicates/internal/oracle"
	"price-predicates/internal/predicate"
)

func init() {
	// Prices and percentages travel as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// OracleLister serves the per-chain oracle listing.
type OracleLister interface {
	Available(ctx context.Context, chainID int64) ([]oracle.OracleQuote, error)
}

// Options configure the HTTP surface.
type Options struct {
	AllowedOrigins []string
	MetricsPath    string
	DefaultLimit   int
	Version        string
}

// Server exposes predicate operations over HTTP.
type Server struct {
	router   *mux.Router
	handler  http.Handler
	manager  *predicate.Manager
	history  *predicate.History
	oracles  OracleLister
	opts     Options
	started  time.Time
	logger   zerolog.Logger
	healthFn func() map[string]any
}

// NewServer wires routes and middleware.
func NewServer(opts Options, manager *predicate.Manager, history *predicate.History, oracles OracleLister, logger zerolog.Logger) *Server {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = predicate.DefaultPageSize
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	s := &Server{
		router:  mux.NewRouter(),
		manager: manager,
		history: history,
		oracles: oracles,
		opts:    opts,
		started: time.Now(),
		logger:  logger.With().Str("component", "api").Logger(),
	}
	s.routes()

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", "Accept", "Origin", "X-Requested-With"},
	})
	s.handler = corsHandler.Handler(accessLog(s.logger)(s.router))
	return s
}

// SetHealthDetails registers extra fields reported by /health.
func (s *Server) SetHealthDetails(fn func() map[string]any) {
	s.healthFn = fn
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() {
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, predicate.KindNotFound, "route not found")
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, predicate.KindValidation, "method not allowed")
	})

	metricsPath := s.opts.MetricsPath
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	s.router.Handle(metricsPath, promhttp.Handler()).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.Use(instrument)

	api.HandleFunc("/health", s.health).Methods(http.MethodGet)

	api.HandleFunc("/predicates", s.createPredicate).Methods(http.MethodPost)
	api.HandleFunc("/predicates/history/{owner}", s.predicateHistory).Methods(http.MethodGet)
	api.HandleFunc("/predicates/{id}", s.predicateStatus).Methods(http.MethodGet)
	api.HandleFunc("/predicates/{id}/validate", s.validatePredicate).Methods(http.MethodPost)
	api.HandleFunc("/predicates/{id}/cancel", s.cancelPredicate).Methods(http.MethodPost)

	api.HandleFunc("/oracles/{chainId}", s.availableOracles).Methods(http.MethodGet)
}
