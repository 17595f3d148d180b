package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/thenexusengine/tne_mediation/internal/adapter"
	"github.com/thenexusengine/tne_mediation/internal/config"
	"github.com/thenexusengine/tne_mediation/internal/endpoints"
	"github.com/thenexusengine/tne_mediation/internal/events"
	"github.com/thenexusengine/tne_mediation/internal/metrics"
	"github.com/thenexusengine/tne_mediation/internal/middleware"
	"github.com/thenexusengine/tne_mediation/internal/partnersdk"
	"github.com/thenexusengine/tne_mediation/internal/storage"
	"github.com/thenexusengine/tne_mediation/pkg/logger"
	"github.com/thenexusengine/tne_mediation/pkg/redis"
)

// Server represents the mediation harness server
type Server struct {
	config      *ServerConfig
	httpServer  *http.Server
	registry    *prometheus.Registry
	metrics     *metrics.Metrics
	adapter     *adapter.Adapter
	recorder    *events.EventRecorder
	eventSink   *events.RedisSink
	sinkGuard   *events.GuardedSink
	db          *sql.DB
	placements  *storage.PlacementStore
	credentials *storage.CredentialStore
	redisClient *redis.Client
}

// NewServer creates a new server instance
func NewServer(cfg *ServerConfig) (*Server, error) {
	s := &Server{
		config:   cfg,
		registry: prometheus.NewRegistry(),
	}

	if err := s.initialize(); err != nil {
		return nil, err
	}

	return s, nil
}

// initialize sets up all server components
func (s *Server) initialize() error {
	log := logger.Log

	log.Info().
		Str("port", s.config.Port).
		Str("partner", config.PartnerIdentifier).
		Str("adapter_version", config.AdapterVersion).
		Bool("test_mode", s.config.TestMode).
		Bool("oversized_banners", s.config.OversizedBanners).
		Msg("Initializing mediation adapter server")

	// Initialize Prometheus metrics
	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	s.metrics = metrics.NewMetrics("mediation", s.registry)
	log.Info().Msg("Prometheus metrics enabled")

	// Database failures are non-fatal, log and continue
	if err := s.initDatabase(); err != nil {
		log.Warn().Err(err).Msg("Database initialization failed, continuing without placement catalog")
	}

	// Redis failures are non-fatal, log and continue
	if err := s.initRedis(); err != nil {
		log.Warn().Err(err).Msg("Redis initialization failed, continuing with reduced functionality")
	}

	s.initEvents()
	s.initAdapter()
	s.initHandlers()

	return nil
}

// initDatabase connects to PostgreSQL and prepares the placement catalog
func (s *Server) initDatabase() error {
	log := logger.Log

	if s.config.DatabaseConfig == nil {
		log.Info().Msg("DB_HOST not set, placement catalog disabled")
		return nil
	}

	dbCfg := s.config.DatabaseConfig
	dbConn, err := storage.NewDBConnection(
		dbCfg.Host,
		dbCfg.Port,
		dbCfg.User,
		dbCfg.Password,
		dbCfg.Name,
		dbCfg.SSLMode,
	)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store := storage.NewPlacementStore(dbConn)
	if err := store.CreateTable(ctx); err != nil {
		dbConn.Close()
		return err
	}

	placements, err := store.List(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load placements from database")
	} else {
		log.Info().
			Int("count", len(placements)).
			Msg("Placements loaded from PostgreSQL")
	}

	s.db = dbConn
	s.placements = store
	return nil
}

// initRedis initializes the Redis client and the stores built on it
func (s *Server) initRedis() error {
	log := logger.Log

	if s.config.RedisURL == "" {
		log.Info().Msg("REDIS_URL not set, credential store and event history disabled")
		return nil
	}

	client, err := redis.New(s.config.RedisURL)
	if err != nil {
		return err
	}

	s.redisClient = client
	s.credentials = storage.NewCredentialStore(client)
	s.eventSink = events.NewRedisSink(client, config.EventListKey, config.EventListMaxLen)
	log.Info().Msg("Redis client initialized")
	return nil
}

// initEvents starts the lifecycle event recorder
func (s *Server) initEvents() {
	var sink events.Sink = events.NewLogSink(logger.Log)
	if s.eventSink != nil {
		breakerCfg := events.DefaultBreakerConfig()
		breakerCfg.OnStateChange = func(from, to string) {
			logger.Log.Warn().Str("from", from).Str("to", to).Msg("Event sink breaker state changed")
		}
		s.sinkGuard = events.NewGuardedSink(s.eventSink, breakerCfg)
		sink = s.sinkGuard
	}

	s.recorder = events.NewEventRecorder(sink, s.config.ToRecorderConfig())
	s.recorder.SetMetrics(s.metrics)
}

// initAdapter builds the adapter around the simulated partner SDK
func (s *Server) initAdapter() {
	sdkConfig := s.config.SDK
	if sdkConfig == nil {
		sdkConfig = partnersdk.DefaultConfig()
	}
	s.adapter = adapter.New(partnersdk.New(sdkConfig), s.config.ToAdapterConfig(), s.metrics)

	logger.Log.Info().
		Str("sdk_version", s.adapter.PartnerSDKVersion()).
		Dur("load_delay", sdkConfig.LoadDelay).
		Dur("event_delay", sdkConfig.EventDelay).
		Msg("Adapter initialized")
}

// initHandlers initializes HTTP handlers and builds the handler chain
func (s *Server) initHandlers() {
	mux := http.NewServeMux()

	// Optional stores are passed as untyped nils so handlers see them as absent
	var credentials endpoints.CredentialSource
	if s.credentials != nil {
		credentials = s.credentials
	}
	var catalog endpoints.PlacementCatalog
	if s.placements != nil {
		catalog = s.placements
	}
	var eventReader endpoints.EventReader
	if s.eventSink != nil {
		eventReader = s.eventSink
	}

	endpoints.NewSetupHandler(s.adapter, credentials, s.metrics).RegisterRoutes(mux)
	endpoints.NewAdHandler(s.adapter, catalog, s.recorder).RegisterRoutes(mux)
	endpoints.NewCatalogHandler(catalog).RegisterRoutes(mux)
	endpoints.NewEventsHandler(eventReader).RegisterRoutes(mux)

	mux.Handle("GET /health", healthHandler())
	mux.Handle("GET /health/ready", readyHandler(s.redisClient, s.db, s.adapter))
	mux.Handle("GET /metrics", metrics.HandlerFor(s.registry))

	s.httpServer = &http.Server{
		Addr:         ":" + s.config.Port,
		Handler:      s.buildHandler(mux),
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
		IdleTimeout:  config.ServerIdleTimeout,
	}
}

// buildHandler builds the middleware chain
func (s *Server) buildHandler(mux *http.ServeMux) http.Handler {
	var keys middleware.KeyLookup
	if s.redisClient != nil {
		keys = s.redisClient
	}
	auth := middleware.NewAuth(middleware.DefaultAuthConfig(), keys)
	auth.SetMetrics(s.metrics)

	sizeLimiter := middleware.NewSizeLimiter(middleware.DefaultSizeLimitConfig())
	sizeLimiter.SetMetrics(s.metrics)

	logger.Log.Info().
		Bool("size_limit_enabled", sizeLimiter.GetConfig().Enabled).
		Bool("redis_api_keys", keys != nil).
		Msg("Middleware chain built")

	// Build chain: Logging -> Size Limit -> Auth -> Metrics -> Handler
	handler := http.Handler(mux)
	handler = s.metrics.Middleware(handler)
	handler = auth.Middleware(handler)
	handler = sizeLimiter.Middleware(handler)
	handler = loggingMiddleware(handler)

	return handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	logger.Log.Info().Str("addr", s.httpServer.Addr).Msg("Server listening")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown performs graceful shutdown
func (s *Server) Shutdown(ctx context.Context) error {
	log := logger.Log
	log.Info().Msg("Starting graceful shutdown")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}

	// Flush pending events after the last request has finished
	if s.recorder != nil {
		if err := s.recorder.Close(); err != nil {
			log.Warn().Err(err).Msg("Error flushing event recorder")
		} else {
			log.Info().Msg("Event recorder flushed")
		}
	}
	if s.sinkGuard != nil {
		s.sinkGuard.Close()
	}

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			log.Warn().Err(err).Msg("Error closing Redis client")
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			log.Warn().Err(err).Msg("Error closing database")
		}
	}

	log.Info().Msg("Server stopped gracefully")
	return nil
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// loggingMiddleware logs HTTP requests with structured logging
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}
		w.Header().Set("X-Request-ID", requestID)

		ctx := logger.WithRequestID(r.Context(), requestID)
		rl := logger.NewRequestLogger(ctx).
			WithField("method", r.Method).
			WithField("path", r.URL.Path).
			WithField("remote_addr", r.RemoteAddr)

		next.ServeHTTP(wrapped, r.WithContext(ctx))
		rl.LogComplete(wrapped.statusCode)
	})
}

// healthHandler returns a simple liveness check
func healthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		health := map[string]interface{}{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"version":   config.AdapterVersion,
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(health); err != nil {
			logger.Log.Error().Err(err).Msg("failed to encode health response")
		}
	})
}

// pinger checks that a dependency is reachable
type pinger func(ctx context.Context) error

// readyHandler returns a readiness check with dependency verification.
// The adapter must have completed partner setup.
func readyHandler(redisClient *redis.Client, db *sql.DB, a *adapter.Adapter) http.Handler {
	deps := map[string]pinger{}
	if redisClient != nil {
		deps["redis"] = redisClient.Ping
	}
	if db != nil {
		deps["postgres"] = db.PingContext
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		checks := make(map[string]interface{})
		allHealthy := true

		for _, name := range []string{"redis", "postgres"} {
			ping, ok := deps[name]
			if !ok {
				checks[name] = map[string]interface{}{"status": "disabled"}
				continue
			}
			if err := ping(ctx); err != nil {
				checks[name] = map[string]interface{}{
					"status": "unhealthy",
					"error":  err.Error(),
				}
				allHealthy = false
			} else {
				checks[name] = map[string]interface{}{"status": "healthy"}
			}
		}

		if a.IsSetUp() {
			checks["partner"] = map[string]interface{}{"status": "ready"}
		} else {
			checks["partner"] = map[string]interface{}{"status": "not_set_up"}
			allHealthy = false
		}

		status := http.StatusOK
		if !allHealthy {
			status = http.StatusServiceUnavailable
		}

		response := map[string]interface{}{
			"ready":     allHealthy,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"checks":    checks,
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if err := json.NewEncoder(w).Encode(response); err != nil {
			logger.Log.Error().Err(err).Msg("failed to encode readiness response")
		}
	})
}

// generateRequestID creates a unique request ID
func generateRequestID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return time.Now().Format("20060102150405.000000000")
	}
	return hex.EncodeToString(b)
}
