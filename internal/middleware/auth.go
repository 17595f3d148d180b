// Package middleware provides HTTP middleware for the mediation harness
package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/thenexusengine/tne_mediation/internal/config"
	"github.com/thenexusengine/tne_mediation/pkg/logger"
)

// KeyLookup resolves API keys from a shared store
type KeyLookup interface {
	HGet(ctx context.Context, key, field string) (string, error)
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	Enabled     bool
	APIKeys     map[string]string // key -> operator mapping (local fallback)
	HeaderName  string            // Header to check for API key (default: X-API-Key)
	BypassPaths []string          // Paths that don't require auth
}

// DefaultAuthConfig returns default auth configuration
func DefaultAuthConfig() *AuthConfig {
	return &AuthConfig{
		Enabled:     os.Getenv("AUTH_ENABLED") == "true",
		APIKeys:     parseAPIKeys(os.Getenv("API_KEYS")),
		HeaderName:  "X-API-Key",
		BypassPaths: []string{"/health", "/metrics", "/v1/bidder-info"},
	}
}

// parseAPIKeys parses API keys from env var format: "key1:op1,key2:op2"
func parseAPIKeys(envValue string) map[string]string {
	keys := make(map[string]string)
	if envValue == "" {
		return keys
	}

	for _, pair := range strings.Split(envValue, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), ":", 2)
		if len(parts) == 2 {
			keys[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		} else if len(parts) == 1 && parts[0] != "" {
			keys[strings.TrimSpace(parts[0])] = "default"
		}
	}
	return keys
}

// AuthMetrics defines the metrics interface for auth middleware
type AuthMetrics interface {
	IncAuthFailures()
}

// Auth provides API key authentication middleware
type Auth struct {
	config  *AuthConfig
	lookup  KeyLookup
	metrics AuthMetrics
	mu      sync.RWMutex

	keyCache     map[string]cachedKey
	cacheMu      sync.RWMutex
	cacheTimeout time.Duration
}

type cachedKey struct {
	operator  string
	expiresAt time.Time
}

// NewAuth creates a new Auth middleware. lookup may be nil.
func NewAuth(cfg *AuthConfig, lookup KeyLookup) *Auth {
	if cfg == nil {
		cfg = DefaultAuthConfig()
	}
	return &Auth{
		config:       cfg,
		lookup:       lookup,
		keyCache:     make(map[string]cachedKey),
		cacheTimeout: config.AuthCacheTimeout,
	}
}

// SetMetrics sets the metrics interface for auth middleware
func (a *Auth) SetMetrics(m AuthMetrics) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.metrics = m
}

// Middleware returns the authentication middleware handler
func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a.mu.RLock()
		enabled := a.config.Enabled
		bypassPaths := a.config.BypassPaths
		headerName := a.config.HeaderName
		a.mu.RUnlock()

		if !enabled {
			next.ServeHTTP(w, r)
			return
		}

		for _, path := range bypassPaths {
			if strings.HasPrefix(r.URL.Path, path) {
				next.ServeHTTP(w, r)
				return
			}
		}

		apiKey := r.Header.Get(headerName)
		if apiKey == "" {
			authHeader := r.Header.Get("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				apiKey = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}

		if apiKey == "" {
			a.recordAuthFailure()
			http.Error(w, `{"error":"missing API key"}`, http.StatusUnauthorized)
			return
		}

		operator, valid := a.validateKey(r.Context(), apiKey)
		if !valid {
			a.recordAuthFailure()
			http.Error(w, `{"error":"invalid API key"}`, http.StatusForbidden)
			return
		}

		r.Header.Set("X-Operator", operator)
		next.ServeHTTP(w, r)
	})
}

// validateKey checks an API key against the cache, the shared store and the
// local key list, in that order
func (a *Auth) validateKey(ctx context.Context, key string) (string, bool) {
	if op, found := a.checkCache(key); found {
		return op, op != ""
	}

	if a.lookup != nil {
		op, err := a.lookup.HGet(ctx, config.APIKeysHash, key)
		if err == nil && op != "" {
			a.updateCache(key, op)
			return op, true
		}
		if err != nil {
			logger.Log.Debug().Err(err).Msg("API key lookup failed, falling back to local keys")
		}
	}

	var operator string
	var found bool

	a.mu.RLock()
	for validKey, op := range a.config.APIKeys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(validKey)) == 1 {
			operator = op
			found = true
			break
		}
	}
	a.mu.RUnlock()

	// Invalid keys are cached too, for a shorter time
	a.updateCache(key, operator)
	return operator, found
}

func (a *Auth) checkCache(key string) (string, bool) {
	a.cacheMu.RLock()
	defer a.cacheMu.RUnlock()

	cached, exists := a.keyCache[key]
	if !exists || time.Now().After(cached.expiresAt) {
		return "", false
	}
	return cached.operator, true
}

func (a *Auth) updateCache(key, operator string) {
	a.cacheMu.Lock()
	defer a.cacheMu.Unlock()

	timeout := a.cacheTimeout
	if operator == "" {
		timeout = config.AuthNegativeCacheTimeout
	}
	a.keyCache[key] = cachedKey{operator: operator, expiresAt: time.Now().Add(timeout)}
}

// ClearCache clears the API key cache
func (a *Auth) ClearCache() {
	a.cacheMu.Lock()
	defer a.cacheMu.Unlock()
	a.keyCache = make(map[string]cachedKey)
}

func (a *Auth) recordAuthFailure() {
	a.mu.RLock()
	m := a.metrics
	a.mu.RUnlock()
	if m != nil {
		m.IncAuthFailures()
	}
}
