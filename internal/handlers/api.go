// Package handlers serves the key derivation endpoint and operational
// surfaces. Key derivation is stateless: the key is recomputed per request
// and never persisted.
package handlers

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hashicorp/go-hclog"
	"github.com/rs/cors"

	"vodvault/internal/chunker"
	"vodvault/internal/config"
	"vodvault/internal/metrics"
	"vodvault/internal/middleware"
)

type API struct {
	cfg     *config.Config
	secret  []byte
	metrics *metrics.Registry
	log     hclog.Logger
}

func NewAPI(cfg *config.Config, m *metrics.Registry, log hclog.Logger) *API {
	return &API{
		cfg:     cfg,
		secret:  []byte(cfg.MediaSecretKey),
		metrics: m,
		log:     log.Named("api"),
	}
}

func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	corsMw := cors.New(cors.Options{
		AllowedOrigins: a.cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	})
	r.Use(corsMw.Handler)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.GlobalRateLimiter(a.cfg.RequestsPerSecond, a.cfg.BurstSize))
	r.Use(middleware.PerIPRateLimiter(a.cfg.PerIPRPS, a.cfg.PerIPBurst))

	r.Get("/decode/{token}", a.handleDecode)
	r.Get("/healthz", a.handleHealthz)
	r.Get("/metrics", a.handleMetrics)
	return r
}

// handleDecode returns the raw 16-byte key for a token. Malformed tokens are
// a 404, never a 500. A well-formed token that was never issued derives a
// key like any other; derivation has no lookup step, so the two cases are
// indistinguishable here. The token space itself is the access barrier.
func (a *API) handleDecode(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if _, err := base64.RawURLEncoding.DecodeString(token); err != nil {
		a.log.Debug("rejecting malformed token", "remote", r.RemoteAddr)
		http.Error(w, "invalid token", http.StatusNotFound)
		return
	}
	key := chunker.DeriveKey(a.secret, token)
	a.metrics.KeysServed.Add(1)
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(key)
}

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (a *API) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(a.metrics.Snapshot())
}
