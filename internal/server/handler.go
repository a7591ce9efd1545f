package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/JackyBoizy/D2Armory/internal/engine"
	"github.com/JackyBoizy/D2Armory/internal/logging"
	"github.com/JackyBoizy/D2Armory/internal/manifest"
	"github.com/JackyBoizy/D2Armory/internal/models"
	"github.com/JackyBoizy/D2Armory/internal/query"
	"github.com/goccy/go-json"
)

// Engine is the query API the handlers serve.
type Engine interface {
	Search(opts query.Options) query.Result
	GetFull(hash models.Hash) (*models.ItemDefinition, bool)
	ResolveOptions(ctx context.Context, hash models.Hash) ([]models.ResolvedColumn, bool)
	Reindex(ctx context.Context) error
	Ready() bool
	Stats() manifest.Stats
	Tables(ctx context.Context) ([]string, error)
}

// Config holds configurable limits for the server.
type Config struct {
	RequestsPerMinute int // per-client rate limit, 0 disables
}

// DefaultConfig returns reasonable defaults.
func DefaultConfig() *Config {
	return &Config{RequestsPerMinute: 600}
}

// Handler creates the HTTP handler with all routes and middleware.
// The returned cleanup function stops background goroutines and should be
// called on server shutdown.
func Handler(eng Engine, cfg *Config, logger *slog.Logger) (http.Handler, func()) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	logger = logging.Default(logger).With("component", "http")

	rl := newRateLimiter(cfg.RequestsPerMinute)
	limited := func(h http.HandlerFunc) http.Handler {
		return applyMiddleware(h, rl.middleware)
	}

	mux := http.NewServeMux()

	// Health endpoints (not rate limited)
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if !eng.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("not ready: manifest not loaded"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Items
	mux.Handle("GET /api/v1/items", limited(makeSearchHandler(eng)))
	mux.Handle("GET /api/v1/items/{hash}", limited(makeGetItemHandler(eng)))
	mux.Handle("GET /api/v1/items/{hash}/options", limited(makeOptionsHandler(eng)))

	// Index
	mux.Handle("POST /api/v1/reindex", limited(makeReindexHandler(eng, logger)))
	mux.Handle("GET /api/v1/stats", limited(makeStatsHandler(eng)))
	mux.Handle("GET /api/v1/tables", limited(makeTablesHandler(eng)))

	// Apply global middleware
	handler := applyMiddleware(mux,
		recoveryMiddleware(logger),
		loggingMiddleware(logger),
		requestIDMiddleware,
	)

	cleanup := func() {
		rl.Stop()
	}

	return handler, cleanup
}

// applyMiddleware applies middleware in reverse order so the first in the list runs first.
func applyMiddleware(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// searchOptions reads query parameters. Values that don't parse fall back
// to the defaults instead of failing the request.
func searchOptions(r *http.Request) query.Options {
	q := r.URL.Query()
	opts := query.Options{Text: strings.TrimSpace(q.Get("q"))}

	switch t := strings.ToLower(q.Get("itemType")); t {
	case "":
	case "any", "all":
		opts.AllTypes = true
	default:
		if n, err := strconv.Atoi(t); err == nil {
			it := models.ItemType(n)
			opts.ItemType = &it
		}
	}
	if n, err := strconv.Atoi(q.Get("limit")); err == nil {
		opts.Limit = n
	}
	if n, err := strconv.Atoi(q.Get("offset")); err == nil {
		opts.Offset = n
	}
	return opts
}

func makeSearchHandler(eng Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, eng.Search(searchOptions(r)))
	}
}

func pathHash(w http.ResponseWriter, r *http.Request) (models.Hash, bool) {
	hash, err := models.ParseHash(r.PathValue("hash"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return 0, false
	}
	return hash, true
}

func makeGetItemHandler(eng Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hash, ok := pathHash(w, r)
		if !ok {
			return
		}
		item, ok := eng.GetFull(hash)
		if !ok {
			writeError(w, http.StatusNotFound, "not_found", "item "+hash.String()+" not found")
			return
		}
		writeJSON(w, http.StatusOK, item)
	}
}

type columnResponse struct {
	Column models.Column        `json:"column"`
	Items  []models.ItemSummary `json:"items"`
}

func makeOptionsHandler(eng Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hash, ok := pathHash(w, r)
		if !ok {
			return
		}
		cols, ok := eng.ResolveOptions(r.Context(), hash)
		if !ok {
			writeError(w, http.StatusNotFound, "not_found", "item "+hash.String()+" not found")
			return
		}
		resp := make([]columnResponse, len(cols))
		for i, c := range cols {
			resp[i] = columnResponse{Column: c.Column, Items: c.Summaries()}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

type statsResponse struct {
	Ready bool `json:"ready"`
	manifest.Stats
}

func makeReindexHandler(eng Engine, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := eng.Reindex(r.Context()); err != nil {
			reqID, _ := r.Context().Value(contextKeyRequestID).(string)
			logger.Error("reindex request failed", "error", err, "request_id", reqID)
			if errors.Is(err, manifest.ErrLoad) {
				writeError(w, http.StatusInternalServerError, "load_failed", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "reindex_failed", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, statsResponse{Ready: eng.Ready(), Stats: eng.Stats()})
	}
}

func makeStatsHandler(eng Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, statsResponse{Ready: eng.Ready(), Stats: eng.Stats()})
	}
}

func makeTablesHandler(eng Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tables, err := eng.Tables(r.Context())
		if err != nil {
			if errors.Is(err, engine.ErrTablesUnsupported) {
				writeError(w, http.StatusNotImplemented, "not_implemented", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string][]string{"tables": tables})
	}
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": code, "message": message})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
