package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	apierrors "github.com/opsdesk/sd-bridge/internal/api/errors"
	"github.com/opsdesk/sd-bridge/internal/api/middleware"
	"github.com/opsdesk/sd-bridge/internal/configstore"
	"github.com/opsdesk/sd-bridge/internal/domain"
	"github.com/opsdesk/sd-bridge/internal/sdclient"
)

// maxConfigBodyBytes bounds the PUT /config request body; the validator
// (C8) enforces a tighter per-string bound once the body is decoded.
const maxConfigBodyBytes = 1 << 20

// ConfigStore is satisfied by *configstore.Store. Expressed as an
// interface so handlers can be tested against a fake without a Postgres
// connection.
type ConfigStore interface {
	Read(ctx context.Context) (domain.RuntimeConfig, error)
	Write(ctx context.Context, body []byte, actor, summary string) (int64, error)
	Rollback(ctx context.Context, toVersion int64, actor string) (int64, error)
	History(ctx context.Context, limit int) ([]configstore.HistoryRow, error)
	RollbackStats(ctx context.Context, window time.Duration) (configstore.RollbackStats, error)
}

// SDProxy is satisfied by *sdclient.Client.
type SDProxy interface {
	GetOpen(ctx context.Context, limit int) sdclient.Result
}

// HealthChecker reports on the dependencies /ready inspects. Ready
// returns a human-readable reason when not ready.
type HealthChecker interface {
	Ready(ctx context.Context) (ok bool, reason string)
}

type handlers struct {
	logger      *slog.Logger
	configStore ConfigStore
	sdProxy     SDProxy
	health      HealthChecker
}

func (h *handlers) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.configStore.Read(r.Context())
	if errors.Is(err, configstore.ErrNoConfig) {
		writeAPIError(w, r, apierrors.NotFoundError("configuration"))
		return
	}
	if err != nil {
		h.logger.Error("config read failed", "error", err)
		writeAPIError(w, r, apierrors.InternalError("failed to read configuration"))
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (h *handlers) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxConfigBodyBytes+1))
	if err != nil {
		writeAPIError(w, r, apierrors.ValidationError("failed to read request body"))
		return
	}
	if len(body) > maxConfigBodyBytes {
		writeAPIError(w, r, apierrors.ValidationError("request body too large"))
		return
	}

	actor := r.Header.Get("X-Actor")
	if actor == "" {
		actor = "unknown"
	}

	version, err := h.configStore.Write(r.Context(), body, actor, "config update")
	if err != nil {
		writeAPIError(w, r, apierrors.ValidationError(err.Error()).WithPath("config"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"version": version})
}

func (h *handlers) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	rows, err := h.configStore.History(r.Context(), limit)
	if err != nil {
		h.logger.Error("config history failed", "error", err)
		writeAPIError(w, r, apierrors.InternalError("failed to read history"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": rows})
}

func (h *handlers) handlePostRollback(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ToVersion int64 `json:"to_version"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxConfigBodyBytes)).Decode(&req); err != nil {
		writeAPIError(w, r, apierrors.ValidationError("malformed request body"))
		return
	}

	actor := r.Header.Get("X-Actor")
	if actor == "" {
		actor = "unknown"
	}

	version, err := h.configStore.Rollback(r.Context(), req.ToVersion, actor)
	if errors.Is(err, configstore.ErrVersionNotFound) {
		writeAPIError(w, r, apierrors.NotFoundError("config version"))
		return
	}
	if err != nil {
		writeAPIError(w, r, apierrors.ValidationError(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"version": version})
}

func (h *handlers) handleGetRollbacks(w http.ResponseWriter, r *http.Request) {
	windowS := 3600
	if v := r.URL.Query().Get("window_s"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			windowS = n
		}
	}

	stats, err := h.configStore.RollbackStats(r.Context(), time.Duration(windowS)*time.Second)
	if err != nil {
		h.logger.Error("rollback stats failed", "error", err)
		writeAPIError(w, r, apierrors.InternalError("failed to read rollback stats"))
		return
	}

	resp := map[string]any{
		"count":    stats.Count,
		"window_s": windowS,
	}
	if !stats.MostRecent.IsZero() {
		resp["last_rollback_at"] = stats.MostRecent.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeAPIError(w http.ResponseWriter, r *http.Request, err *apierrors.APIError) {
	err.WithRequestID(middleware.GetRequestID(r.Context()))
	apierrors.WriteError(w, err)
}
