package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/stellar-explain/service/config"
	"github.com/brojonat/stellar-explain/service/db"
	"github.com/brojonat/stellar-explain/service/temporal"
	"github.com/go-playground/validator/v10"
)

const maxPollInterval = 24 * time.Hour

// WatchResponse is the API view of an account watch.
type WatchResponse struct {
	AccountID    string     `json:"account_id"`
	Network      string     `json:"network"`
	WebhookURL   *string    `json:"webhook_url,omitempty"`
	PollInterval string     `json:"poll_interval"`
	Cursor       *string    `json:"cursor,omitempty"`
	Status       string     `json:"status"`
	LastPollTime *time.Time `json:"last_poll_time,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func watchToResponse(w *db.Watch) WatchResponse {
	return WatchResponse{
		AccountID:    w.AccountID,
		Network:      w.Network,
		WebhookURL:   w.WebhookURL,
		PollInterval: w.PollInterval.String(),
		Cursor:       w.Cursor,
		Status:       w.Status,
		LastPollTime: w.LastPollTime,
		CreatedAt:    w.CreatedAt,
		UpdatedAt:    w.UpdatedAt,
	}
}

type createWatchRequest struct {
	AccountID    string `json:"account_id" validate:"required,stellar_account"`
	WebhookURL   string `json:"webhook_url" validate:"omitempty,http_url,max=2048"`
	PollInterval string `json:"poll_interval"`
}

type updateWatchRequest struct {
	Status string `json:"status" validate:"required,oneof=active paused"`
}

// handleCreateWatch registers an account watch and its Temporal schedule.
// Re-posting an existing watch updates its webhook and interval but keeps
// its status, so a paused watch stays paused.
// POST /api/v1/watches
func handleCreateWatch(store WatchStore, scheduler temporal.Scheduler, cfg *config.Config, v *validator.Validate, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req createWatchRequest
		if !decodeJSON(w, r, v, &req) {
			return
		}

		interval := cfg.DefaultPollInterval
		if req.PollInterval != "" {
			d, err := time.ParseDuration(req.PollInterval)
			if err != nil {
				writeError(w, CodeBadRequest, "poll_interval must be a duration such as 30s or 5m", http.StatusBadRequest)
				return
			}
			interval = d
		}
		if interval < config.MinPollInterval || interval > maxPollInterval {
			writeError(w, CodeBadRequest,
				fmt.Sprintf("poll_interval must be between %s and %s", config.MinPollInterval, maxPollInterval),
				http.StatusBadRequest)
			return
		}

		var webhook *string
		if req.WebhookURL != "" {
			webhook = &req.WebhookURL
		}

		existed, err := store.WatchExists(r.Context(), req.AccountID, cfg.Network)
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to check watch existence", "account_id", req.AccountID, "error", err)
			writeError(w, CodeInternalError, msgInternalError, http.StatusInternalServerError)
			return
		}

		watch, err := store.UpsertWatch(r.Context(), db.UpsertWatchParams{
			AccountID:    req.AccountID,
			Network:      cfg.Network,
			WebhookURL:   webhook,
			PollInterval: interval,
		})
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to upsert watch", "account_id", req.AccountID, "error", err)
			writeError(w, CodeInternalError, msgInternalError, http.StatusInternalServerError)
			return
		}

		if err := scheduler.UpsertWatchSchedule(r.Context(), req.AccountID, cfg.Network, interval); err != nil {
			logger.ErrorContext(r.Context(), "failed to schedule watch", "account_id", req.AccountID, "error", err)
			if !existed {
				// Rollback watch creation
				if delErr := store.DeleteWatch(r.Context(), req.AccountID, cfg.Network); delErr != nil {
					logger.ErrorContext(r.Context(), "failed to roll back watch", "account_id", req.AccountID, "error", delErr)
				}
			}
			writeError(w, CodeInternalError, "failed to schedule watch", http.StatusInternalServerError)
			return
		}

		logger.InfoContext(r.Context(), "watch saved",
			"request_id", RequestIDFromContext(r.Context()),
			"account_id", req.AccountID,
			"network", cfg.Network,
			"poll_interval", interval,
			"created", !existed,
		)

		status := http.StatusOK
		if !existed {
			status = http.StatusCreated
		}
		writeJSON(w, watchToResponse(watch), status)
	})
}

// handleListWatches lists the watches on the server's network.
// GET /api/v1/watches
func handleListWatches(store WatchStore, network string, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		watches, err := store.ListWatches(r.Context(), network)
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to list watches", "error", err)
			writeError(w, CodeInternalError, msgInternalError, http.StatusInternalServerError)
			return
		}

		resp := make([]WatchResponse, len(watches))
		for i, watch := range watches {
			resp[i] = watchToResponse(watch)
		}
		writeJSON(w, map[string]interface{}{
			"watches": resp,
		}, http.StatusOK)
	})
}

// handleGetWatch returns one watch.
// GET /api/v1/watches/{account}
func handleGetWatch(store WatchStore, v *validator.Validate, network string, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account := r.PathValue("account")
		if !validateVar(w, v, "account", account, "stellar_account") {
			return
		}

		watch, err := store.GetWatch(r.Context(), account, network)
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, CodeNotFound, "watch not found", http.StatusNotFound)
			return
		}
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to get watch", "account_id", account, "error", err)
			writeError(w, CodeInternalError, msgInternalError, http.StatusInternalServerError)
			return
		}
		writeJSON(w, watchToResponse(watch), http.StatusOK)
	})
}

// handleUpdateWatch pauses or resumes a watch. Paused watches keep their
// schedule; scheduled runs skip them.
// PATCH /api/v1/watches/{account}
func handleUpdateWatch(store WatchStore, v *validator.Validate, network string, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account := r.PathValue("account")
		if !validateVar(w, v, "account", account, "stellar_account") {
			return
		}

		var req updateWatchRequest
		if !decodeJSON(w, r, v, &req) {
			return
		}

		watch, err := store.UpdateWatchStatus(r.Context(), account, network, req.Status)
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, CodeNotFound, "watch not found", http.StatusNotFound)
			return
		}
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to update watch", "account_id", account, "error", err)
			writeError(w, CodeInternalError, msgInternalError, http.StatusInternalServerError)
			return
		}

		logger.InfoContext(r.Context(), "watch status updated", "account_id", account, "status", req.Status)
		writeJSON(w, watchToResponse(watch), http.StatusOK)
	})
}

// handleDeleteWatch deletes a watch and its schedule.
// DELETE /api/v1/watches/{account}
func handleDeleteWatch(store WatchStore, scheduler temporal.Scheduler, v *validator.Validate, network string, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account := r.PathValue("account")
		if !validateVar(w, v, "account", account, "stellar_account") {
			return
		}

		exists, err := store.WatchExists(r.Context(), account, network)
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to check watch existence", "account_id", account, "error", err)
			writeError(w, CodeInternalError, msgInternalError, http.StatusInternalServerError)
			return
		}
		if !exists {
			writeError(w, CodeNotFound, "watch not found", http.StatusNotFound)
			return
		}

		// A missing schedule must not block removing the row; scheduled runs
		// of a deleted watch are no-ops.
		if err := scheduler.DeleteWatchSchedule(r.Context(), account, network); err != nil {
			logger.WarnContext(r.Context(), "failed to delete watch schedule", "account_id", account, "error", err)
		}

		if err := store.DeleteWatch(r.Context(), account, network); err != nil && !errors.Is(err, db.ErrNotFound) {
			logger.ErrorContext(r.Context(), "failed to delete watch", "account_id", account, "error", err)
			writeError(w, CodeInternalError, msgInternalError, http.StatusInternalServerError)
			return
		}

		logger.InfoContext(r.Context(), "watch deleted", "account_id", account, "network", network)
		w.WriteHeader(http.StatusNoContent)
	})
}
