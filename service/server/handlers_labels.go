package server

import (
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/brojonat/stellar-explain/service/cache"
	"github.com/brojonat/stellar-explain/service/db"
	"github.com/go-playground/validator/v10"
)

// LabelResponse describes one label in the active table.
type LabelResponse struct {
	Address   string     `json:"address"`
	Label     string     `json:"label"`
	Source    string     `json:"source"` // "builtin" or "operator"
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

type putLabelRequest struct {
	Label string `json:"label" validate:"required,max=64"`
}

// handleListLabels lists the active label table: built-in labels with
// operator labels layered on top.
// GET /api/v1/labels
func handleListLabels(labels Labels, store LabelStore, network string, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		operator := map[string]*db.Label{}
		if store != nil {
			rows, err := store.ListLabels(r.Context(), network)
			if err != nil {
				logger.ErrorContext(r.Context(), "failed to list labels", "error", err)
				writeError(w, CodeInternalError, msgInternalError, http.StatusInternalServerError)
				return
			}
			for _, l := range rows {
				operator[strings.ToUpper(l.Address)] = l
			}
		}

		snapshot := labels.Snapshot()
		resp := make([]LabelResponse, 0, len(snapshot))
		for address, label := range snapshot {
			lr := LabelResponse{Address: address, Label: label, Source: "builtin"}
			if l, ok := operator[address]; ok {
				lr.Source = "operator"
				lr.UpdatedAt = &l.UpdatedAt
			}
			resp = append(resp, lr)
		}
		sort.Slice(resp, func(i, j int) bool { return resp[i].Address < resp[j].Address })

		writeJSON(w, map[string]interface{}{
			"network": network,
			"labels":  resp,
		}, http.StatusOK)
	})
}

// handlePutLabel creates or replaces an operator label. Built-in addresses
// are accepted as-is so they can be overridden. Cached explanations are
// dropped so the new label shows up immediately.
// PUT /api/v1/labels/{address}
func handlePutLabel(store LabelStore, labels Labels, c *cache.ExplanationCache, v *validator.Validate, network string, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address := strings.ToUpper(r.PathValue("address"))
		if !labels.IsBuiltin(address) && !validateVar(w, v, "address", address, "stellar_account") {
			return
		}

		var req putLabelRequest
		if !decodeJSON(w, r, v, &req) {
			return
		}

		l, err := store.UpsertLabel(r.Context(), db.UpsertLabelParams{
			Address: address,
			Network: network,
			Label:   strings.TrimSpace(req.Label),
		})
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to upsert label", "address", address, "error", err)
			writeError(w, CodeInternalError, msgInternalError, http.StatusInternalServerError)
			return
		}

		if err := labels.Reload(r.Context()); err != nil {
			logger.WarnContext(r.Context(), "label saved but reload failed", "address", address, "error", err)
		}
		c.Purge()

		logger.InfoContext(r.Context(), "label saved",
			"request_id", RequestIDFromContext(r.Context()),
			"address", address,
			"network", network,
		)
		writeJSON(w, LabelResponse{Address: l.Address, Label: l.Label, Source: "operator", UpdatedAt: &l.UpdatedAt}, http.StatusOK)
	})
}

// handleDeleteLabel removes an operator label. A built-in label for the same
// address becomes visible again.
// DELETE /api/v1/labels/{address}
func handleDeleteLabel(store LabelStore, labels Labels, c *cache.ExplanationCache, v *validator.Validate, network string, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address := strings.ToUpper(r.PathValue("address"))
		if !labels.IsBuiltin(address) && !validateVar(w, v, "address", address, "stellar_account") {
			return
		}

		err := store.DeleteLabel(r.Context(), address, network)
		if errors.Is(err, db.ErrNotFound) {
			msg := "label not found"
			if labels.IsBuiltin(address) {
				msg = "built-in labels cannot be deleted"
			}
			writeError(w, CodeNotFound, msg, http.StatusNotFound)
			return
		}
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to delete label", "address", address, "error", err)
			writeError(w, CodeInternalError, msgInternalError, http.StatusInternalServerError)
			return
		}

		if err := labels.Reload(r.Context()); err != nil {
			logger.WarnContext(r.Context(), "label deleted but reload failed", "address", address, "error", err)
		}
		c.Purge()

		logger.InfoContext(r.Context(), "label deleted", "address", address, "network", network)
		w.WriteHeader(http.StatusNoContent)
	})
}
