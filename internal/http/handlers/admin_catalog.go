package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mesavia/restaurant-ai-platform/internal/catalog"
	"github.com/mesavia/restaurant-ai-platform/pkg/logging"
)

// AdminCatalogHandler exposes branch catalog operations for restaurant
// staff tooling: QR token rotation and menu cache invalidation.
type AdminCatalogHandler struct {
	catalog *catalog.Cache
	logger  *logging.Logger
}

// NewAdminCatalogHandler builds the handler.
func NewAdminCatalogHandler(cache *catalog.Cache, logger *logging.Logger) *AdminCatalogHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminCatalogHandler{catalog: cache, logger: logger}
}

// RotateQRToken issues a fresh QR token for a branch, invalidating every
// previously printed table code at once.
func (h *AdminCatalogHandler) RotateQRToken(w http.ResponseWriter, r *http.Request) {
	branchID := chi.URLParam(r, "branchID")
	if branchID == "" {
		http.Error(w, "branch id required", http.StatusBadRequest)
		return
	}

	token, err := h.catalog.RotateQRToken(r.Context(), branchID)
	if err != nil {
		if err == catalog.ErrBranchNotFound {
			http.Error(w, "branch not found", http.StatusNotFound)
			return
		}
		h.logger.Error("qr token rotation failed", "error", err, "branch_id", branchID)
		http.Error(w, "rotation failed", http.StatusInternalServerError)
		return
	}

	h.logger.Info("qr token rotated", "branch_id", branchID)
	writeJSON(w, http.StatusOK, map[string]string{
		"branch_id": branchID,
		"qr_token":  token,
	})
}

// InvalidateMenu drops the cached menu for a branch after an edit.
func (h *AdminCatalogHandler) InvalidateMenu(w http.ResponseWriter, r *http.Request) {
	branchID := chi.URLParam(r, "branchID")
	if branchID == "" {
		http.Error(w, "branch id required", http.StatusBadRequest)
		return
	}

	if err := h.catalog.Invalidate(r.Context(), branchID); err != nil {
		h.logger.Error("menu cache invalidation failed", "error", err, "branch_id", branchID)
		http.Error(w, "invalidation failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"branch_id": branchID,
		"status":    "invalidated",
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
