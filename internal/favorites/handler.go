package favorites

import (
	"net/http"

	"github.com/noah-isme/backend-dapur/internal/common"
)

// Handler exposes favorites endpoints.
type Handler struct {
	Svc *Service
}

type toggleRequest struct {
	ProductID int64 `json:"product_id"`
}

// List handles GET /api/v1/favorites.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	favs, err := h.Svc.List(r.Context(), userID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": favs})
}

// Toggle handles POST /api/v1/favorites/toggle.
func (h *Handler) Toggle(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	var req toggleRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	if req.ProductID <= 0 {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid product_id", nil)
		return
	}
	favorited, err := h.Svc.Toggle(r.Context(), userID, req.ProductID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]bool{"favorited": favorited})
}

// Check handles GET /api/v1/favorites/{productID}.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	productID, err := common.IDParam(r, "productID")
	if err != nil {
		common.WriteError(w, err)
		return
	}
	userID, _ := common.UserID(r.Context())
	exists, err := h.Svc.Check(r.Context(), userID, productID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]bool{"favorited": exists})
}
