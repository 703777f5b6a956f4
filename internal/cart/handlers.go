package cart

import (
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/backend-dapur/internal/common"
)

// Handler wires cart services to HTTP. Every route requires an authenticated user.
type Handler struct {
	Svc       *Service
	Validator *validator.Validate
}

type addItemRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,gt=0,lte=999"`
}

type updateItemRequest struct {
	Quantity int `json:"quantity" validate:"lte=999"`
}

func (h *Handler) user(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
	}
	return id, ok
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	common.WriteError(w, mapError(err))
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := common.DecodeJSON(r, dst); err != nil {
		common.WriteError(w, err)
		return false
	}
	if h.Validator != nil {
		if err := h.Validator.Struct(dst); err != nil {
			common.WriteError(w, common.ValidationFailed(err))
			return false
		}
	}
	return true
}

// Get handles GET /api/v1/cart.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	view, err := h.Svc.View(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

// Priced handles GET /api/v1/cart/priced.
func (h *Handler) Priced(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	result, err := h.Svc.Priced(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": result})
}

// AddItem handles POST /api/v1/cart/items.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	var req addItemRequest
	if !h.decode(w, r, &req) {
		return
	}
	qty, err := h.Svc.AddItem(r.Context(), userID, req.ProductID, req.Quantity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"product_id": req.ProductID, "quantity": qty}})
}

// UpdateItem handles PUT /api/v1/cart/items/{productID}.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	productID, err := common.IDParam(r, "productID")
	if err != nil {
		common.WriteError(w, err)
		return
	}
	var req updateItemRequest
	if !h.decode(w, r, &req) {
		return
	}
	removed, err := h.Svc.UpdateQuantity(r.Context(), userID, productID, req.Quantity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if removed {
		common.JSON(w, http.StatusOK, map[string]any{"message": "item removed from cart"})
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"product_id": productID, "quantity": req.Quantity}})
}

// RemoveItem handles DELETE /api/v1/cart/items/{productID}.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	productID, err := common.IDParam(r, "productID")
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if err := h.Svc.RemoveItem(r.Context(), userID, productID); err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"message": "item removed from cart"})
}

// Clear handles DELETE /api/v1/cart.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	if err := h.Svc.Clear(r.Context(), userID); err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"message": "cart cleared"})
}
