package tags

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-dapur/internal/common"
)

const (
	maxAlternativeIngredients = 50
	maxLookupLimit            = 50
)

// Handler exposes tag lookups over HTTP.
type Handler struct {
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type addTagRequest struct {
	TagName string `json:"tag_name"`
}

type alternativesRequest struct {
	Ingredients []string `json:"ingredients"`
	Limit       int      `json:"limit"`
}

// ProductsByTag handles GET /api/v1/tags/{tagName}/products.
func (h *Handler) ProductsByTag(w http.ResponseWriter, r *http.Request) {
	userID, _ := common.UserID(r.Context())
	name, err := url.PathUnescape(chi.URLParam(r, "tagName"))
	if err != nil {
		common.WriteError(w, common.NewAppError("BAD_REQUEST", "invalid tagName", http.StatusBadRequest, err))
		return
	}
	limit := min(common.AtoiDefault(r.URL.Query().Get("limit"), 0), maxLookupLimit)
	out, err := h.service.ProductsByTag(r.Context(), name, userID, limit)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": out})
}

// ProductsByTags handles GET /api/v1/tags/products?tags=a,b.
func (h *Handler) ProductsByTags(w http.ResponseWriter, r *http.Request) {
	userID, _ := common.UserID(r.Context())
	raw := strings.Split(r.URL.Query().Get("tags"), ",")
	limit := min(common.AtoiDefault(r.URL.Query().Get("limit"), 5), maxLookupLimit)
	out, err := h.service.ProductsByTags(r.Context(), raw, userID, limit)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": out})
}

// Alternatives handles POST /api/v1/tags/alternatives.
func (h *Handler) Alternatives(w http.ResponseWriter, r *http.Request) {
	var req alternativesRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	if len(req.Ingredients) == 0 || len(req.Ingredients) > maxAlternativeIngredients {
		common.WriteError(w, common.Validation("ingredients must contain 1 to 50 entries", map[string]any{
			"fields": []common.FieldError{{Field: "ingredients", Rule: "max", Param: "50"}},
		}))
		return
	}
	userID, _ := common.UserID(r.Context())
	out, err := h.service.FindIngredientAlternatives(r.Context(), req.Ingredients, userID, min(req.Limit, maxLookupLimit))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": out})
}

// Similar handles GET /api/v1/products/{productID}/similar.
func (h *Handler) Similar(w http.ResponseWriter, r *http.Request) {
	id, err := common.IDParam(r, "productID")
	if err != nil {
		common.WriteError(w, err)
		return
	}
	userID, _ := common.UserID(r.Context())
	limit := min(common.AtoiDefault(r.URL.Query().Get("limit"), defaultSimilarLimit), maxLookupLimit)
	out, err := h.service.SimilarProducts(r.Context(), id, userID, limit)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": out})
}

// ProductTags handles GET /api/v1/products/{productID}/tags.
func (h *Handler) ProductTags(w http.ResponseWriter, r *http.Request) {
	id, err := common.IDParam(r, "productID")
	if err != nil {
		common.WriteError(w, err)
		return
	}
	out, err := h.service.ProductTags(r.Context(), id)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": out})
}

// AddTag handles POST /api/v1/admin/products/{productID}/tags.
func (h *Handler) AddTag(w http.ResponseWriter, r *http.Request) {
	id, err := common.IDParam(r, "productID")
	if err != nil {
		common.WriteError(w, err)
		return
	}
	var req addTagRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	tag, err := h.service.AddTagToProduct(r.Context(), id, req.TagName)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": tag})
}
