package analysis

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/noah-isme/backend-dapur/internal/common"
)

// Handler exposes dish analysis endpoints. All routes require authentication.
type Handler struct {
	service       *Service
	maxImageBytes int64
}

// NewHandler constructs a Handler. maxImageBytes bounds the decoded image size.
func NewHandler(service *Service, maxImageBytes int64) *Handler {
	if maxImageBytes <= 0 {
		maxImageBytes = 10 << 20
	}
	return &Handler{service: service, maxImageBytes: maxImageBytes}
}

type analyzeRequest struct {
	ImageData string `json:"image_data"`
}

func requireUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
	}
	return id, ok
}

// Analyze handles POST /api/v1/analysis/base64.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	// base64 inflates by 4/3; allow some room for the JSON envelope and data URL prefix.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxImageBytes*4/3+4096)
	var req analyzeRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			common.JSONError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "image too large", nil)
			return
		}
		common.WriteError(w, err)
		return
	}
	if strings.TrimSpace(req.ImageData) == "" {
		common.WriteError(w, common.Validation("image_data is required", map[string]any{
			"fields": []common.FieldError{{Field: "image_data", Rule: "required"}},
		}))
		return
	}
	resp, err := h.service.Analyze(r.Context(), userID, req.ImageData)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, resp)
}

// History handles GET /api/v1/analysis/my-history.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	skip, limit := common.ParseSkipLimit(r, 20, 100)
	filter := HistoryFilter{Offset: skip, Limit: limit}
	if raw := strings.TrimSpace(r.URL.Query().Get("min_confidence")); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "min_confidence must be a number", nil)
			return
		}
		filter.MinConfidence = &v
	}
	records, err := h.service.History(r.Context(), userID, filter)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, records)
}

// Stats handles GET /api/v1/analysis/history/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	stats, err := h.service.Stats(r.Context(), userID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, stats)
}

// Popular handles GET /api/v1/analysis/history/popular.
func (h *Handler) Popular(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	limit := min(common.AtoiDefault(r.URL.Query().Get("limit"), 5), 50)
	out, err := h.service.Popular(r.Context(), userID, limit)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, out)
}

// Delete handles DELETE /api/v1/analysis/history/{analysisID}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, err := common.IDParam(r, "analysisID")
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), userID, id); err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"success": true, "message": "analysis record deleted"})
}
