package promotion

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-dapur/internal/catalog"
)

func newTestRouter(t *testing.T, repo *fakeRepo, cat *fakeCatalog) http.Handler {
	t.Helper()
	h := NewHandler(newTestService(t, repo, cat))
	r := chi.NewRouter()
	r.Get("/promotions", h.List)
	r.Get("/promotions/active/for-cart", h.ActiveForCart)
	r.Get("/promotions/{promotionID}", h.Get)
	r.Post("/admin/promotions", h.Create)
	r.Put("/admin/promotions/{promotionID}", h.Update)
	r.Delete("/admin/promotions/{promotionID}", h.Delete)
	r.Post("/cart/discounts", h.Calculate)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req.WithContext(context.Background()))
	return rec
}

func TestPromotionHandlersLifecycle(t *testing.T) {
	repo := newFakeRepo()
	router := newTestRouter(t, repo, &fakeCatalog{})

	rec := do(t, router, http.MethodPost, "/admin/promotions", `{
		"name": "Осенняя скидка",
		"promotion_type": "percentage",
		"value": 15,
		"start_date": "2026-03-01T00:00:00Z",
		"end_date": "2026-04-01T00:00:00Z",
		"category_ids": [2]
	}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		Data Promotion `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Equal(t, "Осенняя скидка", created.Data.Name)

	path := "/admin/promotions/" + jsonID(created.Data.ID)
	rec = do(t, router, http.MethodPut, path, `{"priority": 5, "is_active": false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.False(t, repo.promotions[created.Data.ID].IsActive)
	require.Equal(t, 5, repo.promotions[created.Data.ID].Priority)

	rec = do(t, router, http.MethodGet, "/promotions/"+jsonID(created.Data.ID), "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodDelete, path, "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, router, http.MethodGet, "/promotions/"+jsonID(created.Data.ID), "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateHandlerValidation(t *testing.T) {
	router := newTestRouter(t, newFakeRepo(), &fakeCatalog{})
	rec := do(t, router, http.MethodPost, "/admin/promotions", `{
		"name": "broken",
		"promotion_type": "fixed",
		"start_date": "2026-04-01T00:00:00Z",
		"end_date": "2026-03-01T00:00:00Z"
	}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "end_date")
	require.Contains(t, rec.Body.String(), "required_for_type")
}

func TestListHandlerParsesFilters(t *testing.T) {
	repo := newFakeRepo()
	router := newTestRouter(t, repo, &fakeCatalog{})
	rec := do(t, router, http.MethodGet, "/promotions?is_active=true&type=gift&skip=10&limit=500", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"data":[]}`, rec.Body.String())
	require.NotNil(t, repo.lastFilter.IsActive)
	require.True(t, *repo.lastFilter.IsActive)
	require.Equal(t, TypeGift, repo.lastFilter.Type)
	require.Equal(t, 10, repo.lastFilter.Offset)
	require.Equal(t, 100, repo.lastFilter.Limit)
}

func TestCalculateHandler(t *testing.T) {
	start, end := window()
	repo := newFakeRepo(Promotion{ID: 1, Name: "half", Type: TypePercentage, Value: ptr(int64(50)), IsActive: true, StartDate: start, EndDate: end})
	cat := &fakeCatalog{products: map[int64]catalog.Product{1: product(1, "80", 1)}}
	router := newTestRouter(t, repo, cat)

	rec := do(t, router, http.MethodPost, "/cart/discounts", `{"items":[{"product_id":1,"quantity":2}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Data Result `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	requireDec(t, "160", resp.Data.TotalAmount)
	requireDec(t, "80", resp.Data.DiscountAmount)
	requireDec(t, "80", resp.Data.FinalAmount)

	rec = do(t, router, http.MethodPost, "/cart/discounts", `{"items":[{"product_id":1,"quantity":0}]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func jsonID(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
