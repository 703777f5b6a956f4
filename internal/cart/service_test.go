package cart

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-dapur/internal/catalog"
	"github.com/noah-isme/backend-dapur/internal/common"
	"github.com/noah-isme/backend-dapur/internal/promotion"
)

type memoryRepo struct {
	products map[int64]catalog.Product
	lines    map[int64]map[int64]int
}

func newMemoryRepo(products ...catalog.Product) *memoryRepo {
	r := &memoryRepo{products: map[int64]catalog.Product{}, lines: map[int64]map[int64]int{}}
	for _, p := range products {
		r.products[p.ID] = p
	}
	return r
}

func (m *memoryRepo) Items(_ context.Context, userID int64) ([]Item, error) {
	out := []Item{}
	for id, qty := range m.lines[userID] {
		p := m.products[id]
		out = append(out, Item{ProductID: id, Name: p.Name, Price: p.Price, IsActive: p.IsActive, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func (m *memoryRepo) Add(_ context.Context, userID, productID int64, qty, limit int) (int, error) {
	if m.lines[userID] == nil {
		m.lines[userID] = map[int64]int{}
	}
	if m.lines[userID][productID]+qty > limit {
		return 0, ErrQuantityLimit
	}
	m.lines[userID][productID] += qty
	return m.lines[userID][productID], nil
}

func (m *memoryRepo) SetQuantity(_ context.Context, userID, productID int64, qty int) (bool, error) {
	if _, ok := m.lines[userID][productID]; !ok {
		return false, nil
	}
	m.lines[userID][productID] = qty
	return true, nil
}

func (m *memoryRepo) Remove(_ context.Context, userID, productID int64) (bool, error) {
	if _, ok := m.lines[userID][productID]; !ok {
		return false, nil
	}
	delete(m.lines[userID], productID)
	return true, nil
}

func (m *memoryRepo) Clear(_ context.Context, userID int64) error {
	delete(m.lines, userID)
	return nil
}

func (m *memoryRepo) GetProduct(_ context.Context, id int64) (catalog.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return catalog.Product{}, common.NotFound("product not found", catalog.ErrProductNotFound)
	}
	return p, nil
}

type recordingPricer struct {
	got []promotion.CartItem
}

func (p *recordingPricer) CalculateCartDiscounts(_ context.Context, items []promotion.CartItem, _ int64) (promotion.Result, error) {
	p.got = items
	return promotion.Result{TotalAmount: decimal.NewFromInt(1), FinalAmount: decimal.NewFromInt(1)}, nil
}

func fixtures() *memoryRepo {
	return newMemoryRepo(
		catalog.Product{ID: 1, Name: "Молоко", Price: decimal.RequireFromString("89.90"), IsActive: true},
		catalog.Product{ID: 2, Name: "Хлеб", Price: decimal.RequireFromString("45.50"), IsActive: true},
		catalog.Product{ID: 3, Name: "Снято с продажи", Price: decimal.RequireFromString("10"), IsActive: false},
	)
}

func TestAddItemIncrementsAndTotals(t *testing.T) {
	repo := fixtures()
	svc := NewService(repo, repo, &recordingPricer{})
	ctx := context.Background()

	qty, err := svc.AddItem(ctx, 7, 1, 2)
	require.NoError(t, err)
	require.Equal(t, 2, qty)
	qty, err = svc.AddItem(ctx, 7, 1, 1)
	require.NoError(t, err)
	require.Equal(t, 3, qty)
	_, err = svc.AddItem(ctx, 7, 2, 1)
	require.NoError(t, err)

	view, err := svc.View(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, 4, view.TotalItems)
	require.True(t, decimal.RequireFromString("315.20").Equal(view.TotalPrice), view.TotalPrice.String())
}

func TestAddItemRejectsInactiveUnknownAndBadQuantity(t *testing.T) {
	repo := fixtures()
	svc := NewService(repo, repo, &recordingPricer{})
	ctx := context.Background()

	_, err := svc.AddItem(ctx, 7, 3, 1)
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.AddItem(ctx, 7, 99, 1)
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.AddItem(ctx, 7, 1, 0)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestAddItemRejectsQuantityPastLimit(t *testing.T) {
	repo := fixtures()
	svc := NewService(repo, repo, &recordingPricer{})
	ctx := context.Background()

	_, err := svc.AddItem(ctx, 7, 1, MaxQuantity-1)
	require.NoError(t, err)
	qty, err := svc.AddItem(ctx, 7, 1, 1)
	require.NoError(t, err)
	require.Equal(t, MaxQuantity, qty)

	_, err = svc.AddItem(ctx, 7, 1, 5)
	require.ErrorIs(t, err, ErrInvalidInput)
	require.Equal(t, MaxQuantity, repo.lines[7][1])

	var appErr *common.AppError
	require.ErrorAs(t, mapError(err), &appErr)
	require.Equal(t, http.StatusBadRequest, appErr.HTTPStatus)
}

func TestUpdateQuantityRemovesAtZero(t *testing.T) {
	repo := fixtures()
	svc := NewService(repo, repo, &recordingPricer{})
	ctx := context.Background()

	_, err := svc.UpdateQuantity(ctx, 7, 1, 3)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = svc.AddItem(ctx, 7, 1, 1)
	require.NoError(t, err)
	removed, err := svc.UpdateQuantity(ctx, 7, 1, 4)
	require.NoError(t, err)
	require.False(t, removed)
	require.Equal(t, 4, repo.lines[7][1])

	removed, err = svc.UpdateQuantity(ctx, 7, 1, 0)
	require.NoError(t, err)
	require.True(t, removed)
	require.Empty(t, repo.lines[7])
}

func TestPricedForwardsStoredLines(t *testing.T) {
	repo := fixtures()
	pricer := &recordingPricer{}
	svc := NewService(repo, repo, pricer)
	ctx := context.Background()

	_, _ = svc.AddItem(ctx, 7, 2, 2)
	_, _ = svc.AddItem(ctx, 7, 1, 1)
	_, err := svc.Priced(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, []promotion.CartItem{{ProductID: 1, Quantity: 1}, {ProductID: 2, Quantity: 2}}, pricer.got)
}

func newRouter(repo *memoryRepo) http.Handler {
	h := &Handler{Svc: NewService(repo, repo, &recordingPricer{}), Validator: common.NewValidator()}
	r := chi.NewRouter()
	r.Get("/cart", h.Get)
	r.Get("/cart/priced", h.Priced)
	r.Post("/cart/items", h.AddItem)
	r.Put("/cart/items/{productID}", h.UpdateItem)
	r.Delete("/cart/items/{productID}", h.RemoveItem)
	r.Delete("/cart", h.Clear)
	return r
}

func call(h http.Handler, method, path, body string, userID int64) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	ctx := context.Background()
	if userID > 0 {
		ctx = common.WithUserID(ctx, userID)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req.WithContext(ctx))
	return rec
}

func TestCartHandlersFlow(t *testing.T) {
	repo := fixtures()
	router := newRouter(repo)

	rec := call(router, http.MethodGet, "/cart", "", 0)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = call(router, http.MethodPost, "/cart/items", `{"product_id":1,"quantity":2}`, 4)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = call(router, http.MethodPost, "/cart/items", `{"product_id":1,"quantity":0}`, 4)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = call(router, http.MethodPost, "/cart/items", `{"product_id":3,"quantity":1}`, 4)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = call(router, http.MethodGet, "/cart", "", 4)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data View `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 2, body.Data.TotalItems)
	require.Equal(t, "179.8", body.Data.TotalPrice.String())

	rec = call(router, http.MethodGet, "/cart/priced", "", 4)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = call(router, http.MethodPut, "/cart/items/2", `{"quantity":3}`, 4)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = call(router, http.MethodPut, "/cart/items/1", `{"quantity":0}`, 4)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "removed")

	rec = call(router, http.MethodDelete, "/cart/items/1", "", 4)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = call(router, http.MethodDelete, "/cart", "", 4)
	require.Equal(t, http.StatusOK, rec.Code)
}
