package favorites

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-dapur/internal/common"
)

type memoryRepo struct {
	known map[int64]bool
	favs  map[int64]map[int64]struct{}
}

func newMemoryRepo(products ...int64) *memoryRepo {
	r := &memoryRepo{known: map[int64]bool{}, favs: map[int64]map[int64]struct{}{}}
	for _, id := range products {
		r.known[id] = true
	}
	return r
}

func (m *memoryRepo) FavoriteProductIDs(_ context.Context, userID int64) (map[int64]struct{}, error) {
	out := map[int64]struct{}{}
	for id := range m.favs[userID] {
		out[id] = struct{}{}
	}
	return out, nil
}

func (m *memoryRepo) List(_ context.Context, userID int64) ([]Favorite, error) {
	out := []Favorite{}
	for id := range m.favs[userID] {
		out = append(out, Favorite{ProductID: id, IsActive: true})
	}
	return out, nil
}

func (m *memoryRepo) Add(_ context.Context, userID, productID int64) error {
	if !m.known[productID] {
		return ErrProductNotFound
	}
	if m.favs[userID] == nil {
		m.favs[userID] = map[int64]struct{}{}
	}
	m.favs[userID][productID] = struct{}{}
	return nil
}

func (m *memoryRepo) Remove(_ context.Context, userID, productID int64) (bool, error) {
	if _, ok := m.favs[userID][productID]; !ok {
		return false, nil
	}
	delete(m.favs[userID], productID)
	return true, nil
}

func (m *memoryRepo) Exists(_ context.Context, userID, productID int64) (bool, error) {
	_, ok := m.favs[userID][productID]
	return ok, nil
}

func newRouter(repo Repository) http.Handler {
	h := &Handler{Svc: NewService(repo)}
	r := chi.NewRouter()
	r.Get("/favorites", h.List)
	r.Post("/favorites/toggle", h.Toggle)
	r.Get("/favorites/{productID}", h.Check)
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

func TestToggleFlipsState(t *testing.T) {
	repo := newMemoryRepo(5)
	router := newRouter(repo)

	var state map[string]bool
	rec := call(router, http.MethodPost, "/favorites/toggle", `{"product_id":5}`, 9)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	require.True(t, state["favorited"])

	rec = call(router, http.MethodGet, "/favorites/5", "", 9)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	require.True(t, state["favorited"])

	rec = call(router, http.MethodPost, "/favorites/toggle", `{"product_id":5}`, 9)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	require.False(t, state["favorited"])
}

func TestToggleRequiresAuthAndKnownProduct(t *testing.T) {
	router := newRouter(newMemoryRepo(5))

	rec := call(router, http.MethodPost, "/favorites/toggle", `{"product_id":5}`, 0)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = call(router, http.MethodPost, "/favorites/toggle", `{"product_id":77}`, 3)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = call(router, http.MethodPost, "/favorites/toggle", `{"product":5}`, 3)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckAnonymousIsFalse(t *testing.T) {
	router := newRouter(newMemoryRepo(5))
	rec := call(router, http.MethodGet, "/favorites/5", "", 0)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"favorited":false}`, rec.Body.String())
}

func TestFavoriteProductIDsForAnonymousUser(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ids, err := svc.FavoriteProductIDs(context.Background(), 0)
	require.NoError(t, err)
	require.Empty(t, ids)
}
