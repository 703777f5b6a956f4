package tags

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-dapur/internal/cache"
	"github.com/noah-isme/backend-dapur/internal/common"
)

type fakeProduct struct {
	summary ProductSummary
	active  bool
	tags    []int64
}

type fakeIndex struct {
	tags     []Tag
	products []fakeProduct
	calls    int
	err      error
}

func (f *fakeIndex) FindProducts(_ context.Context, query string, activeOnly bool, limit int) ([]ProductSummary, MatchKind, error) {
	f.calls++
	if f.err != nil {
		return nil, MatchNone, f.err
	}
	tag, kind := Best(query, f.tags)
	if kind == MatchNone {
		return []ProductSummary{}, kind, nil
	}
	out := []ProductSummary{}
	for _, p := range f.products {
		if activeOnly && !p.active {
			continue
		}
		for _, id := range p.tags {
			if id == tag.ID && len(out) < limit {
				out = append(out, p.summary)
			}
		}
	}
	return out, kind, nil
}

func (f *fakeIndex) SimilarProducts(_ context.Context, productID int64, limit int) ([]SimilarProduct, error) {
	var source map[int64]bool
	for _, p := range f.products {
		if p.summary.ID == productID {
			source = map[int64]bool{}
			for _, id := range p.tags {
				source[id] = true
			}
		}
	}
	out := []SimilarProduct{}
	for _, p := range f.products {
		if p.summary.ID == productID || !p.active {
			continue
		}
		shared := 0
		for _, id := range p.tags {
			if source[id] {
				shared++
			}
		}
		if shared > 0 {
			out = append(out, SimilarProduct{ID: p.summary.ID, Name: p.summary.Name, Price: p.summary.Price, CommonTags: shared})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CommonTags > out[j].CommonTags })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeIndex) ProductTags(_ context.Context, productID int64) ([]Tag, error) {
	out := []Tag{}
	for _, p := range f.products {
		if p.summary.ID != productID {
			continue
		}
		for _, id := range p.tags {
			for _, t := range f.tags {
				if t.ID == id {
					out = append(out, t)
				}
			}
		}
	}
	return out, nil
}

func (f *fakeIndex) AttachTag(_ context.Context, productID int64, name string) (Tag, error) {
	idx := -1
	for i, p := range f.products {
		if p.summary.ID == productID {
			idx = i
		}
	}
	if idx < 0 {
		return Tag{}, ErrProductNotFound
	}
	tag := Tag{}
	for _, t := range f.tags {
		if Normalize(t.Name) == name {
			tag = t
		}
	}
	if tag.ID == 0 {
		tag = Tag{ID: int64(len(f.tags) + 1), Name: name}
		f.tags = append(f.tags, tag)
	}
	for _, id := range f.products[idx].tags {
		if id == tag.ID {
			return tag, nil
		}
	}
	f.products[idx].tags = append(f.products[idx].tags, tag.ID)
	return tag, nil
}

type fakeFavorites map[int64]map[int64]struct{}

func (f fakeFavorites) FavoriteProductIDs(_ context.Context, userID int64) (map[int64]struct{}, error) {
	return f[userID], nil
}

func summary(id int64, name, price string) ProductSummary {
	return ProductSummary{ID: id, Name: name, Price: decimal.RequireFromString(price), StockQuantity: 10}
}

func kitchenIndex() *fakeIndex {
	return &fakeIndex{
		tags: []Tag{
			{ID: 1, Name: "Курица"},
			{ID: 2, Name: "картофель"},
			{ID: 3, Name: "сыр"},
			{ID: 4, Name: "соль"},
		},
		products: []fakeProduct{
			{summary: summary(10, "Курица", "350.00"), active: true, tags: []int64{1}},
			{summary: summary(11, "Куриная грудка", "420.50"), active: true, tags: []int64{1}},
			{summary: summary(12, "Курица копчёная", "510.00"), active: false, tags: []int64{1}},
			{summary: summary(20, "Картофель молодой", "89.90"), active: true, tags: []int64{2}},
			{summary: summary(30, "Сыр пармезан", "799.00"), active: true, tags: []int64{3, 1}},
		},
	}
}

func newTestService(t *testing.T, index Index, favs FavoritesLookup) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	svc, err := NewService(ServiceConfig{
		Index:        index,
		Favorites:    favs,
		Cache:        cache.New(client, time.Minute),
		Logger:       zerolog.Nop(),
		DefaultLimit: 10,
	})
	require.NoError(t, err)
	return svc, mr
}

func productIDs(in []ProductSummary) []int64 {
	out := make([]int64, len(in))
	for i, p := range in {
		out[i] = p.ID
	}
	return out
}

func TestProductsByTagReturnsActiveTaggedProductsCaseInsensitively(t *testing.T) {
	svc, _ := newTestService(t, kitchenIndex(), fakeFavorites{7: {11: {}}})

	out, err := svc.ProductsByTag(context.Background(), "курица", 7, 10)
	require.NoError(t, err)
	require.Equal(t, []int64{10, 11, 30}, productIDs(out))
	require.Equal(t, "Куриная грудка", out[1].Name)
	require.False(t, out[0].InFavorites)
	require.True(t, out[1].InFavorites)
	require.Equal(t, 10, out[1].StockQuantity)
}

func TestProductsByTagHonoursLimitAndPartialMatch(t *testing.T) {
	svc, _ := newTestService(t, kitchenIndex(), nil)

	out, err := svc.ProductsByTag(context.Background(), "КУРИЦА", 0, 1)
	require.NoError(t, err)
	require.Equal(t, []int64{10}, productIDs(out))

	out, err = svc.ProductsByTag(context.Background(), "картофель отварной", 0, 5)
	require.NoError(t, err)
	require.Equal(t, []int64{20}, productIDs(out))

	out, err = svc.ProductsByTag(context.Background(), "говядина", 0, 5)
	require.NoError(t, err)
	require.Empty(t, out)
	require.NotNil(t, out)
}

func TestProductsByTagServesFromCacheButRecomputesFavorites(t *testing.T) {
	index := kitchenIndex()
	favs := fakeFavorites{1: {10: {}}, 2: {}}
	svc, mr := newTestService(t, index, favs)
	ctx := context.Background()

	first, err := svc.ProductsByTag(ctx, "курица", 1, 10)
	require.NoError(t, err)
	require.True(t, first[0].InFavorites)
	require.True(t, mr.Exists(cache.KeyTagProducts("курица", 10)))

	second, err := svc.ProductsByTag(ctx, " Курица ", 2, 10)
	require.NoError(t, err)
	require.Equal(t, 1, index.calls)
	require.Equal(t, productIDs(first), productIDs(second))
	require.False(t, second[0].InFavorites)
}

func TestFindIngredientAlternativesKeepsOrderAndOmitsMisses(t *testing.T) {
	svc, _ := newTestService(t, kitchenIndex(), nil)

	out, err := svc.FindIngredientAlternatives(context.Background(),
		[]string{"сыр", "трюфель", "", "курица", "Сыр"}, 0, 2)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, "сыр", out[0].Ingredient)
	require.Equal(t, []int64{30}, productIDs(out[0].Products))
	require.Equal(t, "курица", out[1].Ingredient)
	require.Equal(t, []int64{10, 11}, productIDs(out[1].Products))
}

func TestProductsByTagsReturnsMapWithoutEmptyEntries(t *testing.T) {
	svc, _ := newTestService(t, kitchenIndex(), nil)

	out, err := svc.ProductsByTags(context.Background(), []string{"картофель", "ваниль"}, 0, 5)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Contains(t, out, "картофель")
}

func TestSimilarProductsMarksFavorites(t *testing.T) {
	svc, _ := newTestService(t, kitchenIndex(), fakeFavorites{3: {30: {}}})

	out, err := svc.SimilarProducts(context.Background(), 10, 3, 0)
	require.NoError(t, err)
	require.Len(t, out, 2)
	for _, p := range out {
		require.NotEqual(t, int64(10), p.ID)
		require.Equal(t, p.ID == 30, p.InFavorites)
		require.Equal(t, 1, p.CommonTags)
	}
}

func TestAddTagToProductNormalisesAndInvalidatesCache(t *testing.T) {
	index := kitchenIndex()
	svc, mr := newTestService(t, index, nil)
	ctx := context.Background()

	_, err := svc.ProductsByTag(ctx, "курица", 0, 10)
	require.NoError(t, err)
	require.True(t, mr.Exists(cache.KeyTagProducts("курица", 10)))

	tag, err := svc.AddTagToProduct(ctx, 20, "  Гарнир ")
	require.NoError(t, err)
	require.Equal(t, "гарнир", tag.Name)
	require.False(t, mr.Exists(cache.KeyTagProducts("курица", 10)))

	again, err := svc.AddTagToProduct(ctx, 20, "ГАРНИР")
	require.NoError(t, err)
	require.Equal(t, tag.ID, again.ID)

	tagsOf, err := svc.ProductTags(ctx, 20)
	require.NoError(t, err)
	require.Len(t, tagsOf, 2)
}

type recordingWarmups struct {
	queries [][]string
	err     error
}

func (r *recordingWarmups) WarmTags(_ context.Context, queries []string) error {
	r.queries = append(r.queries, queries)
	return r.err
}

func TestAddTagToProductSchedulesWarmup(t *testing.T) {
	svc, _ := newTestService(t, kitchenIndex(), nil)
	warmups := &recordingWarmups{err: errors.New("queue down")}
	svc.warmups = warmups

	tag, err := svc.AddTagToProduct(context.Background(), 20, "Гарнир")
	require.NoError(t, err)
	require.Equal(t, "гарнир", tag.Name)
	require.Equal(t, [][]string{{"гарнир"}}, warmups.queries)
}

func TestAddTagToProductErrors(t *testing.T) {
	svc, _ := newTestService(t, kitchenIndex(), nil)
	ctx := context.Background()

	_, err := svc.AddTagToProduct(ctx, 999, "соль")
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "NOT_FOUND", appErr.Code)

	_, err = svc.AddTagToProduct(ctx, 10, "   ")
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "VALIDATION_ERROR", appErr.Code)
}

func TestLookupPropagatesIndexErrors(t *testing.T) {
	svc, _ := newTestService(t, &fakeIndex{err: errors.New("db down")}, nil)
	_, err := svc.ProductsByTag(context.Background(), "курица", 0, 5)
	require.ErrorContains(t, err, "db down")
}

func TestWarmPrimesCache(t *testing.T) {
	index := kitchenIndex()
	svc, mr := newTestService(t, index, nil)

	n, err := svc.Warm(context.Background(), []string{"сыр", " ", "курица"})
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.True(t, mr.Exists(cache.KeyTagProducts("сыр", 10)))
	require.True(t, mr.Exists(cache.KeyTagProducts("курица", 10)))
}
