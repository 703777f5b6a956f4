package promotion

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-dapur/internal/catalog"
	"github.com/noah-isme/backend-dapur/internal/common"
)

type fakeRepo struct {
	promotions map[int64]Promotion
	activeErr  error
	lastFilter ListFilter
	nextID     int64
	activeAt   time.Time
}

func newFakeRepo(promos ...Promotion) *fakeRepo {
	r := &fakeRepo{promotions: map[int64]Promotion{}, nextID: 100}
	for _, p := range promos {
		r.promotions[p.ID] = p
	}
	return r
}

func (f *fakeRepo) ActivePromotions(_ context.Context, now time.Time) ([]Promotion, error) {
	f.activeAt = now
	if f.activeErr != nil {
		return nil, f.activeErr
	}
	var out []Promotion
	for _, p := range f.promotions {
		if p.IsActive && !now.Before(p.StartDate) && !now.After(p.EndDate) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeRepo) List(_ context.Context, filter ListFilter) ([]Promotion, error) {
	f.lastFilter = filter
	return nil, nil
}

func (f *fakeRepo) Get(_ context.Context, id int64) (Promotion, error) {
	p, ok := f.promotions[id]
	if !ok {
		return Promotion{}, ErrNotFound
	}
	return p, nil
}

func (f *fakeRepo) Create(_ context.Context, in CreateInput) (Promotion, error) {
	f.nextID++
	p := Promotion{
		ID: f.nextID, Name: in.Name, Description: in.Description, Type: in.Type, Value: in.Value,
		GiftProductID: in.GiftProductID, MinQuantity: in.MinQuantity, MinOrderAmount: in.MinOrderAmount,
		CategoryIDs: in.CategoryIDs, ProductIDs: in.ProductIDs, Priority: in.Priority, IsActive: true,
		StartDate: in.StartDate, EndDate: in.EndDate,
	}
	f.promotions[p.ID] = p
	return p, nil
}

func (f *fakeRepo) Update(_ context.Context, id int64, in UpdateInput) (Promotion, error) {
	p, ok := f.promotions[id]
	if !ok {
		return Promotion{}, ErrNotFound
	}
	if in.Name != nil {
		p.Name = *in.Name
	}
	if in.Priority != nil {
		p.Priority = *in.Priority
	}
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}
	f.promotions[id] = p
	return p, nil
}

func (f *fakeRepo) Delete(_ context.Context, id int64) error {
	if _, ok := f.promotions[id]; !ok {
		return ErrNotFound
	}
	delete(f.promotions, id)
	return nil
}

type fakeCatalog struct {
	products  map[int64]catalog.Product
	requested []int64
}

func (f *fakeCatalog) ProductsByIDs(_ context.Context, ids []int64) (map[int64]catalog.Product, error) {
	f.requested = append([]int64(nil), ids...)
	out := map[int64]catalog.Product{}
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, repo *fakeRepo, cat *fakeCatalog) *Service {
	t.Helper()
	svc, err := NewService(ServiceConfig{
		Repository:     repo,
		Catalog:        cat,
		Logger:         zerolog.Nop(),
		Now:            func() time.Time { return fixedNow },
		LogEvaluations: true,
	})
	require.NoError(t, err)
	return svc
}

func window() (time.Time, time.Time) {
	return fixedNow.Add(-24 * time.Hour), fixedNow.Add(24 * time.Hour)
}

func TestCalculateCartDiscountsResolvesGiftOutsideCart(t *testing.T) {
	start, end := window()
	repo := newFakeRepo(
		Promotion{ID: 1, Name: "gift", Type: TypeGift, GiftProductID: ptr(int64(9)), MinQuantity: 2, IsActive: true, StartDate: start, EndDate: end},
		Promotion{ID: 2, Name: "expired", Type: TypePercentage, Value: ptr(int64(50)), IsActive: true, StartDate: start.Add(-72 * time.Hour), EndDate: start},
	)
	cat := &fakeCatalog{products: map[int64]catalog.Product{
		1: product(1, "20", 1),
		9: {ID: 9, Name: "Соус", Price: dec("5")},
	}}
	svc := newTestService(t, repo, cat)

	res, err := svc.CalculateCartDiscounts(context.Background(), []CartItem{{ProductID: 1, Quantity: 2}, {ProductID: 1, Quantity: 1}}, 7)
	require.NoError(t, err)
	require.Equal(t, fixedNow, repo.activeAt)
	require.Equal(t, []int64{1, 9}, cat.requested)

	require.Len(t, res.Items, 2)
	require.Len(t, res.Items[0].AppliedPromotions, 1)
	require.Equal(t, "Соус", res.Items[0].AppliedPromotions[0].GiftProductName)
	require.Empty(t, res.Items[1].AppliedPromotions)
	require.True(t, res.DiscountAmount.IsZero())
	require.Equal(t, []AppliedPromotion{{PromotionID: 1, Name: "gift"}}, res.AppliedPromotions)
}

func TestCalculateCartDiscountsSurfacesRepositoryErrors(t *testing.T) {
	repo := newFakeRepo()
	repo.activeErr = errors.New("db down")
	svc := newTestService(t, repo, &fakeCatalog{})
	_, err := svc.CalculateCartDiscounts(context.Background(), []CartItem{{ProductID: 1, Quantity: 1}}, 1)
	require.ErrorContains(t, err, "db down")
}

func TestCreateRejectsUnknownGiftProduct(t *testing.T) {
	start, end := window()
	svc := newTestService(t, newFakeRepo(), &fakeCatalog{products: map[int64]catalog.Product{}})
	_, err := svc.Create(context.Background(), CreateInput{
		Name: "gift", Type: TypeGift, GiftProductID: ptr(int64(5)), StartDate: start, EndDate: end,
	})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "VALIDATION_ERROR", appErr.Code)
}

func TestCreateNormalizesAndStores(t *testing.T) {
	start, end := window()
	repo := newFakeRepo()
	svc := newTestService(t, repo, &fakeCatalog{})
	p, err := svc.Create(context.Background(), CreateInput{
		Name: "10% meat", Type: TypePercentage, Value: ptr(int64(10)), CategoryIDs: []int64{3}, StartDate: start, EndDate: end,
	})
	require.NoError(t, err)
	require.Equal(t, 1, p.MinQuantity)
	require.Contains(t, repo.promotions, p.ID)
}

func TestUpdateAndDeleteMapNotFound(t *testing.T) {
	svc := newTestService(t, newFakeRepo(), &fakeCatalog{})
	_, err := svc.Update(context.Background(), 1, UpdateInput{Priority: ptr(3)})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "NOT_FOUND", appErr.Code)

	require.ErrorAs(t, svc.Delete(context.Background(), 1), &appErr)
}

func TestListUsesCurrentTimeAndRejectsUnknownType(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(t, repo, &fakeCatalog{})
	out, err := svc.List(context.Background(), ListFilter{Type: TypeFixed, Limit: 10})
	require.NoError(t, err)
	require.NotNil(t, out)
	require.Equal(t, fixedNow, repo.lastFilter.Now)

	_, err = svc.List(context.Background(), ListFilter{Type: "bogus"})
	require.Error(t, err)
}

func TestActiveForCartIsOrdered(t *testing.T) {
	start, end := window()
	repo := newFakeRepo(
		Promotion{ID: 1, Priority: 1, IsActive: true, StartDate: start, EndDate: end},
		Promotion{ID: 2, Priority: 9, IsActive: true, StartDate: start, EndDate: end},
		Promotion{ID: 3, Priority: 9, IsActive: false, StartDate: start, EndDate: end},
	)
	out, err := newTestService(t, repo, &fakeCatalog{}).ActiveForCart(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, int64(2), out[0].ID)
}
