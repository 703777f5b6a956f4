package favorites

import (
	"context"
	"errors"

	"github.com/noah-isme/backend-dapur/internal/common"
)

// ErrProductNotFound is returned when favoriting an unknown product.
var ErrProductNotFound = errors.New("product not found")

// Repository is the persistence surface used by Service.
type Repository interface {
	FavoriteProductIDs(ctx context.Context, userID int64) (map[int64]struct{}, error)
	List(ctx context.Context, userID int64) ([]Favorite, error)
	Add(ctx context.Context, userID, productID int64) error
	Remove(ctx context.Context, userID, productID int64) (bool, error)
	Exists(ctx context.Context, userID, productID int64) (bool, error)
}

// Service manages a user's favorite products.
type Service struct {
	repo Repository
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// FavoriteProductIDs implements the lookup used to flag favorites in product listings.
func (s *Service) FavoriteProductIDs(ctx context.Context, userID int64) (map[int64]struct{}, error) {
	if userID <= 0 {
		return map[int64]struct{}{}, nil
	}
	return s.repo.FavoriteProductIDs(ctx, userID)
}

// List returns the user's favorites.
func (s *Service) List(ctx context.Context, userID int64) ([]Favorite, error) {
	return s.repo.List(ctx, userID)
}

// Toggle flips the favorite flag and returns the new state.
func (s *Service) Toggle(ctx context.Context, userID, productID int64) (bool, error) {
	removed, err := s.repo.Remove(ctx, userID, productID)
	if err != nil {
		return false, err
	}
	if removed {
		return false, nil
	}
	if err := s.repo.Add(ctx, userID, productID); err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return false, common.NotFound("product not found", err)
		}
		return false, err
	}
	return true, nil
}

// Check reports whether productID is a favorite. Anonymous users have none.
func (s *Service) Check(ctx context.Context, userID, productID int64) (bool, error) {
	if userID <= 0 {
		return false, nil
	}
	return s.repo.Exists(ctx, userID, productID)
}
