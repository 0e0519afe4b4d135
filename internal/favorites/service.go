// internal/favorites/service.go
package favorites

import "context"

// Service defines the interface for per-user favorites. Removal addresses
// the (user, element) pair rather than the row id, matching how consumers
// toggle favorites without holding onto row identifiers.
type Service interface {
	AddFavorite(ctx context.Context, input FavoriteInput) (*Favorite, error)
	RemoveFavorite(ctx context.Context, userRef, elementRef string) error
	ListFavorites(ctx context.Context, userRef string) ([]*Favorite, error)
}
