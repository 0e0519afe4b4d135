// internal/favorites/implementation.go
package favorites

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"prestalib/internal/errs"
	"prestalib/internal/resolver"
	"prestalib/internal/storage"
)

type service struct {
	store    *storage.Store
	resolver *resolver.Resolver
	logger   zerolog.Logger
}

func NewService(store *storage.Store, res *resolver.Resolver, logger zerolog.Logger) Service {
	return &service{
		store:    store,
		resolver: res,
		logger:   logger.With().Str("component", "favorites").Logger(),
	}
}

const favoriteColumns = `id, id_usuario, id_elemento, creado_en, actualizado_en`

func (s *service) AddFavorite(ctx context.Context, input FavoriteInput) (*Favorite, error) {
	if strings.TrimSpace(input.UserRef) == "" {
		return nil, fmt.Errorf("%w: id_usuario is required", errs.ErrValidation)
	}

	copyID, err := s.resolver.ResolveCopyID(ctx, input.Element)
	if err != nil {
		return nil, err
	}
	userRef, err := s.resolver.ResolveBorrower(ctx, input.UserRef)
	if err != nil {
		return nil, err
	}

	var exists int
	check := s.store.Rebind(`SELECT COUNT(1) FROM favoritos WHERE id_usuario = ? AND id_elemento = ?`)
	if err := s.store.DB.GetContext(ctx, &exists, check, userRef, copyID); err != nil {
		return nil, fmt.Errorf("check favorite: %w", err)
	}
	if exists > 0 {
		return nil, fmt.Errorf("%w: already a favorite", errs.ErrConflict)
	}

	now := time.Now().UTC()
	fav := &Favorite{
		ID:        uuid.NewString(),
		UserRef:   userRef,
		CopyID:    copyID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	query := s.store.Rebind(`INSERT INTO favoritos (` + favoriteColumns + `) VALUES (?, ?, ?, ?, ?)`)
	if _, err := s.store.DB.ExecContext(ctx, query,
		fav.ID, fav.UserRef, fav.CopyID, fav.CreatedAt, fav.UpdatedAt); err != nil {
		return nil, fmt.Errorf("insert favorite: %w", err)
	}

	s.logger.Info().Str("favorite_id", fav.ID).Str("copy_id", copyID).Msg("favorite added")
	return fav, nil
}

func (s *service) RemoveFavorite(ctx context.Context, userRef, elementRef string) error {
	if strings.TrimSpace(userRef) == "" {
		return fmt.Errorf("%w: usuario is required", errs.ErrValidation)
	}

	copyID, err := s.resolver.ResolveCopyID(ctx, elementRef)
	if err != nil {
		return err
	}
	resolvedUser, err := s.resolver.ResolveBorrower(ctx, userRef)
	if err != nil {
		return err
	}

	query := s.store.Rebind(`DELETE FROM favoritos WHERE id_usuario = ? AND id_elemento = ?`)
	result, err := s.store.DB.ExecContext(ctx, query, resolvedUser, copyID)
	if err != nil {
		return fmt.Errorf("delete favorite: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete favorite: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: favorite for %s on %s", errs.ErrNotFound, resolvedUser, copyID)
	}

	s.logger.Info().Str("copy_id", copyID).Msg("favorite removed")
	return nil
}

func (s *service) ListFavorites(ctx context.Context, userRef string) ([]*Favorite, error) {
	favs := []*Favorite{}
	if userRef == "" {
		query := `SELECT ` + favoriteColumns + ` FROM favoritos ORDER BY creado_en, id`
		if err := s.store.DB.SelectContext(ctx, &favs, query); err != nil {
			return nil, fmt.Errorf("list favorites: %w", err)
		}
		return favs, nil
	}

	resolved, err := s.resolver.ResolveBorrower(ctx, userRef)
	if err != nil {
		return nil, err
	}
	query := s.store.Rebind(`SELECT ` + favoriteColumns + ` FROM favoritos WHERE id_usuario = ? ORDER BY creado_en, id`)
	if err := s.store.DB.SelectContext(ctx, &favs, query, resolved); err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	return favs, nil
}
