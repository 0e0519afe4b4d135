// internal/favorites/domain.go
package favorites

import "time"

// Favorite marks one copy as a favorite of one user. The pair is unique.
type Favorite struct {
	ID        string    `db:"id" json:"id"`
	UserRef   string    `db:"id_usuario" json:"id_usuario"`
	CopyID    string    `db:"id_elemento" json:"id_elemento"`
	CreatedAt time.Time `db:"creado_en" json:"creado_en"`
	UpdatedAt time.Time `db:"actualizado_en" json:"actualizado_en"`
}

// FavoriteInput is the payload for marking a favorite. Both fields are loose
// references handled by the resolver.
type FavoriteInput struct {
	UserRef string `json:"id_usuario"`
	Element string `json:"elemento"`
}
