// internal/members/domain.go
package members

import "time"

// Member is a registered user of the library. Walk-in borrowers are not
// members; loans record them by free-text reference instead.
type Member struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"nombre" json:"nombre"`
	Document     string    `db:"documento" json:"documento"`
	Email        string    `db:"correo" json:"correo"`
	Username     string    `db:"username" json:"username"`
	Role         string    `db:"role" json:"role"`
	PasswordHash string    `db:"password" json:"-"`
	Salt         string    `db:"salt" json:"-"`
	CreatedAt    time.Time `db:"creado_en" json:"creado_en"`
	UpdatedAt    time.Time `db:"actualizado_en" json:"actualizado_en"`
}

// MemberInput is the registration payload.
type MemberInput struct {
	Name     string `json:"nombre"`
	Document string `json:"documento"`
	Email    string `json:"correo"`
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// MemberPatch is the administrative edit payload. Nil fields are left
// untouched; a new password is rehashed on the way in.
type MemberPatch struct {
	Name     *string `json:"nombre"`
	Document *string `json:"documento"`
	Email    *string `json:"correo"`
	Username *string `json:"username"`
	Password *string `json:"password"`
	Role     *string `json:"role"`
}
