// internal/waitlist/domain.go
package waitlist

import "time"

// Entry states. An entry waits until a copy of its item comes back, then
// becomes notified and leaves the queue.
const (
	StatusWaiting  = "esperando"
	StatusNotified = "notificado"
)

// Entry is one position in the FIFO queue for a copy whose stock is depleted.
// Seq is assigned by the database and defines the queue order; timestamps are
// informational only.
type Entry struct {
	Seq       int64     `db:"seq" json:"seq"`
	ID        string    `db:"id" json:"id"`
	CopyID    string    `db:"id_elemento" json:"id_elemento"`
	UserRef   string    `db:"id_usuario" json:"id_usuario"`
	Contact   string    `db:"contacto" json:"contacto"`
	Status    string    `db:"estado" json:"estado"`
	CreatedAt time.Time `db:"creado_en" json:"creado_en"`
	UpdatedAt time.Time `db:"actualizado_en" json:"actualizado_en"`
}
