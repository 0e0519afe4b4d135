// internal/retirement/domain.go
package retirement

import "time"

// HistoryRecord is the audit trail left behind when a logical item is
// retired. Exactly one record is written per retirement, covering every copy
// in the group.
type HistoryRecord struct {
	ID               string    `db:"id" json:"id"`
	OriginalCopyID   string    `db:"id_elemento_original" json:"id_elemento_original"`
	Title            string    `db:"titulo" json:"titulo"`
	Author           string    `db:"autor" json:"autor"`
	ISBN             string    `db:"isbn" json:"isbn"`
	InventoryCode    string    `db:"codigo_inventario" json:"codigo_inventario"`
	Category         string    `db:"categoria" json:"categoria"`
	Snapshot         string    `db:"snapshot" json:"snapshot"`
	Reason           string    `db:"motivo" json:"motivo"`
	DeletedBy        string    `db:"eliminado_por" json:"eliminado_por"`
	DeletedAt        time.Time `db:"eliminado_en" json:"eliminado_en"`
	RelatedLoans     int       `db:"prestamos_relacionados" json:"prestamos_relacionados"`
	RelatedFavorites int       `db:"favoritos_relacionados" json:"favoritos_relacionados"`
}

// Snapshot is the aggregate state of the group at the moment of retirement,
// stored as JSON inside the history record.
type Snapshot struct {
	TotalStock     int      `json:"stock"`
	Available      int      `json:"cantidad_disponible"`
	Borrowed       int      `json:"cantidad_prestado"`
	CopyCount      int      `json:"copias"`
	CopyIDs        []string `json:"ids"`
	RelatedWaiting int      `json:"espera_relacionados"`
}

// RetireInput carries the optional audit fields of a retirement request.
type RetireInput struct {
	Reason string `json:"motivo"`
	Actor  string `json:"eliminado_por"`
}
