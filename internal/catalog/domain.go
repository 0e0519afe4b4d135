// internal/catalog/domain.go
package catalog

import (
	"strings"
	"time"
)

// Availability states of a physical copy. The values are the wire strings
// the existing consumers render.
const (
	AvailabilityAvailable = "Disponible"
	AvailabilityLoaned    = "Prestado"
	AvailabilityDepleted  = "Agotado"
)

// CopyRecord is one physical inventory unit: a single copy of a book, or one
// concrete piece of equipment. Multiple copies of the same logical item are
// separate rows that share a grouping key.
//
// Invariant: Available + Borrowed == TotalStock, all non-negative. Counters
// are mutated only through AdjustStock.
type CopyRecord struct {
	ID                string    `db:"id" json:"id"`
	Title             string    `db:"titulo" json:"titulo"`
	Author            string    `db:"autor" json:"autor"`
	ISBN              string    `db:"isbn" json:"isbn"`
	Publisher         string    `db:"editorial" json:"editorial"`
	PublishedYear     int       `db:"anio_publicacion" json:"anio_publicacion"`
	Category          string    `db:"categoria" json:"categoria"`
	Subcategory       string    `db:"subcategoria" json:"subcategoria"`
	Description       string    `db:"descripcion" json:"descripcion"`
	AvailabilityState string    `db:"estado_disponibilidad" json:"estado_disponibilidad"`
	Condition         string    `db:"estado_elemento" json:"estado_elemento"`
	TotalStock        int       `db:"stock" json:"stock"`
	Available         int       `db:"cantidad_disponible" json:"cantidad_disponible"`
	Borrowed          int       `db:"cantidad_prestado" json:"cantidad_prestado"`
	InventoryCode     string    `db:"codigo_inventario" json:"codigo_inventario"`
	CreatedAt         time.Time `db:"creado_en" json:"creado_en"`
	UpdatedAt         time.Time `db:"actualizado_en" json:"actualizado_en"`
}

// GroupKey returns the key that joins copies into one logical item: the
// inventory code when present, otherwise the normalized title/author/isbn
// tuple. Copies sharing a key are assumed to carry identical descriptive
// fields; when they diverge the representative is whichever copy resolves
// first.
func (c *CopyRecord) GroupKey() string {
	if code := strings.TrimSpace(c.InventoryCode); code != "" {
		return "cod:" + code
	}
	return "tit:" + normalize(c.Title) + "|" + normalize(c.Author) + "|" + normalize(c.ISBN)
}

// IsBookCategory reports whether the copy belongs to the "libros" category,
// for which loans do not require a borrower reference.
func (c *CopyRecord) IsBookCategory() bool {
	return strings.EqualFold(strings.TrimSpace(c.Category), "libros")
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// LogicalItem is the derived aggregate of all copies sharing a grouping key.
// It is computed on demand from the copy rows and never persisted; the
// embedded record carries the representative descriptive fields with the
// counters replaced by sums over the group.
type LogicalItem struct {
	CopyRecord
	CopyCount int      `json:"copias"`
	CopyIDs   []string `json:"ids"`
}

// CopyInput is the payload for creating a copy. Counter pointers distinguish
// "omitted" from zero: when both are nil the full stock starts available.
// The availability state is always derived from the counters, never taken
// from the caller.
type CopyInput struct {
	Title         string `json:"titulo"`
	Author        string `json:"autor"`
	ISBN          string `json:"isbn"`
	Publisher     string `json:"editorial"`
	PublishedYear int    `json:"anio_publicacion"`
	Category      string `json:"categoria"`
	Subcategory   string `json:"subcategoria"`
	Description   string `json:"descripcion"`
	Condition     string `json:"estado_elemento"`
	TotalStock    int    `json:"stock"`
	Available     *int   `json:"cantidad_disponible"`
	Borrowed      *int   `json:"cantidad_prestado"`
	InventoryCode string `json:"codigo_inventario"`
}

// CopyPatch is the payload for the administrative edit. Nil fields are left
// untouched; the availability state is recomputed from the counters.
type CopyPatch struct {
	Title         *string `json:"titulo"`
	Author        *string `json:"autor"`
	ISBN          *string `json:"isbn"`
	Publisher     *string `json:"editorial"`
	PublishedYear *int    `json:"anio_publicacion"`
	Category      *string `json:"categoria"`
	Subcategory   *string `json:"subcategoria"`
	Description   *string `json:"descripcion"`
	Condition     *string `json:"estado_elemento"`
	TotalStock    *int    `json:"stock"`
	Available     *int    `json:"cantidad_disponible"`
	Borrowed      *int    `json:"cantidad_prestado"`
	InventoryCode *string `json:"codigo_inventario"`
}

// CategoryTotals sums the counters of every copy in one category.
type CategoryTotals struct {
	Total     int `json:"total"`
	Available int `json:"disponible"`
	Borrowed  int `json:"prestado"`
}
