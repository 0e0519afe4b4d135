// internal/lending/domain.go
package lending

import (
	"time"

	"prestalib/internal/waitlist"
)

// Loan states. Pending moves to Approved or Rejected; Approved moves to
// Returned. Rejected and Returned are terminal.
const (
	StatusPending  = "pendiente"
	StatusApproved = "aprobado"
	StatusRejected = "rechazado"
	StatusReturned = "devuelto"
)

// LoanRecord is one loan transaction against one specific copy row, not the
// logical aggregate. Loans are never deleted, even after their copy is
// retired.
type LoanRecord struct {
	ID         string     `db:"id" json:"id"`
	CopyID     string     `db:"id_elemento" json:"id_elemento"`
	Borrower   string     `db:"id_usuario" json:"id_usuario"`
	LoanDate   time.Time  `db:"fecha_prestamo" json:"fecha_prestamo"`
	ReturnedAt *time.Time `db:"fecha_devolucion" json:"fecha_devolucion"`
	Notes      string     `db:"observaciones" json:"observaciones"`
	Status     string     `db:"estado" json:"estado"`
	CreatedAt  time.Time  `db:"creado_en" json:"creado_en"`
	UpdatedAt  time.Time  `db:"actualizado_en" json:"actualizado_en"`
}

// LoanRequest is the payload for both creation paths. Element and Borrower
// are loose references handled by the resolver.
type LoanRequest struct {
	Element  string `json:"elemento"`
	Borrower string `json:"id_usuario"`
	Notes    string `json:"observaciones"`
}

// RequestOutcome is the result of requestLoan: exactly one of Loan or
// Waitlisted is set. Landing on the waitlist is a defined alternate outcome,
// not a failure.
type RequestOutcome struct {
	Loan       *LoanRecord     `json:"prestamo,omitempty"`
	Waitlisted *waitlist.Entry `json:"espera,omitempty"`
}

// LoanFilter narrows ListLoans. Zero values match everything.
type LoanFilter struct {
	Status   string
	CopyID   string
	Borrower string
}

// BorrowerSummary is the member behind a loan, when the stored reference
// matches one. Walk-in borrowers have no summary; their raw reference stays
// in id_usuario.
type BorrowerSummary struct {
	ID       string `db:"id" json:"id"`
	Name     string `db:"nombre" json:"nombre"`
	Document string `db:"documento" json:"documento"`
	Username string `db:"username" json:"username"`
}

// ElementSummary is the copy behind a loan. Nil once the copy is retired;
// the loan keeps its dangling id on purpose and callers must treat the
// absence as expected.
type ElementSummary struct {
	ID                string `db:"id" json:"id"`
	Title             string `db:"titulo" json:"titulo"`
	Category          string `db:"categoria" json:"categoria"`
	InventoryCode     string `db:"codigo_inventario" json:"codigo_inventario"`
	AvailabilityState string `db:"estado_disponibilidad" json:"estado_disponibilidad"`
}

// LoanView is a LoanRecord enriched with borrower and copy summaries for
// listings.
type LoanView struct {
	LoanRecord
	User *BorrowerSummary `json:"usuario"`
	Copy *ElementSummary  `json:"elemento"`
}
