// internal/members/service.go
package members

import "context"

// Service defines the interface for the membership registry. Lookup,
// update and delete take a loose reference resolved as id, then document
// number, then username. The default admin account can be looked up but
// never deleted or demoted.
type Service interface {
	RegisterMember(ctx context.Context, input MemberInput) (*Member, error)
	GetMember(ctx context.Context, ref string) (*Member, error)
	UpdateMember(ctx context.Context, ref string, patch MemberPatch) (*Member, error)
	DeleteMember(ctx context.Context, ref string) error
	ListMembers(ctx context.Context) ([]*Member, error)
	VerifyCredentials(ctx context.Context, username, password string) (*Member, error)
}
