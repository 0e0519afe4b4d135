// internal/members/implementation.go
package members

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"prestalib/internal/errs"
	"prestalib/internal/storage"
)

type service struct {
	store       *storage.Store
	logger      zerolog.Logger
	rateLimiter *rate.Limiter
}

// NewService creates a membership service. A nil limiter falls back to the
// default registration limit; tests pass rate.NewLimiter(rate.Inf, 0).
func NewService(store *storage.Store, logger zerolog.Logger, limiter *rate.Limiter) Service {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Every(time.Minute), 5)
	}
	return &service{
		store:       store,
		logger:      logger.With().Str("component", "members").Logger(),
		rateLimiter: limiter,
	}
}

const memberColumns = `id, nombre, documento, correo, username, password, salt, role, creado_en, actualizado_en`

// defaultAdminUsername names the seeded account that administrative
// operations must not remove or demote.
const defaultAdminUsername = "admin"

func (s *service) RegisterMember(ctx context.Context, input MemberInput) (*Member, error) {
	if !s.rateLimiter.Allow() {
		return nil, fmt.Errorf("%w: registration rate limit exceeded", errs.ErrConflict)
	}

	name := strings.TrimSpace(input.Name)
	username := strings.TrimSpace(input.Username)
	if name == "" || username == "" {
		return nil, fmt.Errorf("%w: nombre and username are required", errs.ErrValidation)
	}
	if input.Password == "" {
		return nil, fmt.Errorf("%w: password is required", errs.ErrValidation)
	}

	var exists int
	check := s.store.Rebind(`SELECT COUNT(1) FROM usuarios WHERE username = ?`)
	if err := s.store.DB.GetContext(ctx, &exists, check, username); err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if exists > 0 {
		return nil, fmt.Errorf("%w: username %s already taken", errs.ErrConflict, username)
	}

	passwordHash, salt, err := hashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	role := strings.TrimSpace(input.Role)
	if role == "" {
		role = "user"
	}
	now := time.Now().UTC()
	member := &Member{
		ID:           uuid.NewString(),
		Name:         name,
		Document:     strings.TrimSpace(input.Document),
		Email:        strings.TrimSpace(input.Email),
		Username:     username,
		Role:         role,
		PasswordHash: passwordHash,
		Salt:         salt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	query := s.store.Rebind(`INSERT INTO usuarios (` + memberColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err = s.store.DB.ExecContext(ctx, query,
		member.ID, member.Name, member.Document, member.Email, member.Username,
		member.PasswordHash, member.Salt, member.Role, member.CreatedAt, member.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert member: %w", err)
	}

	s.logger.Info().Str("member_id", member.ID).Str("username", member.Username).Msg("member registered")
	return member, nil
}

// refClauses are tried in order when resolving a loose member reference.
var refClauses = []string{"id = ?", "documento = ?", "username = ?"}

func (s *service) GetMember(ctx context.Context, ref string) (*Member, error) {
	ref = strings.TrimSpace(ref)
	for _, clause := range refClauses {
		var member Member
		query := s.store.Rebind(`SELECT ` + memberColumns + ` FROM usuarios WHERE ` + clause + ` LIMIT 1`)
		err := s.store.DB.GetContext(ctx, &member, query, ref)
		if err == nil {
			return &member, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("get member: %w", err)
		}
	}
	return nil, fmt.Errorf("%w: member %s", errs.ErrNotFound, ref)
}

func (s *service) lockByRef(ctx context.Context, tx *sqlx.Tx, ref string) (*Member, error) {
	ref = strings.TrimSpace(ref)
	for _, clause := range refClauses {
		var member Member
		query := s.store.Rebind(`SELECT ` + memberColumns + ` FROM usuarios WHERE ` + clause + ` LIMIT 1` + s.store.LockSuffix())
		err := tx.GetContext(ctx, &member, query, ref)
		if err == nil {
			return &member, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("lock member: %w", err)
		}
	}
	return nil, fmt.Errorf("%w: member %s", errs.ErrNotFound, ref)
}

func (s *service) UpdateMember(ctx context.Context, ref string, patch MemberPatch) (*Member, error) {
	var member *Member
	err := s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		member, err = s.lockByRef(ctx, tx, ref)
		if err != nil {
			return err
		}

		if member.Username == defaultAdminUsername {
			if patch.Username != nil && strings.TrimSpace(*patch.Username) != defaultAdminUsername {
				return fmt.Errorf("%w: the default admin username cannot be changed", errs.ErrValidation)
			}
			if patch.Role != nil && strings.TrimSpace(*patch.Role) != member.Role {
				return fmt.Errorf("%w: the default admin role cannot be changed", errs.ErrValidation)
			}
		}

		applyString := func(dst *string, src *string) {
			if src != nil {
				*dst = strings.TrimSpace(*src)
			}
		}
		applyString(&member.Name, patch.Name)
		applyString(&member.Document, patch.Document)
		applyString(&member.Email, patch.Email)
		applyString(&member.Role, patch.Role)
		if member.Name == "" {
			return fmt.Errorf("%w: nombre is required", errs.ErrValidation)
		}

		if patch.Username != nil {
			username := strings.TrimSpace(*patch.Username)
			if username == "" {
				return fmt.Errorf("%w: username is required", errs.ErrValidation)
			}
			if username != member.Username {
				var taken int
				check := s.store.Rebind(`SELECT COUNT(1) FROM usuarios WHERE username = ? AND id <> ?`)
				if err := tx.GetContext(ctx, &taken, check, username, member.ID); err != nil {
					return fmt.Errorf("check username: %w", err)
				}
				if taken > 0 {
					return fmt.Errorf("%w: username %s already taken", errs.ErrConflict, username)
				}
				member.Username = username
			}
		}

		if patch.Password != nil {
			if *patch.Password == "" {
				return fmt.Errorf("%w: password must not be empty", errs.ErrValidation)
			}
			hash, salt, err := hashPassword(*patch.Password)
			if err != nil {
				return fmt.Errorf("failed to hash password: %w", err)
			}
			member.PasswordHash = hash
			member.Salt = salt
		}

		member.UpdatedAt = time.Now().UTC()
		update := s.store.Rebind(`UPDATE usuarios SET
			nombre = ?, documento = ?, correo = ?, username = ?, password = ?, salt = ?, role = ?, actualizado_en = ?
			WHERE id = ?`)
		if _, err := tx.ExecContext(ctx, update,
			member.Name, member.Document, member.Email, member.Username,
			member.PasswordHash, member.Salt, member.Role, member.UpdatedAt, member.ID); err != nil {
			return fmt.Errorf("update member: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("member_id", member.ID).Msg("member updated")
	return member, nil
}

func (s *service) DeleteMember(ctx context.Context, ref string) error {
	err := s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		member, err := s.lockByRef(ctx, tx, ref)
		if err != nil {
			return err
		}
		if member.Username == defaultAdminUsername {
			return fmt.Errorf("%w: the default admin account cannot be deleted", errs.ErrValidation)
		}

		query := s.store.Rebind(`DELETE FROM usuarios WHERE id = ?`)
		if _, err := tx.ExecContext(ctx, query, member.ID); err != nil {
			return fmt.Errorf("delete member: %w", err)
		}
		s.logger.Info().Str("member_id", member.ID).Str("username", member.Username).Msg("member deleted")
		return nil
	})
	return err
}

func (s *service) ListMembers(ctx context.Context) ([]*Member, error) {
	members := []*Member{}
	query := `SELECT ` + memberColumns + ` FROM usuarios ORDER BY creado_en, id`
	if err := s.store.DB.SelectContext(ctx, &members, query); err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return members, nil
}

func (s *service) VerifyCredentials(ctx context.Context, username, password string) (*Member, error) {
	var member Member
	query := s.store.Rebind(`SELECT ` + memberColumns + ` FROM usuarios WHERE username = ?`)
	if err := s.store.DB.GetContext(ctx, &member, query, username); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: unknown username", errs.ErrNotFound)
		}
		return nil, fmt.Errorf("get member: %w", err)
	}

	ok, err := verifyPassword(password, member.Salt, member.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: wrong password", errs.ErrValidation)
	}
	return &member, nil
}
