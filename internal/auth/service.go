package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/constructa/propostas/internal/platform/httpx"
	"github.com/constructa/propostas/internal/rbac"
	"github.com/constructa/propostas/internal/shared"
	"github.com/constructa/propostas/internal/users"
)

// UserLookup is the subset of the users repository auth needs.
type UserLookup interface {
	Get(ctx context.Context, id int64) (*users.User, error)
	GetByEmail(ctx context.Context, email string) (*users.User, error)
	GetBySubject(ctx context.Context, subject uuid.UUID) (*users.User, error)
}

// Service wraps authentication business rules.
type Service struct {
	users    UserLookup
	sessions SessionRepository
	rbac     *rbac.Service
	verifier *TokenVerifier
}

// NewService constructs a new Service. A nil verifier disables bearer tokens.
func NewService(lookup UserLookup, sessions SessionRepository, rbacSvc *rbac.Service, verifier *TokenVerifier) *Service {
	if rbacSvc == nil {
		rbacSvc = rbac.NewService()
	}
	return &Service{users: lookup, sessions: sessions, rbac: rbacSvc, verifier: verifier}
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*users.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !user.IsActive || user.PasswordHash == "" {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// RegisterSession persists the session metadata in postgres.
func (s *Service) RegisterSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	if s.sessions == nil {
		return nil
	}
	return s.sessions.CreateSession(ctx, id, userID, expiresAt, ip, ua)
}

// RemoveSession deletes a session record from postgres.
func (s *Service) RemoveSession(ctx context.Context, id string) error {
	if s.sessions == nil {
		return nil
	}
	return s.sessions.DeleteSession(ctx, id)
}

// SessionPrincipal resolves the user stored in a session.
func (s *Service) SessionPrincipal(ctx context.Context, rawUserID string) (shared.Principal, error) {
	id, err := strconv.ParseInt(rawUserID, 10, 64)
	if err != nil {
		return shared.Principal{}, fmt.Errorf("%w: bad session user", httpx.ErrUnauthorized)
	}
	user, err := s.users.Get(ctx, id)
	if err != nil {
		return shared.Principal{}, fmt.Errorf("%w: session user: %v", httpx.ErrUnauthorized, err)
	}
	return s.principal(user, "session")
}

// BearerPrincipal verifies a hosted-auth access token and maps its subject to
// a local user through auth_subject.
func (s *Service) BearerPrincipal(ctx context.Context, token string) (shared.Principal, error) {
	if s.verifier == nil {
		return shared.Principal{}, fmt.Errorf("%w: bearer tokens disabled", httpx.ErrUnauthorized)
	}
	sub, _, err := s.verifier.Verify(token)
	if err != nil {
		return shared.Principal{}, fmt.Errorf("%w: %v", httpx.ErrUnauthorized, err)
	}
	user, err := s.users.GetBySubject(ctx, sub)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return shared.Principal{}, fmt.Errorf("%w: no user linked to subject", httpx.ErrUnauthorized)
		}
		return shared.Principal{}, err
	}
	return s.principal(user, "bearer")
}

// PrincipalFor builds the principal for an authenticated user.
func (s *Service) PrincipalFor(user *users.User, via string) (shared.Principal, error) {
	return s.principal(user, via)
}

func (s *Service) principal(user *users.User, via string) (shared.Principal, error) {
	if !user.IsActive {
		return shared.Principal{}, fmt.Errorf("%w: user inactive", httpx.ErrUnauthorized)
	}
	perms, err := s.rbac.EffectivePermissions(user.Role)
	if err != nil {
		return shared.Principal{}, fmt.Errorf("%w: %v", httpx.ErrForbidden, err)
	}
	return shared.Principal{
		UserID:          user.ID,
		Email:           user.Email,
		FullName:        user.FullName,
		Role:            user.Role,
		SalespersonCode: user.SalespersonCode,
		Permissions:     perms,
		Via:             via,
	}, nil
}
