package users

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/constructa/propostas/internal/numbering"
	"github.com/constructa/propostas/internal/platform/httpx"
	"github.com/constructa/propostas/internal/shared"
)

// Service handles user business logic.
type Service struct {
	repo  Repository
	audit shared.Auditor
}

// NewService builds Service instance.
func NewService(repo Repository, audit shared.Auditor) *Service {
	return &Service{repo: repo, audit: audit}
}

// HashPassword hashes a password with bcrypt's default cost.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// checkCode keeps salesperson codes out of the quote numbering sequence,
// which shares the counters table.
func checkCode(code string) error {
	if code == numbering.QuoteCode {
		return httpx.ValidationErrors{"salesperson_code": "reserved for quote numbers"}
	}
	return nil
}

// List returns users matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]User, int, error) {
	return s.repo.List(ctx, filter)
}

// Get returns a single user.
func (s *Service) Get(ctx context.Context, id int64) (*User, error) {
	return s.repo.Get(ctx, id)
}

// Create validates and stores a new user.
func (s *Service) Create(ctx context.Context, actorID int64, req CreateUserRequest) (*User, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.SalespersonCode = strings.TrimSpace(req.SalespersonCode)
	if err := httpx.Validate(req); err != nil {
		return nil, err
	}
	if err := checkCode(req.SalespersonCode); err != nil {
		return nil, err
	}
	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	u := User{
		Email:           req.Email,
		FullName:        strings.TrimSpace(req.FullName),
		PasswordHash:    hash,
		Role:            req.Role,
		SalespersonCode: req.SalespersonCode,
		Phone:           strings.TrimSpace(req.Phone),
		IsActive:        true,
	}
	if req.AuthSubject != nil {
		sub := uuid.MustParse(*req.AuthSubject)
		u.AuthSubject = &sub
	}
	id, err := s.repo.Create(ctx, u)
	if err != nil {
		return nil, err
	}
	s.record(ctx, actorID, "user.create", id, map[string]any{"email": u.Email, "role": u.Role})
	return s.repo.Get(ctx, id)
}

// Update applies a partial update.
func (s *Service) Update(ctx context.Context, actorID, id int64, req UpdateUserRequest) (*User, error) {
	if err := httpx.Validate(req); err != nil {
		return nil, err
	}
	if req.SalespersonCode != nil {
		if err := checkCode(*req.SalespersonCode); err != nil {
			return nil, err
		}
	}
	u, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.FullName != nil {
		u.FullName = strings.TrimSpace(*req.FullName)
	}
	if req.Role != nil {
		u.Role = *req.Role
	}
	if req.SalespersonCode != nil {
		u.SalespersonCode = *req.SalespersonCode
	}
	if req.Phone != nil {
		u.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.AuthSubject != nil {
		sub := uuid.MustParse(*req.AuthSubject)
		u.AuthSubject = &sub
	}
	if req.IsActive != nil {
		if !*req.IsActive && id == actorID {
			return nil, ErrSelfDeactivate
		}
		u.IsActive = *req.IsActive
	}
	if err := s.repo.Update(ctx, *u); err != nil {
		return nil, err
	}
	s.record(ctx, actorID, "user.update", id, nil)
	return s.repo.Get(ctx, id)
}

// Deactivate disables a user account.
func (s *Service) Deactivate(ctx context.Context, actorID, id int64) error {
	active := false
	_, err := s.Update(ctx, actorID, id, UpdateUserRequest{IsActive: &active})
	return err
}

// ResetPassword replaces the stored password hash.
func (s *Service) ResetPassword(ctx context.Context, actorID, id int64, req ResetPasswordRequest) error {
	if err := httpx.Validate(req); err != nil {
		return err
	}
	hash, err := HashPassword(req.Password)
	if err != nil {
		return err
	}
	if err := s.repo.SetPassword(ctx, id, hash); err != nil {
		return err
	}
	s.record(ctx, actorID, "user.reset_password", id, nil)
	return nil
}

func (s *Service) record(ctx context.Context, actorID int64, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{ActorID: actorID, Action: action, Entity: "user", EntityID: fmt.Sprint(id), Meta: meta})
}
