package users

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/constructa/propostas/internal/platform/httpx"
)

var (
	ErrNotFound       = fmt.Errorf("%w: user not found", httpx.ErrNotFound)
	ErrDuplicateEmail = fmt.Errorf("%w: email already registered", httpx.ErrDuplicate)
	ErrDuplicateCode  = fmt.Errorf("%w: salesperson code already in use", httpx.ErrDuplicate)
	ErrSelfDeactivate = fmt.Errorf("%w: users cannot deactivate themselves", httpx.ErrConflict)
	ErrInvalidRole    = fmt.Errorf("%w: unknown role", httpx.ErrValidation)
)

// User represents a user account.
type User struct {
	ID              int64      `json:"id"`
	AuthSubject     *uuid.UUID `json:"auth_subject,omitempty"`
	Email           string     `json:"email"`
	FullName        string     `json:"full_name"`
	PasswordHash    string     `json:"-"`
	Role            string     `json:"role"`
	SalespersonCode string     `json:"salesperson_code"`
	Phone           string     `json:"phone"`
	IsActive        bool       `json:"is_active"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// ListFilter narrows user listings.
type ListFilter struct {
	Search   string
	Role     string
	IsActive *bool
	Page     int
	PerPage  int
}
