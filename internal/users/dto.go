package users

// CreateUserRequest is the payload for POST /api/users.
type CreateUserRequest struct {
	Email           string  `json:"email" validate:"required,email,max=254"`
	FullName        string  `json:"full_name" validate:"required,max=120"`
	Password        string  `json:"password" validate:"required,min=8,max=72"`
	Role            string  `json:"role" validate:"required,oneof=admin manager vendor"`
	SalespersonCode string  `json:"salesperson_code" validate:"required,min=2,max=10,alphanum,uppercase"`
	Phone           string  `json:"phone" validate:"max=30"`
	AuthSubject     *string `json:"auth_subject,omitempty" validate:"omitempty,uuid"`
}

// UpdateUserRequest patches a user. Nil fields keep their value.
type UpdateUserRequest struct {
	FullName        *string `json:"full_name,omitempty" validate:"omitempty,min=1,max=120"`
	Role            *string `json:"role,omitempty" validate:"omitempty,oneof=admin manager vendor"`
	SalespersonCode *string `json:"salesperson_code,omitempty" validate:"omitempty,min=2,max=10,alphanum,uppercase"`
	Phone           *string `json:"phone,omitempty" validate:"omitempty,max=30"`
	IsActive        *bool   `json:"is_active,omitempty"`
	AuthSubject     *string `json:"auth_subject,omitempty" validate:"omitempty,uuid"`
}

// ResetPasswordRequest sets a new password.
type ResetPasswordRequest struct {
	Password string `json:"password" validate:"required,min=8,max=72"`
}
