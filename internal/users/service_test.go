package users

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/constructa/propostas/internal/numbering"
	"github.com/constructa/propostas/internal/platform/httpx"
	"github.com/constructa/propostas/internal/shared"
)

type memRepo struct {
	users  map[int64]*User
	nextID int64
}

func newMemRepo() *memRepo {
	return &memRepo{users: map[int64]*User{}}
}

func (m *memRepo) List(ctx context.Context, filter ListFilter) ([]User, int, error) {
	var out []User
	for _, u := range m.users {
		out = append(out, *u)
	}
	return out, len(out), nil
}

func (m *memRepo) Get(ctx context.Context, id int64) (*User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memRepo) GetByEmail(ctx context.Context, email string) (*User, error) {
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memRepo) GetBySubject(ctx context.Context, subject uuid.UUID) (*User, error) {
	for _, u := range m.users {
		if u.AuthSubject != nil && *u.AuthSubject == subject {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memRepo) Create(ctx context.Context, u User) (int64, error) {
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return 0, ErrDuplicateEmail
		}
		if existing.SalespersonCode == u.SalespersonCode {
			return 0, ErrDuplicateCode
		}
	}
	m.nextID++
	u.ID = m.nextID
	m.users[u.ID] = &u
	return u.ID, nil
}

func (m *memRepo) Update(ctx context.Context, u User) error {
	if _, ok := m.users[u.ID]; !ok {
		return ErrNotFound
	}
	m.users[u.ID] = &u
	return nil
}

func (m *memRepo) SetPassword(ctx context.Context, id int64, hash string) error {
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

func validCreate() CreateUserRequest {
	return CreateUserRequest{
		Email:           " Maria@Constructa.com.br ",
		FullName:        "Maria Souza",
		Password:        "segredo123",
		Role:            shared.RoleVendor,
		SalespersonCode: "MS",
	}
}

func TestCreateUser(t *testing.T) {
	audit := &shared.AuditRecorder{}
	svc := NewService(newMemRepo(), audit)

	u, err := svc.Create(context.Background(), 1, validCreate())
	require.NoError(t, err)
	assert.Equal(t, "maria@constructa.com.br", u.Email)
	assert.True(t, u.IsActive)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("segredo123")))
	require.Len(t, audit.Entries, 1)
	assert.Equal(t, "user.create", audit.Entries[0].Action)

	_, err = svc.Create(context.Background(), 1, validCreate())
	assert.ErrorIs(t, err, httpx.ErrDuplicate)
}

func TestCreateUserValidation(t *testing.T) {
	svc := NewService(newMemRepo(), nil)
	tests := []struct {
		name   string
		mutate func(*CreateUserRequest)
		field  string
	}{
		{"lowercase code", func(r *CreateUserRequest) { r.SalespersonCode = "ms" }, "salesperson_code"},
		{"code too long", func(r *CreateUserRequest) { r.SalespersonCode = "ABCDEFGHIJK" }, "salesperson_code"},
		{"code with dash", func(r *CreateUserRequest) { r.SalespersonCode = "A-B" }, "salesperson_code"},
		{"quote prefix", func(r *CreateUserRequest) { r.SalespersonCode = "ORC" }, "salesperson_code"},
		{"bad role", func(r *CreateUserRequest) { r.Role = "owner" }, "role"},
		{"short password", func(r *CreateUserRequest) { r.Password = "123" }, "password"},
		{"bad email", func(r *CreateUserRequest) { r.Email = "maria" }, "email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validCreate()
			tt.mutate(&req)
			_, err := svc.Create(context.Background(), 1, req)
			var verrs httpx.ValidationErrors
			require.ErrorAs(t, err, &verrs)
			assert.Contains(t, verrs, tt.field)
		})
	}
}

func TestUpdateRejectsQuotePrefix(t *testing.T) {
	svc := NewService(newMemRepo(), nil)
	u, err := svc.Create(context.Background(), 1, validCreate())
	require.NoError(t, err)

	code := numbering.QuoteCode
	_, err = svc.Update(context.Background(), 1, u.ID, UpdateUserRequest{SalespersonCode: &code})
	assert.ErrorIs(t, err, httpx.ErrValidation)
}

func TestUsersCannotDeactivateThemselves(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil)
	u, err := svc.Create(context.Background(), 0, validCreate())
	require.NoError(t, err)

	err = svc.Deactivate(context.Background(), u.ID, u.ID)
	assert.ErrorIs(t, err, ErrSelfDeactivate)

	require.NoError(t, svc.Deactivate(context.Background(), 99, u.ID))
	got, _ := repo.Get(context.Background(), u.ID)
	assert.False(t, got.IsActive)
}

func TestResetPassword(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil)
	u, err := svc.Create(context.Background(), 0, validCreate())
	require.NoError(t, err)

	require.NoError(t, svc.ResetPassword(context.Background(), 1, u.ID, ResetPasswordRequest{Password: "novasenha1"}))
	got, _ := repo.Get(context.Background(), u.ID)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(got.PasswordHash), []byte("novasenha1")))

	err = svc.ResetPassword(context.Background(), 1, 404, ResetPasswordRequest{Password: "novasenha1"})
	assert.ErrorIs(t, err, ErrNotFound)
}
