package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/constructa/propostas/internal/shared"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func serve(t *testing.T, mw func(http.Handler) http.Handler, p *shared.Principal) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if p != nil {
		req = req.WithContext(shared.ContextWithPrincipal(req.Context(), *p))
	}
	rec := httptest.NewRecorder()
	mw(okHandler()).ServeHTTP(rec, req)
	return rec.Code
}

func TestRequireAny(t *testing.T) {
	m := Middleware{Service: NewService()}
	vendor := &shared.Principal{UserID: 1, Role: shared.RoleVendor}
	manager := &shared.Principal{UserID: 2, Role: shared.RoleManager}

	assert.Equal(t, http.StatusUnauthorized, serve(t, m.RequireAny(PermQuotesManage), nil))
	assert.Equal(t, http.StatusNoContent, serve(t, m.RequireAny(PermQuotesManage), vendor))
	assert.Equal(t, http.StatusForbidden, serve(t, m.RequireAny(PermUsersManage, PermFreightManage), vendor))
	assert.Equal(t, http.StatusNoContent, serve(t, m.RequireAny(PermUsersManage, PermFreightManage), manager))
	assert.Equal(t, http.StatusNoContent, serve(t, m.RequireAny(), nil))
}

func TestRequireAll(t *testing.T) {
	m := Middleware{Service: NewService()}
	manager := &shared.Principal{UserID: 2, Role: shared.RoleManager}
	admin := &shared.Principal{UserID: 3, Role: shared.RoleAdmin}

	assert.Equal(t, http.StatusForbidden, serve(t, m.RequireAll(PermUsersManage, PermReportsExport), manager))
	assert.Equal(t, http.StatusNoContent, serve(t, m.RequireAll(PermUsersManage, PermReportsExport), admin))
}

func TestRequireUsesPrincipalPermissions(t *testing.T) {
	m := Middleware{Service: NewService()}
	p := &shared.Principal{UserID: 9, Role: "unknown", Permissions: []string{"Reports.Export"}}
	assert.Equal(t, http.StatusNoContent, serve(t, m.RequireAny(PermReportsExport), p))

	noPerms := &shared.Principal{UserID: 9, Role: "unknown"}
	assert.Equal(t, http.StatusForbidden, serve(t, m.RequireAny(PermReportsExport), noPerms))
}

func TestServiceMatrix(t *testing.T) {
	s := NewService()
	perms, err := s.EffectivePermissions("VENDOR")
	require.NoError(t, err)
	assert.Equal(t, []string{PermDashboardView, PermQuotesManage}, perms)

	_, err = s.EffectivePermissions("guest")
	assert.ErrorIs(t, err, ErrUnknownRole)

	assert.True(t, s.Can(shared.Principal{Role: shared.RoleAdmin}, PermUsersManage))
	assert.False(t, s.Can(shared.Principal{Role: shared.RoleManager}, PermUsersManage))
	assert.Len(t, s.Matrix(), 3)
}
