package rbac

import "github.com/constructa/propostas/internal/shared"

// Permissions granted through roles.
const (
	PermQuotesViewAll  = "quotes.view_all"
	PermQuotesManage   = "quotes.manage"
	PermProductsManage = "products.manage"
	PermFreightManage  = "freight.manage"
	PermUsersManage    = "users.manage"
	PermDashboardView  = "dashboard.view"
	PermReportsExport  = "reports.export"
	PermAuditView      = "audit.view"
)

// Permission describes an atomic capability.
type Permission struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Catalog lists every known permission.
var Catalog = []Permission{
	{PermQuotesViewAll, "Ver orçamentos de todos os vendedores"},
	{PermQuotesManage, "Criar e editar orçamentos e propostas"},
	{PermProductsManage, "Gerenciar produtos"},
	{PermFreightManage, "Gerenciar veículos e tabela de frete"},
	{PermUsersManage, "Gerenciar usuários"},
	{PermDashboardView, "Acessar o painel"},
	{PermReportsExport, "Exportar relatórios"},
	{PermAuditView, "Consultar o histórico de alterações"},
}

// rolePermissions is the static role grant table.
var rolePermissions = map[string][]string{
	shared.RoleAdmin: {
		PermQuotesViewAll, PermQuotesManage, PermProductsManage, PermFreightManage,
		PermUsersManage, PermDashboardView, PermReportsExport, PermAuditView,
	},
	shared.RoleManager: {
		PermQuotesViewAll, PermQuotesManage, PermProductsManage, PermFreightManage,
		PermDashboardView, PermReportsExport, PermAuditView,
	},
	shared.RoleVendor: {
		PermQuotesManage, PermDashboardView,
	},
}

// Roles lists the valid role names.
func Roles() []string {
	return []string{shared.RoleAdmin, shared.RoleManager, shared.RoleVendor}
}
