// Package rbac holds the enumerated role and permission model. Permissions
// are a static role x action matrix checked by a single Authorize function;
// there is no dynamic permission store.
package rbac

import "strings"

// Role identifies a normalized caller role.
type Role string

const (
	RoleCEO             Role = "ceo"
	RoleAdmin           Role = "admin"
	RoleDealer          Role = "dealer"
	RoleSalesExecutive  Role = "sales_executive"
	RoleSalesManager    Role = "sales_manager"
	RoleSalesHead       Role = "sales_head"
	RoleFinanceManager  Role = "finance_manager"
	RoleServiceEngineer Role = "service_engineer"
	RoleOEMManager      Role = "oem_manager"
)

// aliases collapses role-name synonyms seen in session payloads onto the
// canonical set above.
var aliases = map[string]Role{
	"dealer_admin":  RoleDealer,
	"sales_exec":    RoleSalesExecutive,
	"sales":         RoleSalesExecutive,
	"se":            RoleServiceEngineer,
	"superadmin":    RoleAdmin,
	"super_admin":   RoleAdmin,
	"oem":           RoleOEMManager,
	"finance":       RoleFinanceManager,
	"chief_officer": RoleCEO,
}

// Normalize maps an arbitrary role string onto a canonical Role. Unknown
// strings pass through lower-cased so authorization denies them explicitly.
func Normalize(raw string) Role {
	cleaned := strings.ToLower(strings.TrimSpace(raw))
	if alias, ok := aliases[cleaned]; ok {
		return alias
	}
	return Role(cleaned)
}

// Known reports whether the role is part of the canonical set.
func Known(role Role) bool {
	switch role {
	case RoleCEO, RoleAdmin, RoleDealer, RoleSalesExecutive, RoleSalesManager,
		RoleSalesHead, RoleFinanceManager, RoleServiceEngineer, RoleOEMManager:
		return true
	}
	return false
}
