package rbac

// Action identifies a guarded operation.
type Action string

const (
	ActionLeadsView      Action = "leads.view"
	ActionLeadsEdit      Action = "leads.edit"
	ActionKYCEdit        Action = "kyc.edit"
	ActionDealsView      Action = "deals.view"
	ActionDealsEdit      Action = "deals.edit"
	ActionApprovalsView  Action = "approvals.view"
	ActionApprovalsAct   Action = "approvals.act"
	ActionOEMView        Action = "oem.view"
	ActionOEMEdit        Action = "oem.edit"
	ActionCatalogView    Action = "catalog.view"
	ActionCatalogEdit    Action = "catalog.edit"
	ActionInventoryView  Action = "inventory.view"
	ActionInventoryEdit  Action = "inventory.edit"
	ActionProvisionView  Action = "provisions.view"
	ActionProvisionEdit  Action = "provisions.edit"
	ActionPDIRecord      Action = "pdi.record"
	ActionOrdersView     Action = "orders.view"
	ActionOrdersEdit     Action = "orders.edit"
	ActionOrdersGRN      Action = "orders.grn"
	ActionDisputeResolve Action = "disputes.resolve"
	ActionAuditView      Action = "audit.view"
	ActionSyncTrigger    Action = "telematics.trigger"
)

// matrix enumerates the allowed actions per role. RoleCEO is absent on
// purpose: Authorize grants it everything.
var matrix = map[Role]map[Action]bool{
	RoleAdmin: allOf(
		ActionLeadsView, ActionLeadsEdit, ActionKYCEdit,
		ActionDealsView, ActionDealsEdit, ActionApprovalsView,
		ActionOEMView, ActionOEMEdit, ActionCatalogView, ActionCatalogEdit,
		ActionInventoryView, ActionInventoryEdit,
		ActionProvisionView, ActionProvisionEdit,
		ActionOrdersView, ActionOrdersEdit, ActionOrdersGRN,
		ActionDisputeResolve, ActionAuditView, ActionSyncTrigger,
	),
	RoleDealer: allOf(
		ActionLeadsView, ActionLeadsEdit, ActionKYCEdit,
		ActionDealsView, ActionDealsEdit,
		ActionCatalogView, ActionInventoryView,
		ActionOrdersView, ActionOrdersEdit,
	),
	RoleSalesExecutive: allOf(
		ActionLeadsView, ActionLeadsEdit, ActionKYCEdit,
		ActionDealsView, ActionDealsEdit, ActionCatalogView,
	),
	RoleSalesManager: allOf(
		ActionLeadsView, ActionLeadsEdit,
		ActionDealsView, ActionApprovalsView, ActionApprovalsAct,
		ActionCatalogView, ActionInventoryView, ActionOrdersView,
	),
	RoleSalesHead: allOf(
		ActionLeadsView,
		ActionDealsView, ActionApprovalsView, ActionApprovalsAct,
		ActionOEMView, ActionCatalogView, ActionInventoryView,
		ActionOrdersView, ActionDisputeResolve,
	),
	RoleFinanceManager: allOf(
		ActionDealsView, ActionApprovalsView, ActionApprovalsAct,
		ActionInventoryView, ActionOrdersView, ActionAuditView,
	),
	RoleServiceEngineer: allOf(
		ActionInventoryView, ActionProvisionView, ActionPDIRecord,
	),
	RoleOEMManager: allOf(
		ActionOEMView, ActionCatalogView, ActionInventoryView,
		ActionProvisionView, ActionProvisionEdit, ActionOrdersGRN,
	),
}

func allOf(actions ...Action) map[Action]bool {
	set := make(map[Action]bool, len(actions))
	for _, a := range actions {
		set[a] = true
	}
	return set
}

// Authorize reports whether the role may perform the action.
func Authorize(role Role, action Action) bool {
	if role == RoleCEO {
		return true
	}
	allowed, ok := matrix[role]
	if !ok {
		return false
	}
	return allowed[action]
}

// VisibleApproverRoles maps a caller role to the approver roles whose pending
// approvals it may see. RoleCEO sees the union of all approver roles. Roles
// with no mapping see nothing.
func VisibleApproverRoles(role Role) []Role {
	switch role {
	case RoleCEO:
		return []Role{RoleSalesManager, RoleSalesHead, RoleFinanceManager}
	case RoleSalesManager, RoleSalesHead, RoleFinanceManager:
		return []Role{role}
	default:
		return nil
	}
}
