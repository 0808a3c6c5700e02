package rbac

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeCollapsesAliases(t *testing.T) {
	require.Equal(t, RoleDealer, Normalize("dealer_admin"))
	require.Equal(t, RoleDealer, Normalize(" Dealer "))
	require.Equal(t, RoleSalesExecutive, Normalize("sales_exec"))
	require.Equal(t, RoleAdmin, Normalize("SuperAdmin"))
	require.Equal(t, Role("ghost"), Normalize("ghost"))
	require.False(t, Known(Normalize("ghost")))
}

func TestAuthorize(t *testing.T) {
	require.True(t, Authorize(RoleCEO, ActionOrdersGRN))
	require.True(t, Authorize(RoleServiceEngineer, ActionPDIRecord))
	require.False(t, Authorize(RoleServiceEngineer, ActionDealsEdit))
	require.False(t, Authorize(RoleSalesExecutive, ActionApprovalsAct))
	require.False(t, Authorize(Role("ghost"), ActionLeadsView))
}

func TestVisibleApproverRoles(t *testing.T) {
	require.ElementsMatch(t,
		[]Role{RoleSalesManager, RoleSalesHead, RoleFinanceManager},
		VisibleApproverRoles(RoleCEO))
	require.Equal(t, []Role{RoleFinanceManager}, VisibleApproverRoles(RoleFinanceManager))
	require.Nil(t, VisibleApproverRoles(RoleDealer))
}
