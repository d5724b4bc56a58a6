package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllowed(t *testing.T) {
	// Deciding approvals and touching money stay with admins.
	require.True(t, Allowed(CapabilityApprovalDecide, RoleSuperAdmin))
	require.True(t, Allowed(CapabilityApprovalDecide, RoleAdmin))
	require.False(t, Allowed(CapabilityApprovalDecide, RoleStaff))

	require.True(t, Allowed(CapabilityFinanceWrite, RoleAdmin))
	require.False(t, Allowed(CapabilityFinanceWrite, RoleStaff))

	// Directory and record work is day-to-day staff business.
	require.True(t, Allowed(CapabilityDirectoryWrite, RoleStaff))
	require.True(t, Allowed(CapabilityRecordRead, RoleStaff))

	require.False(t, Allowed(Capability("unknown:cap"), RoleSuperAdmin))
	require.False(t, Allowed(CapabilityApprovalRead, UserRole("GUEST")))
}
