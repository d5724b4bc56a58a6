package models

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleSuperAdmin UserRole = "SUPERADMIN"
	RoleAdmin      UserRole = "ADMIN"
	RoleStaff      UserRole = "STAFF"
)

// Capability names an operation class gated by the policy table.
type Capability string

const (
	CapabilityApprovalRead   Capability = "approval:read"
	CapabilityApprovalDecide Capability = "approval:decide"
	CapabilityDirectoryRead  Capability = "directory:read"
	CapabilityDirectoryWrite Capability = "directory:write"
	CapabilityFinanceRead    Capability = "finance:read"
	CapabilityFinanceWrite   Capability = "finance:write"
	CapabilityRecordRead     Capability = "record:read"
	CapabilityRecordWrite    Capability = "record:write"
)

// policy maps each capability to the roles allowed to exercise it.
var policy = map[Capability][]UserRole{
	CapabilityApprovalRead:   {RoleSuperAdmin, RoleAdmin},
	CapabilityApprovalDecide: {RoleSuperAdmin, RoleAdmin},
	CapabilityDirectoryRead:  {RoleSuperAdmin, RoleAdmin, RoleStaff},
	CapabilityDirectoryWrite: {RoleSuperAdmin, RoleAdmin, RoleStaff},
	CapabilityFinanceRead:    {RoleSuperAdmin, RoleAdmin},
	CapabilityFinanceWrite:   {RoleSuperAdmin, RoleAdmin},
	CapabilityRecordRead:     {RoleSuperAdmin, RoleAdmin, RoleStaff},
	CapabilityRecordWrite:    {RoleSuperAdmin, RoleAdmin, RoleStaff},
}

// Allowed reports whether the role may exercise the capability.
func Allowed(capability Capability, role UserRole) bool {
	for _, allowed := range policy[capability] {
		if allowed == role {
			return true
		}
	}
	return false
}
