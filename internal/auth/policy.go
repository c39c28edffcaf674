// Package auth holds the access policy evaluator: the role→capability
// table, field-level masking, and the actor middleware. Authentication
// itself is handled upstream of this service.
package auth

// Role is an actor's assigned role.
type Role string

const (
	RoleAdmin           Role = "admin"
	RoleITOperator      Role = "it-operator"
	RoleSecurityAnalyst Role = "security-analyst"
	RoleHRPartner       Role = "hr-partner"
	RoleManager         Role = "manager"
	RoleEmployee        Role = "employee"
)

// Capability is a named permission consulted by the engines and the API
// layer.
type Capability string

const (
	CapabilityObjectRead         Capability = "objects:read"
	CapabilityObjectWrite        Capability = "objects:write"
	CapabilityRunStart           Capability = "runs:start"
	CapabilityHighRiskAutomation Capability = "automation:high-risk"
	CapabilityApprovalDecide     Capability = "approvals:decide"
	CapabilitySignalIngest       Capability = "signals:ingest"
)

// Actor identifies who is performing an operation.
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

var roleGrants = map[Role][]Capability{
	RoleAdmin: {
		CapabilityObjectRead, CapabilityObjectWrite, CapabilityRunStart,
		CapabilityHighRiskAutomation, CapabilityApprovalDecide, CapabilitySignalIngest,
	},
	RoleITOperator: {
		CapabilityObjectRead, CapabilityObjectWrite, CapabilityRunStart,
		CapabilityApprovalDecide, CapabilitySignalIngest,
	},
	RoleSecurityAnalyst: {
		CapabilityObjectRead, CapabilityRunStart,
		CapabilityHighRiskAutomation, CapabilityApprovalDecide,
	},
	RoleHRPartner: {
		CapabilityObjectRead, CapabilityRunStart,
	},
	RoleManager: {
		CapabilityObjectRead, CapabilityApprovalDecide,
	},
	RoleEmployee: {
		CapabilityObjectRead,
	},
}

// Can reports whether the role is granted the capability. Pure function;
// unknown roles have no grants.
func Can(role Role, capability Capability) bool {
	for _, c := range roleGrants[role] {
		if c == capability {
			return true
		}
	}
	return false
}
