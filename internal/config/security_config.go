package config

type SecurityLevel int

const (
	SecurityPublic  SecurityLevel = iota // No authentication
	SecurityAccess                       // Access token required
)

const workflowService = "/equiptrack.v1.WorkflowService/"

// EndpointSecurityConfig maps methods to their required security level
var EndpointSecurityConfig = map[string]SecurityLevel{
	"/grpc.health.v1.Health/Check": SecurityPublic,
	"/grpc.health.v1.Health/Watch": SecurityPublic,

	workflowService + "CreateRequest":           SecurityAccess,
	workflowService + "GetRequest":              SecurityAccess,
	workflowService + "ApproveAsTeamLead":       SecurityAccess,
	workflowService + "RejectAsTeamLead":        SecurityAccess,
	workflowService + "ApproveAsAdmin":          SecurityAccess,
	workflowService + "RejectAsAdmin":           SecurityAccess,
	workflowService + "TransitionRequestStatus": SecurityAccess,
	workflowService + "RegisterEquipment":       SecurityAccess,
	workflowService + "GetEquipment":            SecurityAccess,
	workflowService + "TransitionEquipment":     SecurityAccess,
	workflowService + "QueryEquipment":          SecurityAccess,
	workflowService + "Assign":                  SecurityAccess,
	workflowService + "Unassign":                SecurityAccess,
	workflowService + "ListHistory":             SecurityAccess,
}

// GetSecurityLevel returns the security level for a given method
func GetSecurityLevel(method string) SecurityLevel {
	if level, exists := EndpointSecurityConfig[method]; exists {
		return level
	}
	// Default to highest security for unknown endpoints
	return SecurityAccess
}
