package access

import "orgdir.org/internal/directory"

// Capability is the authorization tier of a principal. It is resolved once at
// principal load; the numeric role encoding stays a directory detail.
type Capability string

const (
	CapabilityManager    Capability = "manager"
	CapabilityRestricted Capability = "restricted"
)

// managerRoleID is the directory encoding of the elevated role.
const managerRoleID = 1

func capabilityForRole(roleID int64) Capability {
	if roleID == managerRoleID {
		return CapabilityManager
	}
	return CapabilityRestricted
}

// Principal is the resolved acting user for the current request. It is derived
// per request and held only in request-scoped context, never persisted.
type Principal struct {
	User       directory.User
	Capability Capability
}

func (p Principal) IsManager() bool { return p.Capability == CapabilityManager }

// HomeStructureIDs returns the ids of the principal's home structures.
func (p Principal) HomeStructureIDs() []int64 { return p.User.HomeStructureIDs() }
