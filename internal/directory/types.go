package directory

// Structure is a node in the organizational hierarchy. A structure with a nil
// parent is a root; the parent relation forms a forest.
type Structure struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	ParentID *int64 `json:"parentId,omitempty"`
}

// Role groups users into capability tiers. The numeric id is the storage
// encoding; callers that need capability semantics go through internal/access.
type Role struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// User is a directory member. Every user carries exactly one role and at
// least one home structure once created through the service layer.
type User struct {
	ID         int64       `json:"id"`
	Name       string      `json:"name"`
	Role       Role        `json:"role"`
	Structures []Structure `json:"structures"`
}

// HomeStructureIDs returns the ids of the user's home structures.
func (u User) HomeStructureIDs() []int64 {
	ids := make([]int64, 0, len(u.Structures))
	for _, s := range u.Structures {
		ids = append(ids, s.ID)
	}
	return ids
}
