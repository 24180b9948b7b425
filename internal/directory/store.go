package directory

import "context"

// Store is the persistence boundary for users, roles and structures.
//
// User reads return the role and home structures eagerly loaded. DescendantsOf
// is the tree contract: implementations keep an ancestor/descendant closure
// index coherent across structure inserts, reparents and deletes, so the query
// always reflects the current tree shape.
type Store interface {
	UserByID(ctx context.Context, id int64) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	ListUsersByStructureIDs(ctx context.Context, structureIDs []int64) ([]User, error)
	CreateUser(ctx context.Context, name string, roleID int64, structureIDs []int64) (User, error)
	UpdateUser(ctx context.Context, id int64, name string, roleID int64, structureIDs []int64) (User, error)
	DeleteUser(ctx context.Context, id int64) error

	RoleByID(ctx context.Context, id int64) (Role, error)
	ListRoles(ctx context.Context) ([]Role, error)
	CreateRole(ctx context.Context, name string) (Role, error)
	UpdateRole(ctx context.Context, id int64, name string) (Role, error)
	DeleteRole(ctx context.Context, id int64) error

	StructureByID(ctx context.Context, id int64) (Structure, error)
	StructuresByIDs(ctx context.Context, ids []int64) ([]Structure, error)
	ListStructures(ctx context.Context) ([]Structure, error)
	CreateStructure(ctx context.Context, name string, parentID *int64) (Structure, error)
	UpdateStructure(ctx context.Context, id int64, name string, parentID *int64) (Structure, error)
	DeleteStructure(ctx context.Context, id int64) error

	// DescendantsOf returns the strict descendants of a structure (the node
	// itself excluded). An unknown id yields an empty set, not an error.
	DescendantsOf(ctx context.Context, structureID int64) ([]Structure, error)
}
