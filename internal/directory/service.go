package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Service wraps a Store with input normalization and explicit existence checks
// for referenced entities. Role and structure references are verified up front
// so a missing reference surfaces as a not-found error before anything is
// persisted, never inferred from store error text.
type Service struct {
	store Store
}

func NewService(store Store) (*Service, error) {
	if store == nil {
		return nil, errors.New("directory store is required")
	}
	return &Service{store: store}, nil
}

// Store exposes the underlying store for collaborators that consume the raw
// persistence contract (the authorization engine and the scope resolver).
func (s *Service) Store() Store { return s.store }

func (s *Service) UserByID(ctx context.Context, id int64) (User, error) {
	if id <= 0 {
		return User{}, fmt.Errorf("%w: user id must be positive", ErrInvalidInput)
	}
	return s.store.UserByID(ctx, id)
}

func (s *Service) CreateUser(ctx context.Context, name string, roleID int64, structureIDs []int64) (User, error) {
	name, roleID, structureIDs, err := s.normalizeUserInput(ctx, name, roleID, structureIDs)
	if err != nil {
		return User{}, err
	}
	return s.store.CreateUser(ctx, name, roleID, structureIDs)
}

func (s *Service) UpdateUser(ctx context.Context, id int64, name string, roleID int64, structureIDs []int64) (User, error) {
	if id <= 0 {
		return User{}, fmt.Errorf("%w: user id must be positive", ErrInvalidInput)
	}
	name, roleID, structureIDs, err := s.normalizeUserInput(ctx, name, roleID, structureIDs)
	if err != nil {
		return User{}, err
	}
	return s.store.UpdateUser(ctx, id, name, roleID, structureIDs)
}

func (s *Service) DeleteUser(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: user id must be positive", ErrInvalidInput)
	}
	return s.store.DeleteUser(ctx, id)
}

// normalizeUserInput validates the shape of a user write and resolves its
// references. Requesting structure ids that the store cannot all produce is a
// not-found failure, not a partial success.
func (s *Service) normalizeUserInput(ctx context.Context, name string, roleID int64, structureIDs []int64) (string, int64, []int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", 0, nil, fmt.Errorf("%w: user name is required", ErrInvalidInput)
	}
	if roleID <= 0 {
		return "", 0, nil, fmt.Errorf("%w: role id must be positive", ErrInvalidInput)
	}
	ids := dedupeIDs(structureIDs)
	if len(ids) == 0 {
		return "", 0, nil, fmt.Errorf("%w: at least one structure id is required", ErrInvalidInput)
	}
	if _, err := s.store.RoleByID(ctx, roleID); err != nil {
		return "", 0, nil, err
	}
	found, err := s.store.StructuresByIDs(ctx, ids)
	if err != nil {
		return "", 0, nil, err
	}
	if len(found) != len(ids) {
		return "", 0, nil, ErrStructureNotFound
	}
	return name, roleID, ids, nil
}

func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.store.ListRoles(ctx)
}

func (s *Service) RoleByID(ctx context.Context, id int64) (Role, error) {
	if id <= 0 {
		return Role{}, fmt.Errorf("%w: role id must be positive", ErrInvalidInput)
	}
	return s.store.RoleByID(ctx, id)
}

func (s *Service) CreateRole(ctx context.Context, name string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, fmt.Errorf("%w: role name is required", ErrInvalidInput)
	}
	return s.store.CreateRole(ctx, name)
}

func (s *Service) UpdateRole(ctx context.Context, id int64, name string) (Role, error) {
	if id <= 0 {
		return Role{}, fmt.Errorf("%w: role id must be positive", ErrInvalidInput)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, fmt.Errorf("%w: role name is required", ErrInvalidInput)
	}
	return s.store.UpdateRole(ctx, id, name)
}

func (s *Service) DeleteRole(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: role id must be positive", ErrInvalidInput)
	}
	return s.store.DeleteRole(ctx, id)
}

func (s *Service) ListStructures(ctx context.Context) ([]Structure, error) {
	return s.store.ListStructures(ctx)
}

func (s *Service) StructureByID(ctx context.Context, id int64) (Structure, error) {
	if id <= 0 {
		return Structure{}, fmt.Errorf("%w: structure id must be positive", ErrInvalidInput)
	}
	return s.store.StructureByID(ctx, id)
}

func (s *Service) CreateStructure(ctx context.Context, name string, parentID *int64) (Structure, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Structure{}, fmt.Errorf("%w: structure name is required", ErrInvalidInput)
	}
	if parentID != nil && *parentID <= 0 {
		return Structure{}, fmt.Errorf("%w: parent id must be positive", ErrInvalidInput)
	}
	return s.store.CreateStructure(ctx, name, parentID)
}

func (s *Service) UpdateStructure(ctx context.Context, id int64, name string, parentID *int64) (Structure, error) {
	if id <= 0 {
		return Structure{}, fmt.Errorf("%w: structure id must be positive", ErrInvalidInput)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Structure{}, fmt.Errorf("%w: structure name is required", ErrInvalidInput)
	}
	if parentID != nil {
		if *parentID <= 0 {
			return Structure{}, fmt.Errorf("%w: parent id must be positive", ErrInvalidInput)
		}
		if *parentID == id {
			return Structure{}, fmt.Errorf("%w: structure cannot be its own parent", ErrInvalidInput)
		}
	}
	return s.store.UpdateStructure(ctx, id, name, parentID)
}

func (s *Service) DeleteStructure(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: structure id must be positive", ErrInvalidInput)
	}
	return s.store.DeleteStructure(ctx, id)
}

func dedupeIDs(values []int64) []int64 {
	if len(values) == 0 {
		return nil
	}
	set := make(map[int64]struct{}, len(values))
	result := make([]int64, 0, len(values))
	for _, v := range values {
		if v <= 0 {
			continue
		}
		if _, ok := set[v]; ok {
			continue
		}
		set[v] = struct{}{}
		result = append(result, v)
	}
	return result
}
