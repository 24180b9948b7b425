// Package memory provides an in-memory directory store. It backs HTTP tests
// and the no-postgres development mode, and maintains the same
// ancestor/descendant closure index as the SQL store so descendant queries
// never walk the tree at read time.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"orgdir.org/internal/directory"
)

type userRecord struct {
	id           int64
	name         string
	roleID       int64
	structureIDs []int64
}

type structureRecord struct {
	id       int64
	name     string
	parentID *int64
}

// Store is a mutex-guarded in-memory implementation of directory.Store.
type Store struct {
	mu         sync.RWMutex
	userSeq    int64
	roleSeq    int64
	structSeq  int64
	users      map[int64]*userRecord
	roles      map[int64]directory.Role
	structures map[int64]*structureRecord

	// closure maps every structure to the set of its descendants, self
	// included. It is updated on insert, reparent and delete so it always
	// mirrors the parent pointers.
	closure map[int64]map[int64]struct{}
}

var _ directory.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		users:      make(map[int64]*userRecord),
		roles:      make(map[int64]directory.Role),
		structures: make(map[int64]*structureRecord),
		closure:    make(map[int64]map[int64]struct{}),
	}
}

// --- users ---

func (s *Store) UserByID(ctx context.Context, id int64) (directory.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.users[id]
	if !ok {
		return directory.User{}, directory.ErrUserNotFound
	}
	return s.assembleUser(rec)
}

func (s *Store) ListUsers(ctx context.Context) ([]directory.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]directory.User, 0, len(s.users))
	for _, rec := range s.users {
		u, err := s.assembleUser(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListUsersByStructureIDs(ctx context.Context, structureIDs []int64) ([]directory.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wanted := make(map[int64]struct{}, len(structureIDs))
	for _, id := range structureIDs {
		wanted[id] = struct{}{}
	}
	out := make([]directory.User, 0)
	for _, rec := range s.users {
		for _, sid := range rec.structureIDs {
			if _, ok := wanted[sid]; ok {
				u, err := s.assembleUser(rec)
				if err != nil {
					return nil, err
				}
				out = append(out, u)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) CreateUser(ctx context.Context, name string, roleID int64, structureIDs []int64) (directory.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[roleID]; !ok {
		return directory.User{}, directory.ErrRoleNotFound
	}
	for _, sid := range structureIDs {
		if _, ok := s.structures[sid]; !ok {
			return directory.User{}, directory.ErrStructureNotFound
		}
	}
	s.userSeq++
	rec := &userRecord{
		id:           s.userSeq,
		name:         name,
		roleID:       roleID,
		structureIDs: append([]int64(nil), structureIDs...),
	}
	s.users[rec.id] = rec
	return s.assembleUser(rec)
}

func (s *Store) UpdateUser(ctx context.Context, id int64, name string, roleID int64, structureIDs []int64) (directory.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[id]
	if !ok {
		return directory.User{}, directory.ErrUserNotFound
	}
	if _, ok := s.roles[roleID]; !ok {
		return directory.User{}, directory.ErrRoleNotFound
	}
	for _, sid := range structureIDs {
		if _, ok := s.structures[sid]; !ok {
			return directory.User{}, directory.ErrStructureNotFound
		}
	}
	rec.name = name
	rec.roleID = roleID
	rec.structureIDs = append([]int64(nil), structureIDs...)
	return s.assembleUser(rec)
}

func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return directory.ErrUserNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *Store) assembleUser(rec *userRecord) (directory.User, error) {
	role, ok := s.roles[rec.roleID]
	if !ok {
		return directory.User{}, fmt.Errorf("user %d references unknown role %d", rec.id, rec.roleID)
	}
	structures := make([]directory.Structure, 0, len(rec.structureIDs))
	for _, sid := range rec.structureIDs {
		st, ok := s.structures[sid]
		if !ok {
			continue // structure removed after assignment
		}
		structures = append(structures, snapshotStructure(st))
	}
	sort.Slice(structures, func(i, j int) bool { return structures[i].ID < structures[j].ID })
	return directory.User{
		ID:         rec.id,
		Name:       rec.name,
		Role:       role,
		Structures: structures,
	}, nil
}

// --- roles ---

func (s *Store) RoleByID(ctx context.Context, id int64) (directory.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	role, ok := s.roles[id]
	if !ok {
		return directory.Role{}, directory.ErrRoleNotFound
	}
	return role, nil
}

func (s *Store) ListRoles(ctx context.Context) ([]directory.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]directory.Role, 0, len(s.roles))
	for _, role := range s.roles {
		out = append(out, role)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) CreateRole(ctx context.Context, name string) (directory.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roleSeq++
	role := directory.Role{ID: s.roleSeq, Name: name}
	s.roles[role.ID] = role
	return role, nil
}

func (s *Store) UpdateRole(ctx context.Context, id int64, name string) (directory.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	role, ok := s.roles[id]
	if !ok {
		return directory.Role{}, directory.ErrRoleNotFound
	}
	role.Name = name
	s.roles[id] = role
	return role, nil
}

func (s *Store) DeleteRole(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[id]; !ok {
		return directory.ErrRoleNotFound
	}
	for _, rec := range s.users {
		if rec.roleID == id {
			return fmt.Errorf("%w: role %d is still assigned", directory.ErrConflict, id)
		}
	}
	delete(s.roles, id)
	return nil
}

// --- structures ---

func (s *Store) StructureByID(ctx context.Context, id int64) (directory.Structure, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.structures[id]
	if !ok {
		return directory.Structure{}, directory.ErrStructureNotFound
	}
	return snapshotStructure(rec), nil
}

func (s *Store) StructuresByIDs(ctx context.Context, ids []int64) ([]directory.Structure, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]directory.Structure, 0, len(ids))
	for _, id := range ids {
		if rec, ok := s.structures[id]; ok {
			out = append(out, snapshotStructure(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListStructures(ctx context.Context) ([]directory.Structure, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]directory.Structure, 0, len(s.structures))
	for _, rec := range s.structures {
		out = append(out, snapshotStructure(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) CreateStructure(ctx context.Context, name string, parentID *int64) (directory.Structure, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if parentID != nil {
		if _, ok := s.structures[*parentID]; !ok {
			return directory.Structure{}, directory.ErrStructureNotFound
		}
	}
	s.structSeq++
	rec := &structureRecord{id: s.structSeq, name: name, parentID: copyID(parentID)}
	s.structures[rec.id] = rec

	s.closure[rec.id] = map[int64]struct{}{rec.id: {}}
	if parentID != nil {
		for ancestor, descendants := range s.closure {
			if _, ok := descendants[*parentID]; ok && ancestor != rec.id {
				descendants[rec.id] = struct{}{}
			}
		}
	}
	return snapshotStructure(rec), nil
}

func (s *Store) UpdateStructure(ctx context.Context, id int64, name string, parentID *int64) (directory.Structure, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.structures[id]
	if !ok {
		return directory.Structure{}, directory.ErrStructureNotFound
	}
	if !sameParent(rec.parentID, parentID) {
		if parentID != nil {
			if _, ok := s.structures[*parentID]; !ok {
				return directory.Structure{}, directory.ErrStructureNotFound
			}
			// Reparenting under the node's own subtree would form a cycle.
			if _, ok := s.closure[id][*parentID]; ok {
				return directory.Structure{}, fmt.Errorf("%w: new parent is a descendant", directory.ErrInvalidInput)
			}
		}
		s.reparent(id, parentID)
		rec.parentID = copyID(parentID)
	}
	rec.name = name
	return snapshotStructure(rec), nil
}

// reparent detaches the node's subtree from its former ancestors and links it
// under the new parent's ancestor chain.
func (s *Store) reparent(id int64, parentID *int64) {
	subtree := s.closure[id]
	for ancestor, descendants := range s.closure {
		if _, inSubtree := subtree[ancestor]; inSubtree {
			continue
		}
		for d := range subtree {
			delete(descendants, d)
		}
	}
	if parentID == nil {
		return
	}
	for ancestor, descendants := range s.closure {
		if _, inSubtree := subtree[ancestor]; inSubtree {
			continue
		}
		if _, ok := descendants[*parentID]; ok || ancestor == *parentID {
			for d := range subtree {
				descendants[d] = struct{}{}
			}
		}
	}
}

func (s *Store) DeleteStructure(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	subtree, ok := s.closure[id]
	if !ok {
		return directory.ErrStructureNotFound
	}
	for node := range subtree {
		delete(s.structures, node)
		delete(s.closure, node)
	}
	for _, descendants := range s.closure {
		for node := range subtree {
			delete(descendants, node)
		}
	}
	for _, rec := range s.users {
		kept := rec.structureIDs[:0]
		for _, sid := range rec.structureIDs {
			if _, gone := subtree[sid]; !gone {
				kept = append(kept, sid)
			}
		}
		rec.structureIDs = kept
	}
	return nil
}

func (s *Store) DescendantsOf(ctx context.Context, structureID int64) ([]directory.Structure, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	descendants, ok := s.closure[structureID]
	if !ok {
		return []directory.Structure{}, nil
	}
	out := make([]directory.Structure, 0, len(descendants))
	for id := range descendants {
		if id == structureID {
			continue
		}
		if rec, ok := s.structures[id]; ok {
			out = append(out, snapshotStructure(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func snapshotStructure(rec *structureRecord) directory.Structure {
	return directory.Structure{ID: rec.id, Name: rec.name, ParentID: copyID(rec.parentID)}
}

func copyID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func sameParent(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
