// Package access gates directory operations on the caller's role and position
// in the organization tree.
//
// Every mutating or scoped-read request passes three stages: principal
// resolution from the request credential, a capability check (only managers
// mutate), and a scope check against the visible set computed by
// internal/scope. Any stage short-circuits to a terminal failure; nothing is
// retried here.
package access

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"orgdir.org/internal/directory"
	"orgdir.org/internal/scope"
)

// UserDirectory is the slice of the directory store the engine consumes.
type UserDirectory interface {
	UserByID(ctx context.Context, id int64) (directory.User, error)
	ListUsersByStructureIDs(ctx context.Context, structureIDs []int64) ([]directory.User, error)
}

// Engine resolves principals and authorizes list, create and edit operations.
type Engine struct {
	dir   UserDirectory
	scope *scope.Resolver
}

func NewEngine(dir UserDirectory, resolver *scope.Resolver) (*Engine, error) {
	if dir == nil {
		return nil, errors.New("user directory is required")
	}
	if resolver == nil {
		return nil, errors.New("scope resolver is required")
	}
	return &Engine{dir: dir, scope: resolver}, nil
}

// Authenticate resolves the acting principal from an opaque request credential.
//
// A missing credential is the only condition reported as unauthenticated. A
// credential that is malformed or does not resolve to a user fails as an
// internal fault, indistinguishable from any other lookup failure, so probing
// the credential header cannot confirm which user ids exist.
func (e *Engine) Authenticate(ctx context.Context, credential string) (Principal, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return Principal{}, ErrUnauthenticated
	}
	id, err := strconv.ParseInt(credential, 10, 64)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: malformed credential", ErrInternal)
	}
	user, err := e.dir.UserByID(ctx, id)
	if err != nil {
		if errors.Is(err, directory.ErrUserNotFound) {
			return Principal{}, fmt.Errorf("%w: credential does not resolve", ErrInternal)
		}
		return Principal{}, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	return Principal{
		User:       user,
		Capability: capabilityForRole(user.Role.ID),
	}, nil
}

// AuthorizeCreate allows a create when the principal is a manager and every
// intended home structure lies strictly below one of the principal's home
// nodes. A single out-of-scope target rejects the whole operation.
func (e *Engine) AuthorizeCreate(ctx context.Context, principal Principal, structureIDs []int64) error {
	if !principal.IsManager() {
		return ErrForbidden
	}
	ok, err := e.scope.AllWithinScope(ctx, structureIDs, principal.HomeStructureIDs())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInternal, err)
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}

// AuthorizeEdit allows an edit or delete of the target user when the principal
// is a manager and at least one of the target's home structures falls within
// the principal's scope. The resolved target is returned so the write step
// does not look it up a second time. A missing target surfaces before any
// scope work.
func (e *Engine) AuthorizeEdit(ctx context.Context, principal Principal, targetUserID int64) (directory.User, error) {
	if !principal.IsManager() {
		return directory.User{}, ErrForbidden
	}
	target, err := e.dir.UserByID(ctx, targetUserID)
	if err != nil {
		if errors.Is(err, directory.ErrUserNotFound) {
			return directory.User{}, err
		}
		return directory.User{}, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	ok, err := e.scope.AnyWithinScope(ctx, target.HomeStructureIDs(), principal.HomeStructureIDs())
	if err != nil {
		return directory.User{}, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	if !ok {
		return directory.User{}, ErrForbidden
	}
	return target, nil
}

// VisibleUsers returns the users whose home structures intersect the
// principal's visible set. A principal anchored only at leaf nodes has an
// empty visible set and legitimately sees an empty list.
func (e *Engine) VisibleUsers(ctx context.Context, principal Principal) ([]directory.User, error) {
	visible, err := e.scope.VisibleStructureIDs(ctx, principal.HomeStructureIDs())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	if len(visible) == 0 {
		return []directory.User{}, nil
	}
	ids := make([]int64, 0, len(visible))
	for id := range visible {
		ids = append(ids, id)
	}
	users, err := e.dir.ListUsersByStructureIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	if users == nil {
		users = []directory.User{}
	}
	return users, nil
}
