package pg

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"orgdir.org/internal/directory"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewWithDB(db), mock
}

func TestUserByID(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("select u.id, u.name, r.id, r.name.*from users u").
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "rid", "rname"}).
			AddRow(int64(2), "Bob", int64(1), "Manager"))
	mock.ExpectQuery("select s.id, s.name, s.parent_id.*from structures s").
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "parent_id"}).
			AddRow(int64(2), "Cape Town", int64(1)))

	user, err := store.UserByID(context.Background(), 2)
	if err != nil {
		t.Fatalf("UserByID: %v", err)
	}
	if user.Name != "Bob" || user.Role.Name != "Manager" {
		t.Fatalf("unexpected user %+v", user)
	}
	if len(user.Structures) != 1 || user.Structures[0].ParentID == nil || *user.Structures[0].ParentID != 1 {
		t.Fatalf("unexpected structures %+v", user.Structures)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserByIDNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("select u.id, u.name, r.id, r.name.*from users u").
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "rid", "rname"}))

	_, err := store.UserByID(context.Background(), 99)
	if !errors.Is(err, directory.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestDescendantsOf(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("join structure_closure c on c.descendant_id = s.id").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "parent_id"}).
			AddRow(int64(2), "Cape Town", int64(1)).
			AddRow(int64(3), "Tamboerskloof", int64(2)))

	descendants, err := store.DescendantsOf(context.Background(), 1)
	if err != nil {
		t.Fatalf("DescendantsOf: %v", err)
	}
	if len(descendants) != 2 || descendants[0].ID != 2 || descendants[1].ID != 3 {
		t.Fatalf("unexpected descendants %+v", descendants)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDescendantsOfEmpty(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("join structure_closure c on c.descendant_id = s.id").
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "parent_id"}))

	descendants, err := store.DescendantsOf(context.Background(), 42)
	if err != nil {
		t.Fatalf("DescendantsOf: %v", err)
	}
	if descendants == nil || len(descendants) != 0 {
		t.Fatalf("expected empty non-nil slice, got %v", descendants)
	}
}

func TestCreateUserTransaction(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("insert into users").
		WithArgs("Dana", int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))
	// Memberships are written in ascending structure order.
	mock.ExpectExec("insert into user_structures").
		WithArgs(int64(7), int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("insert into user_structures").
		WithArgs(int64(7), int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery("select u.id, u.name, r.id, r.name.*from users u").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "rid", "rname"}).
			AddRow(int64(7), "Dana", int64(1), "Manager"))
	mock.ExpectQuery("select s.id, s.name, s.parent_id.*from structures s").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "parent_id"}).
			AddRow(int64(3), "Tamboerskloof", int64(2)).
			AddRow(int64(5), "Johannesburg", int64(1)))

	user, err := store.CreateUser(context.Background(), "Dana", 1, []int64{5, 3})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if user.ID != 7 || len(user.Structures) != 2 {
		t.Fatalf("unexpected user %+v", user)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateUserUnknownRole(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("insert into users").
		WithArgs("Dana", int64(9)).
		WillReturnError(&pgconn.PgError{
			Code:           pgErrForeignKeyViolation,
			ConstraintName: "users_role_id_fkey",
		})
	mock.ExpectRollback()

	_, err := store.CreateUser(context.Background(), "Dana", 9, []int64{1})
	if !errors.Is(err, directory.ErrRoleNotFound) {
		t.Fatalf("expected ErrRoleNotFound, got %v", err)
	}
}

func TestDeleteUserNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("delete from users where id").
		WithArgs(int64(12)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.DeleteUser(context.Background(), 12)
	if !errors.Is(err, directory.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestCreateRoleDuplicate(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("insert into roles").
		WithArgs("Manager").
		WillReturnError(&pgconn.PgError{
			Code:           pgErrUniqueViolation,
			ConstraintName: "roles_name_unique",
		})

	_, err := store.CreateRole(context.Background(), "Manager")
	if !errors.Is(err, directory.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestCreateStructureWritesClosure(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("insert into structures").
		WithArgs("Sea Point", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "parent_id"}).
			AddRow(int64(4), "Sea Point", int64(2)))
	mock.ExpectExec(`insert into structure_closure \(ancestor_id, descendant_id, depth\)\s+values`).
		WithArgs(int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`insert into structure_closure \(ancestor_id, descendant_id, depth\)\s+select`).
		WithArgs(int64(4), int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	parent := int64(2)
	st, err := store.CreateStructure(context.Background(), "Sea Point", &parent)
	if err != nil {
		t.Fatalf("CreateStructure: %v", err)
	}
	if st.ID != 4 || st.ParentID == nil || *st.ParentID != 2 {
		t.Fatalf("unexpected structure %+v", st)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdateStructureRejectsCycle(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("select parent_id from structures where id").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"parent_id"}).AddRow(nil))
	mock.ExpectQuery("select exists").
		WithArgs(int64(1), int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	parent := int64(3)
	_, err := store.UpdateStructure(context.Background(), 1, "Root", &parent)
	if !errors.Is(err, directory.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListUsersByStructureIDsEmptyInput(t *testing.T) {
	store, _ := newMockStore(t)

	users, err := store.ListUsersByStructureIDs(context.Background(), nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if users == nil || len(users) != 0 {
		t.Fatalf("expected empty non-nil slice, got %v", users)
	}
}
