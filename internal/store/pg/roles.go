package pg

import (
	"context"
	"database/sql"
	"errors"

	"orgdir.org/internal/directory"
)

func (s *Store) RoleByID(ctx context.Context, id int64) (directory.Role, error) {
	if s.db == nil {
		return directory.Role{}, errors.New("database connection unavailable")
	}
	var role directory.Role
	err := s.db.QueryRowContext(ctx, `
		select id, name from roles where id = $1
	`, id).Scan(&role.ID, &role.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return directory.Role{}, directory.ErrRoleNotFound
	}
	if err != nil {
		return directory.Role{}, err
	}
	return role, nil
}

func (s *Store) ListRoles(ctx context.Context) ([]directory.Role, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `select id, name from roles order by id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	roles := make([]directory.Role, 0)
	for rows.Next() {
		var role directory.Role
		if err := rows.Scan(&role.ID, &role.Name); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func (s *Store) CreateRole(ctx context.Context, name string) (directory.Role, error) {
	if s.db == nil {
		return directory.Role{}, errors.New("database connection unavailable")
	}
	var role directory.Role
	err := s.db.QueryRowContext(ctx, `
		insert into roles (name) values ($1) returning id, name
	`, name).Scan(&role.ID, &role.Name)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return directory.Role{}, directory.ErrConflict
		}
		return directory.Role{}, err
	}
	return role, nil
}

func (s *Store) UpdateRole(ctx context.Context, id int64, name string) (directory.Role, error) {
	if s.db == nil {
		return directory.Role{}, errors.New("database connection unavailable")
	}
	var role directory.Role
	err := s.db.QueryRowContext(ctx, `
		update roles set name = $2 where id = $1 returning id, name
	`, id, name).Scan(&role.ID, &role.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return directory.Role{}, directory.ErrRoleNotFound
	}
	if err != nil {
		return directory.Role{}, err
	}
	return role, nil
}

func (s *Store) DeleteRole(ctx context.Context, id int64) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `delete from roles where id = $1`, id)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return directory.ErrConflict
		}
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return directory.ErrRoleNotFound
	}
	return nil
}
