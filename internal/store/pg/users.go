package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"orgdir.org/internal/directory"
)

func (s *Store) UserByID(ctx context.Context, id int64) (directory.User, error) {
	if s.db == nil {
		return directory.User{}, errors.New("database connection unavailable")
	}
	var user directory.User
	err := s.db.QueryRowContext(ctx, `
		select u.id, u.name, r.id, r.name
		from users u
		join roles r on r.id = u.role_id
		where u.id = $1
	`, id).Scan(&user.ID, &user.Name, &user.Role.ID, &user.Role.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return directory.User{}, directory.ErrUserNotFound
	}
	if err != nil {
		return directory.User{}, err
	}
	structures, err := s.structuresOfUser(ctx, id)
	if err != nil {
		return directory.User{}, err
	}
	user.Structures = structures
	return user, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]directory.User, error) {
	return s.queryUsers(ctx, `
		select u.id, u.name, r.id, r.name
		from users u
		join roles r on r.id = u.role_id
		order by u.id
	`)
}

func (s *Store) ListUsersByStructureIDs(ctx context.Context, structureIDs []int64) ([]directory.User, error) {
	if len(structureIDs) == 0 {
		return []directory.User{}, nil
	}
	query := fmt.Sprintf(`
		select distinct u.id, u.name, r.id, r.name
		from users u
		join roles r on r.id = u.role_id
		join user_structures us on us.user_id = u.id
		where us.structure_id in (%s)
		order by u.id
	`, placeholders(1, len(structureIDs)))
	return s.queryUsers(ctx, query, idArgs(structureIDs)...)
}

func (s *Store) queryUsers(ctx context.Context, query string, args ...any) ([]directory.User, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]directory.User, 0)
	index := make(map[int64]int)
	for rows.Next() {
		var u directory.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Role.ID, &u.Role.Name); err != nil {
			return nil, err
		}
		u.Structures = []directory.Structure{}
		index[u.ID] = len(users)
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return users, nil
	}

	ids := make([]int64, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	memberships := fmt.Sprintf(`
		select us.user_id, s.id, s.name, s.parent_id
		from user_structures us
		join structures s on s.id = us.structure_id
		where us.user_id in (%s)
		order by us.user_id, s.id
	`, placeholders(1, len(ids)))
	mrows, err := s.db.QueryContext(ctx, memberships, idArgs(ids)...)
	if err != nil {
		return nil, err
	}
	defer mrows.Close()
	for mrows.Next() {
		var (
			userID int64
			st     directory.Structure
			parent sql.NullInt64
		)
		if err := mrows.Scan(&userID, &st.ID, &st.Name, &parent); err != nil {
			return nil, err
		}
		if parent.Valid {
			st.ParentID = &parent.Int64
		}
		if i, ok := index[userID]; ok {
			users[i].Structures = append(users[i].Structures, st)
		}
	}
	if err := mrows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) structuresOfUser(ctx context.Context, userID int64) ([]directory.Structure, error) {
	rows, err := s.db.QueryContext(ctx, `
		select s.id, s.name, s.parent_id
		from structures s
		join user_structures us on us.structure_id = s.id
		where us.user_id = $1
		order by s.id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	structures := make([]directory.Structure, 0)
	for rows.Next() {
		var (
			st     directory.Structure
			parent sql.NullInt64
		)
		if err := rows.Scan(&st.ID, &st.Name, &parent); err != nil {
			return nil, err
		}
		if parent.Valid {
			st.ParentID = &parent.Int64
		}
		structures = append(structures, st)
	}
	return structures, rows.Err()
}

func (s *Store) CreateUser(ctx context.Context, name string, roleID int64, structureIDs []int64) (directory.User, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return directory.User{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var id int64
	err = tx.QueryRowContext(ctx, `
		insert into users (name, role_id)
		values ($1, $2)
		returning id
	`, name, roleID).Scan(&id)
	if err != nil {
		return directory.User{}, mapForeignKey(err)
	}
	if err := insertMemberships(ctx, tx, id, structureIDs); err != nil {
		return directory.User{}, err
	}
	if err := tx.Commit(); err != nil {
		return directory.User{}, err
	}
	return s.UserByID(ctx, id)
}

func (s *Store) UpdateUser(ctx context.Context, id int64, name string, roleID int64, structureIDs []int64) (directory.User, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return directory.User{}, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		update users set name = $2, role_id = $3 where id = $1
	`, id, name, roleID)
	if err != nil {
		return directory.User{}, mapForeignKey(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return directory.User{}, err
	}
	if affected == 0 {
		return directory.User{}, directory.ErrUserNotFound
	}
	if _, err := tx.ExecContext(ctx, `delete from user_structures where user_id = $1`, id); err != nil {
		return directory.User{}, err
	}
	if err := insertMemberships(ctx, tx, id, structureIDs); err != nil {
		return directory.User{}, err
	}
	if err := tx.Commit(); err != nil {
		return directory.User{}, err
	}
	return s.UserByID(ctx, id)
}

func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `delete from users where id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return directory.ErrUserNotFound
	}
	return nil
}

func insertMemberships(ctx context.Context, tx *sql.Tx, userID int64, structureIDs []int64) error {
	ids := append([]int64(nil), structureIDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, sid := range ids {
		if _, err := tx.ExecContext(ctx, `
			insert into user_structures (user_id, structure_id)
			values ($1, $2)
		`, userID, sid); err != nil {
			return mapForeignKey(err)
		}
	}
	return nil
}
