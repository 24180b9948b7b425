package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"orgdir.org/internal/directory"
)

func (s *Store) StructureByID(ctx context.Context, id int64) (directory.Structure, error) {
	if s.db == nil {
		return directory.Structure{}, errors.New("database connection unavailable")
	}
	return scanStructureRow(s.db.QueryRowContext(ctx, `
		select id, name, parent_id from structures where id = $1
	`, id))
}

func (s *Store) StructuresByIDs(ctx context.Context, ids []int64) ([]directory.Structure, error) {
	if len(ids) == 0 {
		return []directory.Structure{}, nil
	}
	query := fmt.Sprintf(`
		select id, name, parent_id from structures
		where id in (%s)
		order by id
	`, placeholders(1, len(ids)))
	return s.queryStructures(ctx, query, idArgs(ids)...)
}

func (s *Store) ListStructures(ctx context.Context) ([]directory.Structure, error) {
	return s.queryStructures(ctx, `select id, name, parent_id from structures order by id`)
}

// DescendantsOf answers the strict-descendant query off the closure table:
// one indexed select, excluding the node itself via depth > 0. An id with no
// closure rows (unknown or leaf) produces an empty set.
func (s *Store) DescendantsOf(ctx context.Context, structureID int64) ([]directory.Structure, error) {
	return s.queryStructures(ctx, `
		select s.id, s.name, s.parent_id
		from structures s
		join structure_closure c on c.descendant_id = s.id
		where c.ancestor_id = $1 and c.depth > 0
		order by s.id
	`, structureID)
}

func (s *Store) queryStructures(ctx context.Context, query string, args ...any) ([]directory.Structure, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
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

func (s *Store) CreateStructure(ctx context.Context, name string, parentID *int64) (directory.Structure, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return directory.Structure{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var st directory.Structure
	var parent sql.NullInt64
	err = tx.QueryRowContext(ctx, `
		insert into structures (name, parent_id)
		values ($1, $2)
		returning id, name, parent_id
	`, name, nullableID(parentID)).Scan(&st.ID, &st.Name, &parent)
	if err != nil {
		return directory.Structure{}, mapForeignKey(err)
	}
	if parent.Valid {
		st.ParentID = &parent.Int64
	}

	// Self row plus one row per ancestor of the parent (parent included).
	if _, err := tx.ExecContext(ctx, `
		insert into structure_closure (ancestor_id, descendant_id, depth)
		values ($1, $1, 0)
	`, st.ID); err != nil {
		return directory.Structure{}, err
	}
	if parentID != nil {
		if _, err := tx.ExecContext(ctx, `
			insert into structure_closure (ancestor_id, descendant_id, depth)
			select ancestor_id, $1, depth + 1
			from structure_closure
			where descendant_id = $2
		`, st.ID, *parentID); err != nil {
			return directory.Structure{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return directory.Structure{}, err
	}
	return st, nil
}

func (s *Store) UpdateStructure(ctx context.Context, id int64, name string, parentID *int64) (directory.Structure, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return directory.Structure{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var currentParent sql.NullInt64
	err = tx.QueryRowContext(ctx, `
		select parent_id from structures where id = $1 for update
	`, id).Scan(&currentParent)
	if errors.Is(err, sql.ErrNoRows) {
		return directory.Structure{}, directory.ErrStructureNotFound
	}
	if err != nil {
		return directory.Structure{}, err
	}

	if !sameNullableParent(currentParent, parentID) {
		if err := reparentClosure(ctx, tx, id, parentID); err != nil {
			return directory.Structure{}, err
		}
	}

	var st directory.Structure
	var parent sql.NullInt64
	err = tx.QueryRowContext(ctx, `
		update structures set name = $2, parent_id = $3
		where id = $1
		returning id, name, parent_id
	`, id, name, nullableID(parentID)).Scan(&st.ID, &st.Name, &parent)
	if err != nil {
		return directory.Structure{}, mapForeignKey(err)
	}
	if parent.Valid {
		st.ParentID = &parent.Int64
	}
	if err := tx.Commit(); err != nil {
		return directory.Structure{}, err
	}
	return st, nil
}

// reparentClosure rewires the closure table for a subtree move: the subtree's
// links to its former ancestors are removed, then the subtree is cross-joined
// onto the new parent's ancestor chain.
func reparentClosure(ctx context.Context, tx *sql.Tx, id int64, parentID *int64) error {
	if parentID != nil {
		var cycle bool
		err := tx.QueryRowContext(ctx, `
			select exists (
				select 1 from structure_closure
				where ancestor_id = $1 and descendant_id = $2
			)
		`, id, *parentID).Scan(&cycle)
		if err != nil {
			return err
		}
		if cycle {
			return fmt.Errorf("%w: new parent is a descendant", directory.ErrInvalidInput)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		delete from structure_closure
		where descendant_id in (
			select descendant_id from structure_closure where ancestor_id = $1
		)
		and ancestor_id not in (
			select descendant_id from structure_closure where ancestor_id = $1
		)
	`, id); err != nil {
		return err
	}
	if parentID == nil {
		return nil
	}
	if _, err := tx.ExecContext(ctx, `
		insert into structure_closure (ancestor_id, descendant_id, depth)
		select supertree.ancestor_id, subtree.descendant_id,
		       supertree.depth + subtree.depth + 1
		from structure_closure supertree
		cross join structure_closure subtree
		where supertree.descendant_id = $2
		  and subtree.ancestor_id = $1
	`, id, *parentID); err != nil {
		return err
	}
	return nil
}

// DeleteStructure removes the node and its whole subtree; cascades clean the
// closure rows and user memberships.
func (s *Store) DeleteStructure(ctx context.Context, id int64) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `delete from structures where id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return directory.ErrStructureNotFound
	}
	return nil
}

func scanStructureRow(row *sql.Row) (directory.Structure, error) {
	var (
		st     directory.Structure
		parent sql.NullInt64
	)
	err := row.Scan(&st.ID, &st.Name, &parent)
	if errors.Is(err, sql.ErrNoRows) {
		return directory.Structure{}, directory.ErrStructureNotFound
	}
	if err != nil {
		return directory.Structure{}, err
	}
	if parent.Valid {
		st.ParentID = &parent.Int64
	}
	return st, nil
}

func nullableID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

func sameNullableParent(current sql.NullInt64, next *int64) bool {
	if !current.Valid {
		return next == nil
	}
	return next != nil && *next == current.Int64
}
