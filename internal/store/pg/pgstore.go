// Package pg implements the directory store on postgres.
//
// The organization tree is persisted twice: parent pointers on the structures
// table and a maintained (ancestor, descendant, depth) closure table. Every
// structural write updates both inside one transaction, so descendant queries
// are a single indexed select with no recursion.
package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"orgdir.org/internal/directory"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

// Store is a postgres-backed directory.Store.
type Store struct {
	db *sql.DB
}

var _ directory.Store = (*Store)(nil)

// Open connects to postgres with pool defaults tuned for request-parallel
// traffic.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing connection. Used by tests.
func NewWithDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) begin(ctx context.Context) (*sql.Tx, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	return s.db.BeginTx(ctx, nil)
}

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

// mapForeignKey translates an FK violation into the not-found error of the
// referenced entity, keyed off the constraint name.
func mapForeignKey(err error) error {
	pgErr, ok := maybePgError(err)
	if !ok || pgErr.Code != pgErrForeignKeyViolation {
		return err
	}
	switch {
	case strings.Contains(pgErr.ConstraintName, "role"):
		return directory.ErrRoleNotFound
	case strings.Contains(pgErr.ConstraintName, "structure"):
		return directory.ErrStructureNotFound
	case strings.Contains(pgErr.ConstraintName, "user"):
		return directory.ErrUserNotFound
	default:
		return err
	}
}

// placeholders renders "$start, $start+1, ..." for n values.
func placeholders(start, n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "$%d", start+i)
	}
	return b.String()
}

func idArgs(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
