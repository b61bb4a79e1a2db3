package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"regexp"
	"strings"

	"github.com/GregMSThompson/gridboard/internal/errs"
	"github.com/GregMSThompson/gridboard/internal/models"
	"github.com/GregMSThompson/gridboard/pkg/logger"

	// pure Go sqlite driver registered as "sqlite"
	"modernc.org/sqlite"
)

// MaxRows caps the records a single query may return.
const MaxRows = 10000

var paramPattern = regexp.MustCompile(`[:@$]([A-Za-z_][A-Za-z0-9_]*)`)

type queryStore struct {
	db *sql.DB
	// sqlite ignores read-only transactions, so reads also switch the
	// connection to query_only.
	sqlite bool
}

func NewQueryStore(db *sql.DB) *queryStore {
	_, isSQLite := db.Driver().(*sqlite.Driver)
	return &queryStore{db: db, sqlite: isSQLite}
}

// Open opens a database/sql handle and verifies it answers.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, errs.NewDatabaseError("open", "failed to open database", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errs.NewDatabaseError("open", "failed to reach database", err)
	}
	return db, nil
}

// Query runs a read statement inside a read-only transaction, so a
// statement that writes fails at the database whatever its text looks like.
// Variables referenced in the text as :name, @name or $name are bound with
// sql.Named; unreferenced ones are ignored.
func (s *queryStore) Query(ctx context.Context, query string, vars map[string]any) ([]models.Record, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errs.NewValidationError("query is required")
	}
	args := namedArgs(query, vars)
	logger.FromContext(ctx).Debug("executing sql", "args", len(args))

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, errs.NewDatabaseError("query", "failed to acquire connection", err)
	}
	defer conn.Close()

	if s.sqlite {
		if _, err := conn.ExecContext(ctx, "PRAGMA query_only = ON"); err != nil {
			return nil, errs.NewDatabaseError("query", "failed to enter read-only mode", err)
		}
		defer resetQueryOnly(ctx, conn)
	}

	tx, err := conn.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, errs.NewDatabaseError("query", "failed to begin read-only transaction", err)
	}
	// Reads never commit.
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.NewDatabaseError("query", "failed to execute query", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// resetQueryOnly returns a pooled sqlite connection to read-write. A
// connection that cannot be reset is discarded from the pool.
func resetQueryOnly(ctx context.Context, conn *sql.Conn) {
	if _, err := conn.ExecContext(context.WithoutCancel(ctx), "PRAGMA query_only = OFF"); err != nil {
		logger.FromContext(ctx).Warn("discarding connection stuck in read-only mode", "error", err)
		_ = conn.Raw(func(any) error { return driver.ErrBadConn })
	}
}

func scanRecords(rows *sql.Rows) ([]models.Record, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, errs.NewDatabaseError("query", "failed to read columns", err)
	}

	out := make([]models.Record, 0)
	for rows.Next() {
		if len(out) >= MaxRows {
			return nil, errs.NewValidationError("query returned more than the row limit")
		}
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errs.NewDatabaseError("query", "failed to scan row", err)
		}
		rec := make(models.Record, len(cols))
		for i, c := range cols {
			rec[c] = normalize(values[i])
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return nil, errs.NewDatabaseError("query", "failed to read rows", err)
	}
	return out, nil
}

// Exec runs a statement that returns no rows, such as seeding fixtures.
func (s *queryStore) Exec(ctx context.Context, stmt string, vars map[string]any) (int64, error) {
	res, err := s.db.ExecContext(ctx, stmt, namedArgs(stmt, vars)...)
	if err != nil {
		return 0, errs.NewDatabaseError("exec", "failed to execute statement", err)
	}
	// Drivers that cannot count report zero.
	n, _ := res.RowsAffected()
	return n, nil
}

func (s *queryStore) Close() error {
	return s.db.Close()
}

func namedArgs(query string, vars map[string]any) []any {
	if len(vars) == 0 {
		return nil
	}
	seen := make(map[string]struct{})
	var args []any
	for _, m := range paramPattern.FindAllStringSubmatch(query, -1) {
		name := m[1]
		if _, dup := seen[name]; dup {
			continue
		}
		v, ok := vars[name]
		if !ok {
			continue
		}
		seen[name] = struct{}{}
		args = append(args, sql.Named(name, v))
	}
	return args
}

// normalize turns driver byte slices into strings so records encode as
// JSON text.
func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
