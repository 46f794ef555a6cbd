package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/note89/sitehooks/pkg/schema"
)

// LibSQLStore implements Store using libSQL (embedded SQLite fork).
type LibSQLStore struct {
	db *sql.DB
}

// NewLibSQLStore opens a libSQL database at the given path.
// The path should be a file URI, e.g. "file:/path/to/sitehooks.db".
func NewLibSQLStore(dbPath string) (*LibSQLStore, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Some PRAGMAs return rows so we use QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &LibSQLStore{db: db}, nil
}

// Close closes the database.
func (s *LibSQLStore) Close() error { return s.db.Close() }

// Ping checks that the database answers.
func (s *LibSQLStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return storeError("ping", err)
	}
	return nil
}

// Migrate applies the embedded migrations not yet recorded in schema_version.
func (s *LibSQLStore) Migrate(ctx context.Context) error {
	scripts, err := loadMigrations(migrationFS)
	if err != nil {
		return storeError("load migrations", err)
	}
	return applyMigrations(ctx, s.db, scripts)
}

// Migrations lists the applied migrations in version order.
func (s *LibSQLStore) Migrations(ctx context.Context) ([]AppliedMigration, error) {
	return appliedMigrations(ctx, s.db)
}

func (s *LibSQLStore) AppendDispatch(ctx context.Context, d *DispatchRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dispatches (id, api, mode, invoked, results, failed_plugin, error, started_at, duration_us)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.API, d.Mode, d.Invoked, d.Results, nullStr(d.FailedPlugin), nullStr(d.Error),
		timeOrNow(d.StartedAt).UnixMicro(), d.Duration.Microseconds(),
	)
	if err != nil {
		return storeError("append dispatch", err)
	}
	return nil
}

func (s *LibSQLStore) AppendInvocation(ctx context.Context, inv *InvocationRecord) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO invocations (dispatch_id, plugin, absent, error, duration_us) VALUES (?, ?, ?, ?, ?)`,
		inv.DispatchID, inv.Plugin, boolInt(inv.Absent), nullStr(inv.Error), inv.Duration.Microseconds(),
	)
	if err != nil {
		return storeError("append invocation", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		inv.ID = id
	}
	return nil
}

func (s *LibSQLStore) GetDispatch(ctx context.Context, id string) (*DispatchRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, api, mode, invoked, results, failed_plugin, error, started_at, duration_us
		 FROM dispatches WHERE id = ?`, id)
	if err != nil {
		return nil, storeError("get dispatch", err)
	}
	out, err := scanDispatches(rows)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "dispatch %q not found", id)
	}
	return out[0], nil
}

func (s *LibSQLStore) ListDispatches(ctx context.Context, filter DispatchFilter) ([]*DispatchRecord, error) {
	var (
		where []string
		args  []any
	)
	if filter.API != "" {
		where = append(where, "api = ?")
		args = append(args, filter.API)
	}
	if filter.FailedOnly {
		where = append(where, "error IS NOT NULL")
	}
	if !filter.Since.IsZero() {
		where = append(where, "started_at >= ?")
		args = append(args, filter.Since.UnixMicro())
	}

	q := `SELECT id, api, mode, invoked, results, failed_plugin, error, started_at, duration_us FROM dispatches`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY started_at DESC, id"
	if filter.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, storeError("list dispatches", err)
	}
	return scanDispatches(rows)
}

func (s *LibSQLStore) ListInvocations(ctx context.Context, dispatchID string) ([]*InvocationRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, dispatch_id, plugin, absent, error, duration_us FROM invocations
		 WHERE dispatch_id = ? ORDER BY id`, dispatchID)
	if err != nil {
		return nil, storeError("list invocations", err)
	}
	defer rows.Close()

	var out []*InvocationRecord
	for rows.Next() {
		inv := &InvocationRecord{}
		var (
			absent int
			errMsg sql.NullString
			dur    int64
		)
		if err := rows.Scan(&inv.ID, &inv.DispatchID, &inv.Plugin, &absent, &errMsg, &dur); err != nil {
			return nil, storeError("scan invocation", err)
		}
		inv.Absent = absent != 0
		inv.Error = errMsg.String
		inv.Duration = time.Duration(dur) * time.Microsecond
		out = append(out, inv)
	}
	return out, rows.Err()
}

func scanDispatches(rows *sql.Rows) ([]*DispatchRecord, error) {
	defer rows.Close()

	var out []*DispatchRecord
	for rows.Next() {
		d := &DispatchRecord{}
		var (
			failed, errMsg sql.NullString
			started, dur   int64
		)
		if err := rows.Scan(&d.ID, &d.API, &d.Mode, &d.Invoked, &d.Results, &failed, &errMsg, &started, &dur); err != nil {
			return nil, storeError("scan dispatch", err)
		}
		d.FailedPlugin = failed.String
		d.Error = errMsg.String
		d.StartedAt = time.UnixMicro(started).UTC()
		d.Duration = time.Duration(dur) * time.Microsecond
		out = append(out, d)
	}
	return out, rows.Err()
}

func storeError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return schema.NewErrorf(schema.ErrCodeStore, "%s: %s", op, err.Error()).WithCause(err)
}

func timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ Store = (*LibSQLStore)(nil)
