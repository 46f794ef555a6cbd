package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// migration is one embedded script. Version and Name come from its file
// name, "<version>_<name>.sql".
type migration struct {
	Version int
	Name    string
	SQL     string
}

// AppliedMigration is a row of schema_version.
type AppliedMigration struct {
	Version   int
	Name      string
	AppliedAt time.Time
}

func loadMigrations(fsys fs.FS) ([]migration, error) {
	files, err := fs.Glob(fsys, "migrations/*.sql")
	if err != nil {
		return nil, err
	}
	out := make([]migration, 0, len(files))
	for _, f := range files {
		base := strings.TrimSuffix(path.Base(f), ".sql")
		num, name, ok := strings.Cut(base, "_")
		if !ok || name == "" {
			return nil, fmt.Errorf("migration %s: want <version>_<name>.sql", f)
		}
		version, err := strconv.Atoi(num)
		if err != nil || version <= 0 {
			return nil, fmt.Errorf("migration %s: bad version %q", f, num)
		}
		body, err := fs.ReadFile(fsys, f)
		if err != nil {
			return nil, err
		}
		out = append(out, migration{Version: version, Name: name, SQL: string(body)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	for i := 1; i < len(out); i++ {
		if out[i].Version == out[i-1].Version {
			return nil, fmt.Errorf("migration version %d used twice", out[i].Version)
		}
	}
	return out, nil
}

// applyMigrations brings db up to the embedded scripts. A version already
// recorded under a different name means the database belongs to another
// build and is refused.
func applyMigrations(ctx context.Context, db *sql.DB, scripts []migration) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (
		version    INTEGER PRIMARY KEY,
		name       TEXT NOT NULL,
		applied_at INTEGER NOT NULL
	)`); err != nil {
		return storeError("create schema_version", err)
	}

	applied, err := appliedMigrations(ctx, db)
	if err != nil {
		return err
	}
	byVersion := make(map[int]string, len(applied))
	for _, a := range applied {
		byVersion[a.Version] = a.Name
	}

	for _, m := range scripts {
		if name, ok := byVersion[m.Version]; ok {
			if name != m.Name {
				return storeError("migrate", fmt.Errorf("version %d is %q in the database, %q here", m.Version, name, m.Name))
			}
			continue
		}
		if err := applyOne(ctx, db, m); err != nil {
			return err
		}
	}
	return nil
}

func applyOne(ctx context.Context, db *sql.DB, m migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return storeError("begin migration", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range statements(m.SQL) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return storeError(fmt.Sprintf("migration %d_%s", m.Version, m.Name), err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_version (version, name, applied_at) VALUES (?, ?, ?)`,
		m.Version, m.Name, time.Now().UTC().UnixMicro(),
	); err != nil {
		return storeError("record migration", err)
	}
	if err := tx.Commit(); err != nil {
		return storeError("commit migration", err)
	}
	return nil
}

func appliedMigrations(ctx context.Context, db *sql.DB) ([]AppliedMigration, error) {
	rows, err := db.QueryContext(ctx, `SELECT version, name, applied_at FROM schema_version ORDER BY version`)
	if err != nil {
		return nil, storeError("read schema_version", err)
	}
	defer rows.Close()

	var out []AppliedMigration
	for rows.Next() {
		var a AppliedMigration
		var at int64
		if err := rows.Scan(&a.Version, &a.Name, &at); err != nil {
			return nil, storeError("scan schema_version", err)
		}
		a.AppliedAt = time.UnixMicro(at).UTC()
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("read schema_version", err)
	}
	return out, nil
}

// statements drops "--" comment lines and splits what is left on ";".
func statements(script string) []string {
	var code strings.Builder
	for _, line := range strings.Split(script, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		code.WriteString(line)
		code.WriteByte('\n')
	}
	var out []string
	for _, s := range strings.Split(code.String(), ";") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
