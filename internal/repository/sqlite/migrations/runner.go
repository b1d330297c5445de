package migrations

import (
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"

	"github.com/msomdec/postwriter/internal/sqlite3"
)

// Run applies all unapplied migrations from the embedded FS on c, each in
// its own IMMEDIATE transaction. It tracks applied migrations in a
// schema_migrations table.
func Run(c *sqlite3.Conn) error {
	if err := ensureMigrationsTable(c); err != nil {
		return fmt.Errorf("ensure migrations table: %w", err)
	}

	applied, err := getAppliedMigrations(c)
	if err != nil {
		return fmt.Errorf("get applied migrations: %w", err)
	}

	files, err := listMigrationFiles()
	if err != nil {
		return fmt.Errorf("list migration files: %w", err)
	}

	for _, filename := range files {
		if applied[filename] {
			slog.Debug("migration already applied", "file", filename)
			continue
		}

		if err := applyMigration(c, filename); err != nil {
			return fmt.Errorf("apply migration %s: %w", filename, err)
		}
		slog.Info("migration applied", "file", filename)
	}

	return nil
}

func ensureMigrationsTable(c *sqlite3.Conn) error {
	return c.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename   TEXT    PRIMARY KEY,
			applied_at INTEGER NOT NULL DEFAULT (CAST(unixepoch('subsec') * 1000 AS INTEGER))
		) STRICT
	`)
}

func getAppliedMigrations(c *sqlite3.Conn) (map[string]bool, error) {
	stmt, err := c.Prepare("SELECT filename FROM schema_migrations ORDER BY filename")
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	names, err := sqlite3.Query(stmt, nil, func(r *sqlite3.Row) string { return r.Text(0) })
	if err != nil {
		return nil, err
	}

	applied := make(map[string]bool, len(names))
	for _, name := range names {
		applied[name] = true
	}
	return applied, nil
}

func listMigrationFiles() ([]string, error) {
	entries, err := fs.ReadDir(FS, ".")
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

func applyMigration(c *sqlite3.Conn, filename string) error {
	content, err := fs.ReadFile(FS, filename)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	return c.Transact(sqlite3.Immediate, func(c *sqlite3.Conn) error {
		if err := c.Exec(string(content)); err != nil {
			return fmt.Errorf("execute sql: %w", err)
		}
		record, err := c.PrepareCached("INSERT INTO schema_migrations (filename) VALUES (?)")
		if err != nil {
			return fmt.Errorf("prepare record: %w", err)
		}
		if err := record.Exec(filename); err != nil {
			return fmt.Errorf("record migration: %w", err)
		}
		return nil
	})
}
