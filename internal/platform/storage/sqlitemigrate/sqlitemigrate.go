// Package sqlitemigrate applies embedded SQL migration scripts in dependency
// order, at most once per database.
//
// Scripts declare prerequisites with header comments of the form
// "-- depends: <id>" where an id is another script's file name without the
// .sql suffix. Scripts whose prerequisites are satisfied run in lexicographic
// order relative to their peers.
package sqlitemigrate

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const migrationTable = "schema_migrations"

const dependsPrefix = "-- depends:"

// Migration is one parsed migration script.
type Migration struct {
	// ID is the file name without the .sql suffix.
	ID string
	// Name is the bookkeeping key recorded once the script is applied.
	Name string
	// Depends lists prerequisite script IDs.
	Depends []string
	// SQL is the full script body.
	SQL string
}

// ApplyMigrations executes embedded migrations from migrationRoot at most
// once per database. It returns the bookkeeping names of the scripts applied
// during this call.
func ApplyMigrations(sqlDB *sql.DB, migrationFS fs.FS, migrationRoot string) ([]string, error) {
	if sqlDB == nil {
		return nil, fmt.Errorf("sql db is required")
	}

	migrations, err := LoadMigrations(migrationFS, migrationRoot)
	if err != nil {
		return nil, err
	}

	ordered, err := Order(migrations)
	if err != nil {
		return nil, err
	}

	createSQL := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
    name TEXT PRIMARY KEY,
    applied_at INTEGER NOT NULL
);
`, migrationTable)
	if _, err := sqlDB.Exec(createSQL); err != nil {
		return nil, fmt.Errorf("ensure migration table: %w", err)
	}

	var applied []string
	for _, migration := range ordered {
		done, err := isApplied(sqlDB, migration.Name)
		if err != nil {
			return applied, fmt.Errorf("check migration %s: %w", migration.ID, err)
		}
		if done {
			continue
		}
		if strings.TrimSpace(migration.SQL) == "" {
			continue
		}

		tx, err := sqlDB.BeginTx(context.Background(), nil)
		if err != nil {
			return applied, fmt.Errorf("begin migration transaction %s: %w", migration.ID, err)
		}

		if _, err := tx.Exec(migration.SQL); err != nil {
			if !IsAlreadyExistsError(err) {
				_ = tx.Rollback()
				return applied, fmt.Errorf("exec migration %s: %w", migration.ID, err)
			}
		}

		if _, err := tx.Exec(
			fmt.Sprintf("INSERT OR IGNORE INTO %s (name, applied_at) VALUES (?, ?)", migrationTable),
			migration.Name,
			time.Now().UTC().UnixMilli(),
		); err != nil {
			_ = tx.Rollback()
			return applied, fmt.Errorf("record migration %s: %w", migration.ID, err)
		}

		if err := tx.Commit(); err != nil {
			return applied, fmt.Errorf("commit migration %s: %w", migration.ID, err)
		}
		applied = append(applied, migration.Name)
	}

	return applied, nil
}

// LoadMigrations reads and parses every .sql file under migrationRoot.
func LoadMigrations(migrationFS fs.FS, migrationRoot string) ([]Migration, error) {
	root := strings.TrimSpace(migrationRoot)
	if root == "" {
		root = "."
	}
	nameRoot := root
	if nameRoot == "." {
		nameRoot = ""
	}

	entries, err := fs.ReadDir(migrationFS, root)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	var migrations []Migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		content, err := fs.ReadFile(migrationFS, filepath.Join(root, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		name := entry.Name()
		if nameRoot != "" {
			name = filepath.ToSlash(filepath.Join(nameRoot, entry.Name()))
		}
		migrations = append(migrations, Migration{
			ID:      strings.TrimSuffix(entry.Name(), ".sql"),
			Name:    name,
			Depends: ParseDepends(string(content)),
			SQL:     string(content),
		})
	}
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].ID < migrations[j].ID })
	return migrations, nil
}

// ParseDepends extracts prerequisite IDs from "-- depends:" header comments.
// Header comments end at the first statement line.
func ParseDepends(content string) []string {
	var depends []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "--") {
			break
		}
		if !strings.HasPrefix(line, dependsPrefix) {
			continue
		}
		rest := strings.TrimSpace(strings.TrimPrefix(line, dependsPrefix))
		for _, field := range strings.FieldsFunc(rest, func(r rune) bool {
			return r == ' ' || r == '\t' || r == ','
		}) {
			if field != "" {
				depends = append(depends, field)
			}
		}
	}
	return depends
}

// Order sorts migrations so every script runs after its prerequisites.
// Unknown dependency IDs and cycles are errors reported before anything runs.
func Order(migrations []Migration) ([]Migration, error) {
	byID := make(map[string]Migration, len(migrations))
	for _, migration := range migrations {
		if _, ok := byID[migration.ID]; ok {
			return nil, fmt.Errorf("duplicate migration id %q", migration.ID)
		}
		byID[migration.ID] = migration
	}

	pending := make(map[string]int, len(migrations))
	dependents := make(map[string][]string, len(migrations))
	for _, migration := range migrations {
		pending[migration.ID] = len(migration.Depends)
		for _, dep := range migration.Depends {
			if _, ok := byID[dep]; !ok {
				return nil, fmt.Errorf("migration %q depends on unknown migration %q", migration.ID, dep)
			}
			dependents[dep] = append(dependents[dep], migration.ID)
		}
	}

	var ready []string
	for _, migration := range migrations {
		if pending[migration.ID] == 0 {
			ready = append(ready, migration.ID)
		}
	}
	sort.Strings(ready)

	ordered := make([]Migration, 0, len(migrations))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		ordered = append(ordered, byID[id])

		var unblocked bool
		for _, dependent := range dependents[id] {
			pending[dependent]--
			if pending[dependent] == 0 {
				ready = append(ready, dependent)
				unblocked = true
			}
		}
		if unblocked {
			sort.Strings(ready)
		}
	}

	if len(ordered) != len(migrations) {
		var stuck []string
		for id, count := range pending {
			if count > 0 {
				stuck = append(stuck, id)
			}
		}
		sort.Strings(stuck)
		return nil, fmt.Errorf("migration dependency cycle involving %s", strings.Join(stuck, ", "))
	}

	return ordered, nil
}

// IsAlreadyExistsError reports whether this error indicates idempotent DDL success.
func IsAlreadyExistsError(err error) bool {
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "already exists") || strings.Contains(value, "duplicate column name")
}

func isApplied(sqlDB *sql.DB, name string) (bool, error) {
	var found int
	row := sqlDB.QueryRow("SELECT 1 FROM "+migrationTable+" WHERE name = ?", name)
	err := row.Scan(&found)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
