// Package migrations holds the schema as ordered NNNNNN_name.{up,down}.sql files.
package migrations

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"slices"
	"strings"

	"github.com/safar/storefront/internal/database"
)

//go:embed *.sql
var FS embed.FS

// Files returns the migration file names for direction ("up" or "down") in
// the order they must be applied.
func Files(direction string) ([]string, error) {
	if direction != "up" && direction != "down" {
		return nil, fmt.Errorf("direction must be 'up' or 'down', got %q", direction)
	}

	entries, err := fs.ReadDir(FS, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), "."+direction+".sql") {
			names = append(names, e.Name())
		}
	}

	slices.Sort(names)
	if direction == "down" {
		slices.Reverse(names)
	}

	return names, nil
}

// Run executes every migration for direction against q. It returns the names
// of the files it applied.
func Run(ctx context.Context, q database.Querier, direction string) ([]string, error) {
	names, err := Files(direction)
	if err != nil {
		return nil, err
	}

	for _, name := range names {
		content, err := FS.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("read migration file %s: %w", name, err)
		}

		if _, err := q.ExecContext(ctx, string(content)); err != nil {
			return nil, fmt.Errorf("execute migration %s: %w", name, err)
		}
	}

	return names, nil
}
