package migrations

import (
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

// Migration is one embedded schema file.
type Migration struct {
	Name string
	SQL  string
}

// load reads the non-empty .sql files under dir, ordered by name.
func load(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read %s migrations: %w", dir, err)
	}

	var out []Migration
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".sql" {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}
		out = append(out, Migration{Name: entry.Name(), SQL: string(data)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Postgres lists the embedded Postgres migrations.
func Postgres() ([]Migration, error) {
	return load(postgresFS, "postgres")
}

// Clickhouse lists the embedded ClickHouse migrations.
func Clickhouse() ([]Migration, error) {
	return load(clickhouseFS, "clickhouse")
}
