package migrations

import (
	"context"
	"fmt"
	"strings"
)

// ClickhouseExecer is implemented by the clickhouse-go driver.Conn.
type ClickhouseExecer interface {
	Exec(ctx context.Context, query string, args ...any) error
}

// ApplyClickhouse runs every ClickHouse migration in name order. The native
// protocol accepts one statement per call, so files are split first.
func ApplyClickhouse(ctx context.Context, db ClickhouseExecer) error {
	ms, err := Clickhouse()
	if err != nil {
		return err
	}
	for _, m := range ms {
		stmts, err := statements(m.SQL)
		if err != nil {
			return fmt.Errorf("split clickhouse migration %s: %w", m.Name, err)
		}
		for _, stmt := range stmts {
			if err := db.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("apply clickhouse migration %s: %w", m.Name, err)
			}
		}
	}
	return nil
}

// statements splits sql on semicolons outside quoted literals and drops
// "--" line comments. Doubled or backslash-escaped quotes stay inside the literal.
func statements(sql string) ([]string, error) {
	var (
		out   []string
		cur   strings.Builder
		quote byte
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			out = append(out, s)
		}
		cur.Reset()
	}

	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch {
		case quote != 0:
			cur.WriteByte(c)
			if c == '\\' && i+1 < len(sql) {
				i++
				cur.WriteByte(sql[i])
				continue
			}
			if c == quote {
				if i+1 < len(sql) && sql[i+1] == quote {
					i++
					cur.WriteByte(sql[i])
					continue
				}
				quote = 0
			}
		case c == '\'' || c == '"' || c == '`':
			quote = c
			cur.WriteByte(c)
		case c == '-' && i+1 < len(sql) && sql[i+1] == '-':
			for i < len(sql) && sql[i] != '\n' {
				i++
			}
			cur.WriteByte('\n')
		case c == ';':
			flush()
		default:
			cur.WriteByte(c)
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated %c literal", quote)
	}
	flush()
	return out, nil
}
