package sqlstore

import (
	"strconv"
	"strings"
)

// Dialect names accepted by Open.
const (
	SQLite   = "sqlite"
	Postgres = "postgres"
)

type dialect struct {
	name     string
	driver   string
	schema   string
	orderCol string
	numbered bool // $1, $2 placeholders instead of ?
}

var dialects = map[string]dialect{
	SQLite: {
		name:   SQLite,
		driver: "sqlite",
		schema: `CREATE TABLE IF NOT EXISTS images (
			id           TEXT PRIMARY KEY,
			display_name TEXT NOT NULL,
			folder_path  TEXT NOT NULL,
			deleted_at   TIMESTAMP NULL
		);
		CREATE INDEX IF NOT EXISTS idx_images_folder ON images(folder_path);`,
		orderCol: "rowid",
	},
	Postgres: {
		name:   Postgres,
		driver: "postgres",
		schema: `CREATE TABLE IF NOT EXISTS images (
			seq          BIGSERIAL,
			id           TEXT PRIMARY KEY,
			display_name TEXT NOT NULL,
			folder_path  TEXT NOT NULL,
			deleted_at   TIMESTAMPTZ NULL
		);
		CREATE INDEX IF NOT EXISTS idx_images_folder ON images(folder_path);`,
		orderCol: "seq",
		numbered: true,
	},
}

// rebind rewrites ? placeholders into the dialect's form.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

// placeholders returns "?, ?, ..." with n entries.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
