package sqlstore

import (
	"strconv"
	"strings"
)

// Dialect captures the SQL differences between the supported databases
type Dialect struct {
	Name   string
	Driver string

	// Schema statements run by Migrate, in order
	schema []string

	// numeric renders an ORDER BY expression treating a text column as a number
	numeric func(col string) string

	// limitAll is the LIMIT clause meaning "no limit", needed before OFFSET
	limitAll string

	dollarParams bool
}

// Rebind rewrites ? placeholders into the dialect's parameter syntax
func (d Dialect) Rebind(query string) string {
	if !d.dollarParams {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Postgres is the PostgreSQL dialect (lib/pq)
var Postgres = Dialect{
	Name:         "postgres",
	Driver:       "postgres",
	dollarParams: true,
	limitAll:     "LIMIT ALL",
	numeric: func(col string) string {
		return "CASE WHEN " + col + ` ~ '^-{0,1}[0-9]+(\.[0-9]+){0,1}$' THEN CAST(` + col + " AS NUMERIC) ELSE 0 END"
	},
	schema: []string{
		`CREATE TABLE IF NOT EXISTS posts (
			id BIGSERIAL PRIMARY KEY,
			kind TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			body TEXT NOT NULL DEFAULT '',
			author_id BIGINT NOT NULL DEFAULT 0,
			author_name TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL,
			modified_at TIMESTAMP WITH TIME ZONE NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_posts_kind_status ON posts (kind, status)`,
		`CREATE TABLE IF NOT EXISTS post_meta (
			post_id BIGINT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
			meta_key TEXT NOT NULL,
			meta_value TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (post_id, meta_key)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_post_meta_key_value ON post_meta (meta_key, meta_value)`,
		`CREATE TABLE IF NOT EXISTS terms (
			id BIGSERIAL PRIMARY KEY,
			taxonomy TEXT NOT NULL,
			name TEXT NOT NULL,
			slug TEXT NOT NULL,
			UNIQUE (taxonomy, slug)
		)`,
		`CREATE TABLE IF NOT EXISTS post_terms (
			post_id BIGINT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
			term_id BIGINT NOT NULL REFERENCES terms(id) ON DELETE CASCADE,
			PRIMARY KEY (post_id, term_id)
		)`,
	},
}

// SQLite is the SQLite dialect (mattn/go-sqlite3)
var SQLite = Dialect{
	Name:     "sqlite",
	Driver:   "sqlite3",
	limitAll: "LIMIT -1",
	numeric: func(col string) string {
		return "CAST(" + col + " AS REAL)"
	},
	schema: []string{
		`CREATE TABLE IF NOT EXISTS posts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			kind TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			body TEXT NOT NULL DEFAULT '',
			author_id INTEGER NOT NULL DEFAULT 0,
			author_name TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			modified_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_posts_kind_status ON posts (kind, status)`,
		`CREATE TABLE IF NOT EXISTS post_meta (
			post_id INTEGER NOT NULL,
			meta_key TEXT NOT NULL,
			meta_value TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (post_id, meta_key)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_post_meta_key_value ON post_meta (meta_key, meta_value)`,
		`CREATE TABLE IF NOT EXISTS terms (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			taxonomy TEXT NOT NULL,
			name TEXT NOT NULL,
			slug TEXT NOT NULL,
			UNIQUE (taxonomy, slug)
		)`,
		`CREATE TABLE IF NOT EXISTS post_terms (
			post_id INTEGER NOT NULL,
			term_id INTEGER NOT NULL,
			PRIMARY KEY (post_id, term_id)
		)`,
	},
}
