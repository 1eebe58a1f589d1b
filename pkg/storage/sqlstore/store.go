package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/openveil/openveil/pkg/content"
	"github.com/openveil/openveil/pkg/storage"
)

// Store implements content.Store on a SQL database
type Store struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

// queryer is satisfied by both *sql.DB and *sql.Tx
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New wraps an open database handle
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect, now: time.Now}
}

// Open connects to the backend selected by cfg and pings it
func Open(cfg storage.Config) (*Store, error) {
	var (
		dialect Dialect
		dsn     string
	)
	switch cfg.Type {
	case storage.TypePostgres:
		dialect, dsn = Postgres, cfg.PostgresURL
	case storage.TypeSQLite:
		dialect, dsn = SQLite, cfg.SQLitePath
	default:
		return nil, fmt.Errorf("unsupported sql backend: %s", cfg.Type)
	}

	db, err := sql.Open(dialect.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", dialect.Name, err)
	}

	if dialect.Name == SQLite.Name {
		// SQLite serialises writers; one connection avoids SQLITE_BUSY and
		// keeps :memory: databases alive.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(cfg.PostgresMaxConns)
		db.SetMaxIdleConns(cfg.PostgresMinConns)
		db.SetConnMaxLifetime(1 * time.Hour)
		db.SetConnMaxIdleTime(10 * time.Minute)
	}

	timeout := cfg.PostgresTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", dialect.Name, err)
	}

	return New(db, dialect), nil
}

// DB returns the underlying handle for health checks
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the schema when missing
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) exists(ctx context.Context, q queryer, id int64) error {
	var one int
	err := q.QueryRowContext(ctx, s.dialect.Rebind(`SELECT 1 FROM posts WHERE id = ?`), id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return content.NotFoundError{ID: id}
	}
	if err != nil {
		return fmt.Errorf("failed to check record %d: %w", id, err)
	}
	return nil
}

// Create implements content.Store.Create
func (s *Store) Create(ctx context.Context, rec *content.Record) (int64, error) {
	now := s.now().UTC()
	date := rec.Date
	if date.IsZero() {
		date = now
	}

	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		query := s.dialect.Rebind(`
			INSERT INTO posts (kind, title, body, author_id, author_name, status, created_at, modified_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			RETURNING id
		`)
		err := tx.QueryRowContext(ctx, query,
			string(rec.Kind),
			rec.Title,
			rec.Body,
			rec.AuthorID,
			rec.AuthorName,
			string(rec.Status),
			date.UTC(),
			now,
		).Scan(&id)
		if err != nil {
			return fmt.Errorf("failed to insert record: %w", err)
		}

		if err := s.upsertMeta(ctx, tx, id, rec.Meta); err != nil {
			return err
		}
		for tax, terms := range rec.Terms {
			refs := make([]content.TermRef, 0, len(terms))
			for _, t := range terms {
				refs = append(refs, content.TermRef{ID: t.ID, Name: t.Name})
			}
			if err := s.replaceTerms(ctx, tx, id, tax, refs); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Get implements content.Store.Get
func (s *Store) Get(ctx context.Context, id int64) (*content.Record, error) {
	query := s.dialect.Rebind(`
		SELECT id, kind, title, body, author_id, author_name, status, created_at, modified_at
		FROM posts
		WHERE id = ?
	`)
	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, content.NotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record %d: %w", id, err)
	}

	if err := s.loadRelations(ctx, []*content.Record{rec}); err != nil {
		return nil, err
	}
	return rec, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*content.Record, error) {
	var (
		rec    content.Record
		kind   string
		status string
	)
	err := row.Scan(
		&rec.ID,
		&kind,
		&rec.Title,
		&rec.Body,
		&rec.AuthorID,
		&rec.AuthorName,
		&status,
		&rec.Date,
		&rec.Modified,
	)
	if err != nil {
		return nil, err
	}
	rec.Kind = content.Kind(kind)
	rec.Status = content.Status(status)
	rec.Date = rec.Date.UTC()
	rec.Modified = rec.Modified.UTC()
	rec.Meta = make(map[string]string)
	rec.Terms = make(map[string][]content.Term)
	return &rec, nil
}

// loadRelations fills Meta and Terms for a batch of records
func (s *Store) loadRelations(ctx context.Context, recs []*content.Record) error {
	if len(recs) == 0 {
		return nil
	}
	byID := make(map[int64]*content.Record, len(recs))
	args := make([]any, 0, len(recs))
	for _, r := range recs {
		byID[r.ID] = r
		args = append(args, r.ID)
	}
	in := placeholders(len(args))

	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(
		`SELECT post_id, meta_key, meta_value FROM post_meta WHERE post_id IN (`+in+`)`), args...)
	if err != nil {
		return fmt.Errorf("failed to load meta: %w", err)
	}
	for rows.Next() {
		var (
			postID     int64
			key, value string
		)
		if err := rows.Scan(&postID, &key, &value); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan meta: %w", err)
		}
		byID[postID].Meta[key] = value
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to load meta: %w", err)
	}

	rows, err = s.db.QueryContext(ctx, s.dialect.Rebind(`
		SELECT pt.post_id, t.taxonomy, t.id, t.name, t.slug
		FROM post_terms pt
		JOIN terms t ON t.id = pt.term_id
		WHERE pt.post_id IN (`+in+`)
		ORDER BY t.name`), args...)
	if err != nil {
		return fmt.Errorf("failed to load terms: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			postID   int64
			taxonomy string
			term     content.Term
		)
		if err := rows.Scan(&postID, &taxonomy, &term.ID, &term.Name, &term.Slug); err != nil {
			return fmt.Errorf("failed to scan term: %w", err)
		}
		rec := byID[postID]
		rec.Terms[taxonomy] = append(rec.Terms[taxonomy], term)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to load terms: %w", err)
	}
	return nil
}

// UpdatePost implements content.Store.UpdatePost
func (s *Store) UpdatePost(ctx context.Context, id int64, patch content.PostPatch) error {
	sets := []string{"modified_at = ?"}
	args := []any{s.now().UTC()}
	if patch.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *patch.Title)
	}
	if patch.Body != nil {
		sets = append(sets, "body = ?")
		args = append(args, *patch.Body)
	}
	if patch.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*patch.Status))
	}
	args = append(args, id)

	query := s.dialect.Rebind(`UPDATE posts SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`)
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update record %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update record %d: %w", id, err)
	}
	if n == 0 {
		return content.NotFoundError{ID: id}
	}
	return nil
}

// SetMeta implements content.Store.SetMeta
func (s *Store) SetMeta(ctx context.Context, id int64, meta map[string]string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.exists(ctx, tx, id); err != nil {
			return err
		}
		return s.upsertMeta(ctx, tx, id, meta)
	})
}

func (s *Store) upsertMeta(ctx context.Context, q queryer, id int64, meta map[string]string) error {
	query := s.dialect.Rebind(`
		INSERT INTO post_meta (post_id, meta_key, meta_value)
		VALUES (?, ?, ?)
		ON CONFLICT (post_id, meta_key) DO UPDATE SET meta_value = excluded.meta_value
	`)
	for k, v := range meta {
		if _, err := q.ExecContext(ctx, query, id, k, v); err != nil {
			return fmt.Errorf("failed to set meta %s on record %d: %w", k, id, err)
		}
	}
	return nil
}

// DeleteMeta implements content.Store.DeleteMeta
func (s *Store) DeleteMeta(ctx context.Context, id int64, keys ...string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.exists(ctx, tx, id); err != nil {
			return err
		}
		if len(keys) == 0 {
			return nil
		}
		args := []any{id}
		for _, k := range keys {
			args = append(args, k)
		}
		query := s.dialect.Rebind(`DELETE FROM post_meta WHERE post_id = ? AND meta_key IN (` + placeholders(len(keys)) + `)`)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to delete meta on record %d: %w", id, err)
		}
		return nil
	})
}

// SetTerms implements content.Store.SetTerms
func (s *Store) SetTerms(ctx context.Context, id int64, taxonomy string, refs []content.TermRef) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.exists(ctx, tx, id); err != nil {
			return err
		}
		return s.replaceTerms(ctx, tx, id, taxonomy, refs)
	})
}

func (s *Store) replaceTerms(ctx context.Context, q queryer, id int64, taxonomy string, refs []content.TermRef) error {
	termIDs, err := s.resolveTerms(ctx, q, taxonomy, refs)
	if err != nil {
		return err
	}

	unassign := s.dialect.Rebind(`
		DELETE FROM post_terms
		WHERE post_id = ? AND term_id IN (SELECT id FROM terms WHERE taxonomy = ?)
	`)
	if _, err := q.ExecContext(ctx, unassign, id, taxonomy); err != nil {
		return fmt.Errorf("failed to clear %s terms on record %d: %w", taxonomy, id, err)
	}

	assign := s.dialect.Rebind(`INSERT INTO post_terms (post_id, term_id) VALUES (?, ?)`)
	for _, termID := range termIDs {
		if _, err := q.ExecContext(ctx, assign, id, termID); err != nil {
			return fmt.Errorf("failed to assign term %d to record %d: %w", termID, id, err)
		}
	}
	return nil
}

// resolveTerms returns the distinct term IDs for refs, creating terms that
// are referenced by a new name. Unknown IDs are skipped.
func (s *Store) resolveTerms(ctx context.Context, q queryer, taxonomy string, refs []content.TermRef) ([]int64, error) {
	byID := s.dialect.Rebind(`SELECT id FROM terms WHERE id = ? AND taxonomy = ?`)
	insert := s.dialect.Rebind(`
		INSERT INTO terms (taxonomy, name, slug) VALUES (?, ?, ?)
		ON CONFLICT (taxonomy, slug) DO NOTHING
	`)
	bySlug := s.dialect.Rebind(`SELECT id FROM terms WHERE taxonomy = ? AND slug = ?`)

	seen := make(map[int64]bool)
	var ids []int64
	for _, ref := range refs {
		var termID int64
		if ref.ID > 0 {
			err := q.QueryRowContext(ctx, byID, ref.ID, taxonomy).Scan(&termID)
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("failed to look up term %d: %w", ref.ID, err)
			}
		} else {
			name := strings.TrimSpace(ref.Name)
			slug := content.Slugify(name)
			if slug == "" {
				continue
			}
			if _, err := q.ExecContext(ctx, insert, taxonomy, name, slug); err != nil {
				return nil, fmt.Errorf("failed to create term %q: %w", name, err)
			}
			if err := q.QueryRowContext(ctx, bySlug, taxonomy, slug).Scan(&termID); err != nil {
				return nil, fmt.Errorf("failed to look up term %q: %w", name, err)
			}
		}
		if !seen[termID] {
			seen[termID] = true
			ids = append(ids, termID)
		}
	}
	return ids, nil
}

// Delete implements content.Store.Delete
func (s *Store) Delete(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, s.dialect.Rebind(`DELETE FROM post_terms WHERE post_id = ?`), id); err != nil {
			return fmt.Errorf("failed to delete terms of record %d: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx, s.dialect.Rebind(`DELETE FROM post_meta WHERE post_id = ?`), id); err != nil {
			return fmt.Errorf("failed to delete meta of record %d: %w", id, err)
		}
		res, err := tx.ExecContext(ctx, s.dialect.Rebind(`DELETE FROM posts WHERE id = ?`), id)
		if err != nil {
			return fmt.Errorf("failed to delete record %d: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to delete record %d: %w", id, err)
		}
		if n == 0 {
			return content.NotFoundError{ID: id}
		}
		return nil
	})
}

// Terms implements content.Store.Terms
func (s *Store) Terms(ctx context.Context, taxonomy string) ([]content.Term, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(
		`SELECT id, name, slug FROM terms WHERE taxonomy = ? ORDER BY name`), taxonomy)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s terms: %w", taxonomy, err)
	}
	defer rows.Close()

	terms := []content.Term{}
	for rows.Next() {
		var t content.Term
		if err := rows.Scan(&t.ID, &t.Name, &t.Slug); err != nil {
			return nil, fmt.Errorf("failed to scan term: %w", err)
		}
		terms = append(terms, t)
	}
	return terms, rows.Err()
}

// HealthCheck implements content.Store.HealthCheck
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%s unhealthy: %w", s.dialect.Name, err)
	}
	return nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

var _ content.Store = (*Store)(nil)
