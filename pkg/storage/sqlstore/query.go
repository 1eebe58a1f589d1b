package sqlstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/openveil/openveil/pkg/content"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// buildWhere renders the filter part of q shared by the count and page
// queries
func buildWhere(q content.Query) (string, []any) {
	var (
		conds []string
		args  []any
	)

	if q.Kind != "" {
		conds = append(conds, "p.kind = ?")
		args = append(args, string(q.Kind))
	}
	if len(q.Statuses) > 0 {
		conds = append(conds, "p.status IN ("+placeholders(len(q.Statuses))+")")
		for _, st := range q.Statuses {
			args = append(args, string(st))
		}
	}
	for key, value := range q.MetaEquals {
		conds = append(conds, "EXISTS (SELECT 1 FROM post_meta m WHERE m.post_id = p.id AND m.meta_key = ? AND m.meta_value = ?)")
		args = append(args, key, value)
	}
	for _, key := range q.MetaExists {
		conds = append(conds, "EXISTS (SELECT 1 FROM post_meta m WHERE m.post_id = p.id AND m.meta_key = ?)")
		args = append(args, key)
	}
	if q.Search != "" {
		pattern := "%" + likeEscaper.Replace(strings.ToLower(q.Search)) + "%"
		conds = append(conds, `(LOWER(p.title) LIKE ? ESCAPE '\' OR LOWER(p.body) LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}
	for _, f := range q.TaxFilters {
		if len(f.Values) == 0 {
			continue
		}
		col := "LOWER(t.name)"
		if f.Match == content.MatchSlug {
			col = "t.slug"
		}
		conds = append(conds, `EXISTS (
			SELECT 1 FROM post_terms pt JOIN terms t ON t.id = pt.term_id
			WHERE pt.post_id = p.id AND t.taxonomy = ? AND `+col+` IN (`+placeholders(len(f.Values))+`))`)
		args = append(args, f.Taxonomy)
		for _, v := range f.Values {
			if f.Match == content.MatchSlug {
				args = append(args, v)
			} else {
				args = append(args, strings.ToLower(v))
			}
		}
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// buildOrder renders the join and ORDER BY clause for q
func (s *Store) buildOrder(q content.Query) (join string, order string, args []any) {
	dir := "ASC"
	if q.Descending {
		dir = "DESC"
	}

	var expr string
	switch q.OrderBy {
	case content.OrderByID:
		expr = "p.id"
	case content.OrderByTitle:
		expr = "LOWER(p.title)"
	case content.OrderByModified:
		expr = "p.modified_at"
	case content.OrderByAuthor:
		expr = "p.author_id"
	case content.OrderByMeta:
		join = " LEFT JOIN post_meta om ON om.post_id = p.id AND om.meta_key = ?"
		args = append(args, q.OrderMetaKey)
		expr = "COALESCE(om.meta_value, '')"
		if q.OrderNumeric {
			expr = s.dialect.numeric(expr)
		}
	default:
		expr = "p.created_at"
	}
	return join, fmt.Sprintf(" ORDER BY %s %s, p.id %s", expr, dir, dir), args
}

// Query implements content.Store.Query
func (s *Store) Query(ctx context.Context, q content.Query) ([]*content.Record, int, error) {
	where, whereArgs := buildWhere(q)

	var total int
	countQuery := s.dialect.Rebind(`SELECT COUNT(*) FROM posts p` + where)
	if err := s.db.QueryRowContext(ctx, countQuery, whereArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count records: %w", err)
	}

	join, order, orderArgs := s.buildOrder(q)
	args := append(orderArgs, whereArgs...)

	page := `
		SELECT p.id, p.kind, p.title, p.body, p.author_id, p.author_name, p.status, p.created_at, p.modified_at
		FROM posts p` + join + where + order
	switch {
	case q.Limit > 0:
		page += " LIMIT ? OFFSET ?"
		args = append(args, q.Limit, q.Offset)
	case q.Offset > 0:
		page += " " + s.dialect.limitAll + " OFFSET ?"
		args = append(args, q.Offset)
	}

	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(page), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query records: %w", err)
	}
	recs := []*content.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			rows.Close()
			return nil, 0, fmt.Errorf("failed to scan record: %w", err)
		}
		recs = append(recs, rec)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to query records: %w", err)
	}

	if err := s.loadRelations(ctx, recs); err != nil {
		return nil, 0, err
	}
	return recs, total, nil
}
