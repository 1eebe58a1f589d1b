package content

import "context"

// OrderField is a sortable record attribute
type OrderField string

const (
	OrderByID       OrderField = "id"
	OrderByTitle    OrderField = "title"
	OrderByDate     OrderField = "date"
	OrderByModified OrderField = "modified"
	OrderByAuthor   OrderField = "author"
	OrderByMeta     OrderField = "meta"
)

// TermMatch selects how taxonomy filter values are compared
type TermMatch string

const (
	MatchName TermMatch = "name"
	MatchSlug TermMatch = "slug"
)

// TaxFilter restricts results to records assigned any of Values in Taxonomy
type TaxFilter struct {
	Taxonomy string
	Match    TermMatch
	Values   []string
}

// Query describes a record listing. Tax filters combine with AND; values
// inside one filter combine with OR.
type Query struct {
	Kind     Kind
	Statuses []Status // empty means any status

	Limit  int // 0 means unlimited
	Offset int

	OrderBy      OrderField
	OrderMetaKey string
	OrderNumeric bool
	Descending   bool

	TaxFilters []TaxFilter
	Search     string

	MetaEquals map[string]string
	MetaExists []string
}

// Store persists records, metadata and taxonomy assignments
type Store interface {
	// Create inserts the post-level fields of rec and returns the new ID.
	// Meta and Terms on rec are persisted as well when set.
	Create(ctx context.Context, rec *Record) (int64, error)
	// Get returns ErrNotFound when no record has the given ID.
	Get(ctx context.Context, id int64) (*Record, error)
	UpdatePost(ctx context.Context, id int64, patch PostPatch) error
	SetMeta(ctx context.Context, id int64, meta map[string]string) error
	DeleteMeta(ctx context.Context, id int64, keys ...string) error
	// SetTerms replaces the record's assignments in one taxonomy.
	SetTerms(ctx context.Context, id int64, taxonomy string, refs []TermRef) error
	// Query returns one page of matches and the total number of matches.
	Query(ctx context.Context, q Query) ([]*Record, int, error)
	Delete(ctx context.Context, id int64) error
	Terms(ctx context.Context, taxonomy string) ([]Term, error)
	HealthCheck(ctx context.Context) error
}
