package storage

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/openveil/openveil/pkg/content"
)

// MemoryStore is an in-process content.Store used for tests and local runs
type MemoryStore struct {
	mu sync.RWMutex

	records map[int64]*content.Record
	terms   map[string]map[int64]content.Term // taxonomy -> id -> term
	nextID  int64
	nextTID int64
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[int64]*content.Record),
		terms:   make(map[string]map[int64]content.Term),
		now:     time.Now,
	}
}

// SetClock overrides the time source used for date and modified stamps
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// Create implements content.Store.Create
func (m *MemoryStore) Create(ctx context.Context, rec *content.Record) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	stored := rec.Clone()
	stored.ID = m.nextID
	now := m.now().UTC()
	if stored.Date.IsZero() {
		stored.Date = now
	}
	stored.Modified = now
	stored.Terms = make(map[string][]content.Term)

	for tax, terms := range rec.Terms {
		refs := make([]content.TermRef, 0, len(terms))
		for _, t := range terms {
			refs = append(refs, content.TermRef{ID: t.ID, Name: t.Name})
		}
		stored.Terms[tax] = m.resolveTerms(tax, refs)
	}

	m.records[stored.ID] = stored
	return stored.ID, nil
}

// Get implements content.Store.Get
func (m *MemoryStore) Get(ctx context.Context, id int64) (*content.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[id]
	if !ok {
		return nil, content.NotFoundError{ID: id}
	}
	return rec.Clone(), nil
}

// UpdatePost implements content.Store.UpdatePost
func (m *MemoryStore) UpdatePost(ctx context.Context, id int64, patch content.PostPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		return content.NotFoundError{ID: id}
	}
	if patch.Title != nil {
		rec.Title = *patch.Title
	}
	if patch.Body != nil {
		rec.Body = *patch.Body
	}
	if patch.Status != nil {
		rec.Status = *patch.Status
	}
	rec.Modified = m.now().UTC()
	return nil
}

// SetMeta implements content.Store.SetMeta
func (m *MemoryStore) SetMeta(ctx context.Context, id int64, meta map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		return content.NotFoundError{ID: id}
	}
	if rec.Meta == nil {
		rec.Meta = make(map[string]string, len(meta))
	}
	for k, v := range meta {
		rec.Meta[k] = v
	}
	return nil
}

// DeleteMeta implements content.Store.DeleteMeta
func (m *MemoryStore) DeleteMeta(ctx context.Context, id int64, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		return content.NotFoundError{ID: id}
	}
	for _, k := range keys {
		delete(rec.Meta, k)
	}
	return nil
}

// SetTerms implements content.Store.SetTerms
func (m *MemoryStore) SetTerms(ctx context.Context, id int64, taxonomy string, refs []content.TermRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		return content.NotFoundError{ID: id}
	}
	if rec.Terms == nil {
		rec.Terms = make(map[string][]content.Term)
	}
	rec.Terms[taxonomy] = m.resolveTerms(taxonomy, refs)
	return nil
}

// resolveTerms maps refs onto existing terms, creating terms referenced by
// name. Unknown IDs are skipped. Caller holds the write lock.
func (m *MemoryStore) resolveTerms(taxonomy string, refs []content.TermRef) []content.Term {
	vocab := m.terms[taxonomy]
	if vocab == nil {
		vocab = make(map[int64]content.Term)
		m.terms[taxonomy] = vocab
	}

	seen := make(map[int64]bool)
	out := make([]content.Term, 0, len(refs))
	for _, ref := range refs {
		var term content.Term
		if ref.ID > 0 {
			t, ok := vocab[ref.ID]
			if !ok {
				continue
			}
			term = t
		} else {
			name := strings.TrimSpace(ref.Name)
			if name == "" {
				continue
			}
			slug := content.Slugify(name)
			found := false
			for _, t := range vocab {
				if t.Slug == slug {
					term, found = t, true
					break
				}
			}
			if !found {
				m.nextTID++
				term = content.Term{ID: m.nextTID, Name: name, Slug: slug}
				vocab[term.ID] = term
			}
		}
		if seen[term.ID] {
			continue
		}
		seen[term.ID] = true
		out = append(out, term)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Query implements content.Store.Query
func (m *MemoryStore) Query(ctx context.Context, q content.Query) ([]*content.Record, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*content.Record
	for _, rec := range m.records {
		if matches(rec, q) {
			matched = append(matched, rec)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		c := compare(matched[i], matched[j], q)
		if c == 0 {
			c = cmpInt(matched[i].ID, matched[j].ID)
		}
		if q.Descending {
			return c > 0
		}
		return c < 0
	})

	total := len(matched)
	start := min(q.Offset, total)
	end := total
	if q.Limit > 0 {
		end = min(start+q.Limit, total)
	}

	page := make([]*content.Record, 0, end-start)
	for _, rec := range matched[start:end] {
		page = append(page, rec.Clone())
	}
	return page, total, nil
}

func matches(rec *content.Record, q content.Query) bool {
	if q.Kind != "" && rec.Kind != q.Kind {
		return false
	}
	if len(q.Statuses) > 0 {
		ok := false
		for _, s := range q.Statuses {
			if rec.Status == s {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	for k, v := range q.MetaEquals {
		if got, ok := rec.MetaValue(k); !ok || got != v {
			return false
		}
	}
	for _, k := range q.MetaExists {
		if _, ok := rec.MetaValue(k); !ok {
			return false
		}
	}
	if q.Search != "" {
		needle := strings.ToLower(q.Search)
		if !strings.Contains(strings.ToLower(rec.Title), needle) &&
			!strings.Contains(strings.ToLower(rec.Body), needle) {
			return false
		}
	}
	for _, f := range q.TaxFilters {
		if !matchesTax(rec, f) {
			return false
		}
	}
	return true
}

func matchesTax(rec *content.Record, f content.TaxFilter) bool {
	for _, term := range rec.Terms[f.Taxonomy] {
		for _, v := range f.Values {
			switch f.Match {
			case content.MatchSlug:
				if term.Slug == v {
					return true
				}
			default:
				if strings.EqualFold(term.Name, v) {
					return true
				}
			}
		}
	}
	return false
}

func compare(a, b *content.Record, q content.Query) int {
	switch q.OrderBy {
	case content.OrderByID:
		return cmpInt(a.ID, b.ID)
	case content.OrderByTitle:
		return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
	case content.OrderByModified:
		return a.Modified.Compare(b.Modified)
	case content.OrderByAuthor:
		return cmpInt(a.AuthorID, b.AuthorID)
	case content.OrderByMeta:
		av, _ := a.MetaValue(q.OrderMetaKey)
		bv, _ := b.MetaValue(q.OrderMetaKey)
		if q.OrderNumeric {
			af, _ := strconv.ParseFloat(av, 64)
			bf, _ := strconv.ParseFloat(bv, 64)
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			}
			return 0
		}
		return strings.Compare(av, bv)
	default:
		return a.Date.Compare(b.Date)
	}
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Delete implements content.Store.Delete
func (m *MemoryStore) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[id]; !ok {
		return content.NotFoundError{ID: id}
	}
	delete(m.records, id)
	return nil
}

// Terms implements content.Store.Terms
func (m *MemoryStore) Terms(ctx context.Context, taxonomy string) ([]content.Term, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]content.Term, 0, len(m.terms[taxonomy]))
	for _, t := range m.terms[taxonomy] {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// HealthCheck implements content.Store.HealthCheck
func (m *MemoryStore) HealthCheck(ctx context.Context) error {
	return nil
}

var _ content.Store = (*MemoryStore)(nil)
