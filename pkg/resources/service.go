package resources

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/openveil/openveil/pkg/apierr"
	"github.com/openveil/openveil/pkg/auth"
	"github.com/openveil/openveil/pkg/content"
	"github.com/openveil/openveil/pkg/csl"
	"github.com/openveil/openveil/pkg/observability"
	"github.com/openveil/openveil/pkg/policy"
	"github.com/openveil/openveil/pkg/query"
	"github.com/openveil/openveil/pkg/shape"
)

// TokenGenerator issues claim tokens for guest submissions
type TokenGenerator interface {
	Generate() (string, error)
}

// Service implements the Protocol and Trial operations
type Service struct {
	store    content.Store
	policy   *policy.Policy
	shaper   *shape.Shaper
	tokens   TokenGenerator
	metrics  *observability.Metrics
	now      func() time.Time
	siteName string
}

// Option configures a Service
type Option func(*Service)

// WithClock overrides the time source used for claim expiry
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithTokenGenerator replaces the default claim token generator
func WithTokenGenerator(g TokenGenerator) Option {
	return func(s *Service) { s.tokens = g }
}

// WithMetrics records business counters
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithSiteName sets the CSL publisher
func WithSiteName(name string) Option {
	return func(s *Service) { s.siteName = name }
}

// New creates a Service
func New(store content.Store, p *policy.Policy, shaper *shape.Shaper, opts ...Option) *Service {
	s := &Service{
		store:  store,
		policy: p,
		shaper: shaper,
		tokens: auth.NewClaimTokenGenerator(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Page is one page of a listing
type Page struct {
	Items      []map[string]any
	Page       int
	PerPage    int
	Total      int
	TotalPages int
}

// Deleted is the result of a successful delete
type Deleted struct {
	Deleted  bool           `json:"deleted"`
	Previous map[string]any `json:"previous"`
}

// load fetches a record and reports a missing or mismatched record as the
// kind's not found error
func (s *Service) load(ctx context.Context, kind content.Kind, id int64) (*content.Record, error) {
	rec, err := s.store.Get(ctx, id)
	if content.IsNotFound(err) {
		return nil, apierr.NotFound(kind)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s %d: %w", kind, id, err)
	}
	if rec.Kind != kind {
		return nil, apierr.NotFound(kind)
	}
	return rec, nil
}

func (s *Service) denied(kind content.Kind, op string, err error) error {
	s.metrics.PermissionDenied(string(kind), op)
	return err
}

// List returns published records matching the request parameters
func (s *Service) List(ctx context.Context, kind content.Kind, params url.Values) (*Page, error) {
	list := query.Build(kind, params)
	list.Query.Statuses = []content.Status{content.StatusPublish}
	opts := shape.ParseOptions(kind, params)

	recs, total, err := s.store.Query(ctx, list.Query)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", kind, err)
	}

	items := make([]map[string]any, 0, len(recs))
	for _, rec := range recs {
		item, err := s.shaper.Shape(ctx, rec, opts)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	return &Page{
		Items:      items,
		Page:       list.Page,
		PerPage:    list.PerPage,
		Total:      total,
		TotalPages: (total + list.PerPage - 1) / list.PerPage,
	}, nil
}

// Get returns one record. Records the caller may not view are reported as
// not found.
func (s *Service) Get(ctx context.Context, kind content.Kind, id int64, params url.Values, a auth.AuthContext, claimToken string) (map[string]any, error) {
	rec, err := s.load(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if !s.policy.CanView(rec, a, claimToken) {
		return nil, apierr.NotFound(kind)
	}
	return s.shaper.Shape(ctx, rec, shape.ParseOptions(kind, params))
}

// CSL returns the citation of one record
func (s *Service) CSL(ctx context.Context, kind content.Kind, id int64, a auth.AuthContext, claimToken string) (csl.Item, error) {
	rec, err := s.load(ctx, kind, id)
	if err != nil {
		return csl.Item{}, err
	}
	if !s.policy.CanView(rec, a, claimToken) {
		return csl.Item{}, apierr.NotFound(kind)
	}

	src := csl.Source{
		URL:       s.shaper.Links().Permalink(rec.Kind, rec.ID),
		Publisher: s.siteName,
	}
	if rec.Kind == content.KindTrial {
		protocol, err := s.shaper.ProtocolOf(ctx, rec)
		if err != nil {
			return csl.Item{}, err
		}
		if protocol != nil {
			src.ContainerTitle = protocol.Title
		}
	}
	return csl.FromRecord(rec, src), nil
}

// Citations returns every published protocol followed by every published
// trial as CSL items
func (s *Service) Citations(ctx context.Context) ([]csl.Item, error) {
	protocols, _, err := s.store.Query(ctx, content.Query{
		Kind:     content.KindProtocol,
		Statuses: []content.Status{content.StatusPublish},
		OrderBy:  content.OrderByID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list protocols: %w", err)
	}
	trials, _, err := s.store.Query(ctx, content.Query{
		Kind:     content.KindTrial,
		Statuses: []content.Status{content.StatusPublish},
		OrderBy:  content.OrderByID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list trials: %w", err)
	}

	links := s.shaper.Links()
	titles := make(map[int64]string, len(protocols))
	items := make([]csl.Item, 0, len(protocols)+len(trials))
	for _, p := range protocols {
		titles[p.ID] = p.Title
		items = append(items, csl.FromRecord(p, csl.Source{
			URL:       links.Permalink(p.Kind, p.ID),
			Publisher: s.siteName,
		}))
	}
	for _, t := range trials {
		src := csl.Source{URL: links.Permalink(t.Kind, t.ID), Publisher: s.siteName}
		raw, _ := t.MetaValue(content.MetaProtocolID)
		if pid, ok := parseProtocolID(raw); ok {
			title, known := titles[pid]
			if !known {
				// unpublished parent
				if parent, err := s.shaper.ProtocolOf(ctx, t); err == nil && parent != nil {
					title = parent.Title
				}
				titles[pid] = title
			}
			src.ContainerTitle = title
		}
		items = append(items, csl.FromRecord(t, src))
	}
	return items, nil
}

// Schema describes taxonomies with their current terms, metadata fields per
// kind, the questionnaire and the public settings
func (s *Service) Schema(ctx context.Context) (map[string]any, error) {
	taxonomies := make(map[string]any, len(content.Taxonomies))
	for _, tax := range content.Taxonomies {
		terms, err := s.store.Terms(ctx, tax.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s terms: %w", tax.Name, err)
		}
		if terms == nil {
			terms = []content.Term{}
		}
		taxonomies[tax.Name] = map[string]any{
			"label": tax.Label,
			"terms": terms,
		}
	}

	meta := make(map[string]any, 2)
	for _, kind := range []content.Kind{content.KindProtocol, content.KindTrial} {
		fields := make(map[string]any)
		for _, f := range content.MetaFields(kind) {
			desc := map[string]any{"type": string(f.Type)}
			if f.Min != nil {
				desc["min"] = *f.Min
			}
			if f.Max != nil {
				desc["max"] = *f.Max
			}
			fields[f.Key] = desc
		}
		meta[string(kind)] = fields
	}

	questionnaire := make(map[string]any, len(content.QuestionnaireSchema))
	for _, section := range content.QuestionnaireSchema {
		fields := make(map[string]string, len(section.Fields))
		for _, f := range section.Fields {
			fields[f.Name] = string(f.Type)
		}
		questionnaire[section.Key] = fields
	}

	settings := s.policy.Settings()
	return map[string]any{
		"taxonomies":    taxonomies,
		"meta":          meta,
		"questionnaire": questionnaire,
		"settings": map[string]any{
			"api_access":        string(settings.APIAccess),
			"guest_submissions": settings.GuestSubmissions,
		},
	}, nil
}
