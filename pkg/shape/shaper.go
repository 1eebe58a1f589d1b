package shape

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/openveil/openveil/pkg/content"
)

// Shaper turns stored records into their public JSON representation
type Shaper struct {
	store content.Store
	links Links
}

// New creates a shaper resolving related records through store
func New(store content.Store, links Links) *Shaper {
	return &Shaper{store: store, links: links}
}

// Links returns the URL builder used for hypermedia
func (s *Shaper) Links() Links {
	return s.links
}

// Base renders the representation without _links or _embedded
func (s *Shaper) Base(rec *content.Record) map[string]any {
	out := map[string]any{
		"id":       rec.ID,
		"title":    rec.Title,
		"body":     rec.Body,
		"status":   string(rec.Status),
		"date":     formatTime(rec.Date),
		"modified": formatTime(rec.Modified),
		"author": map[string]any{
			"id":   rec.AuthorID,
			"name": rec.AuthorName,
		},
		"permalink":  s.links.Permalink(rec.Kind, rec.ID),
		"meta":       shapeMeta(rec),
		"taxonomies": shapeTaxonomies(rec),
	}
	if rec.Kind == content.KindTrial {
		out["questionnaire"] = content.UnflattenQuestionnaire(rec.Meta)
	}
	return out
}

// Shape renders rec with links, requested embeds and field selection
func (s *Shaper) Shape(ctx context.Context, rec *content.Record, opts Options) (map[string]any, error) {
	out := s.Base(rec)

	links := map[string]any{
		"self":       []map[string]any{{"href": s.links.Self(rec.Kind, rec.ID)}},
		"collection": []map[string]any{{"href": s.links.Collection(rec.Kind)}},
		"csl":        []map[string]any{{"href": s.links.CSL(rec.Kind, rec.ID)}},
	}
	embedded := map[string]any{}

	switch rec.Kind {
	case content.KindProtocol:
		trials, err := s.TrialsOf(ctx, rec.ID)
		if err != nil {
			return nil, err
		}
		refs := make([]map[string]any, 0, len(trials))
		for _, t := range trials {
			refs = append(refs, map[string]any{
				"href":  s.links.Self(content.KindTrial, t.ID),
				"title": t.Title,
			})
		}
		links["trials"] = refs

		if opts.Embed["trials"] {
			shaped := make([]map[string]any, 0, len(trials))
			for _, t := range trials {
				item, err := s.Shape(ctx, t, Options{})
				if err != nil {
					return nil, err
				}
				shaped = append(shaped, item)
			}
			embedded["trials"] = shaped
		}

	case content.KindTrial:
		protocol, err := s.ProtocolOf(ctx, rec)
		if err != nil {
			return nil, err
		}
		if protocol != nil {
			links["protocol"] = []map[string]any{{"href": s.links.Self(content.KindProtocol, protocol.ID)}}
			if opts.Embed["protocol"] {
				item, err := s.Shape(ctx, protocol, Options{})
				if err != nil {
					return nil, err
				}
				embedded["protocol"] = []map[string]any{item}
			}
		}
	}

	out["_links"] = links
	if len(embedded) > 0 {
		out["_embedded"] = embedded
	}
	return Project(out, opts.Fields), nil
}

// TrialsOf lists published trials referencing a protocol
func (s *Shaper) TrialsOf(ctx context.Context, protocolID int64) ([]*content.Record, error) {
	trials, _, err := s.store.Query(ctx, content.Query{
		Kind:       content.KindTrial,
		Statuses:   []content.Status{content.StatusPublish},
		OrderBy:    content.OrderByDate,
		Descending: true,
		MetaEquals: map[string]string{content.MetaProtocolID: strconv.FormatInt(protocolID, 10)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list trials of protocol %d: %w", protocolID, err)
	}
	return trials, nil
}

// ProtocolOf resolves a trial's protocol. It returns nil when the reference
// is missing or does not point at a protocol.
func (s *Shaper) ProtocolOf(ctx context.Context, trial *content.Record) (*content.Record, error) {
	raw, _ := trial.MetaValue(content.MetaProtocolID)
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return nil, nil
	}
	protocol, err := s.store.Get(ctx, id)
	if content.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load protocol %d: %w", id, err)
	}
	if protocol.Kind != content.KindProtocol {
		return nil, nil
	}
	return protocol, nil
}

// Project keeps only the requested top-level keys, and with dot notation the
// requested keys of object values. No fields means no projection.
func Project(in map[string]any, fields []string) map[string]any {
	if len(fields) == 0 {
		return in
	}

	out := make(map[string]any)
	whole := make(map[string]bool)
	for _, f := range fields {
		if strings.Contains(f, ".") {
			continue
		}
		if v, ok := in[f]; ok {
			out[f] = v
			whole[f] = true
		}
	}

	for _, f := range fields {
		top, sub, nested := strings.Cut(f, ".")
		if !nested || whole[top] {
			continue
		}
		obj, ok := in[top].(map[string]any)
		if !ok {
			continue
		}
		v, ok := obj[sub]
		if !ok {
			continue
		}
		partial, _ := out[top].(map[string]any)
		if partial == nil {
			partial = make(map[string]any)
			out[top] = partial
		}
		partial[sub] = v
	}
	return out
}

func shapeMeta(rec *content.Record) map[string]any {
	fields := content.MetaFields(rec.Kind)
	meta := make(map[string]any, len(fields))
	for _, f := range fields {
		raw, ok := rec.MetaValue(f.Key)
		if !ok {
			meta[f.Key] = ""
			continue
		}
		meta[f.Key] = content.Coerce(f.Type, raw)
	}
	return meta
}

func shapeTaxonomies(rec *content.Record) map[string]any {
	out := make(map[string]any, len(content.Taxonomies))
	for _, tax := range content.Taxonomies {
		terms := rec.Terms[tax.Name]
		if terms == nil {
			terms = []content.Term{}
		}
		out[tax.Name] = terms
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
