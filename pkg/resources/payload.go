package resources

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/openveil/openveil/pkg/apierr"
	"github.com/openveil/openveil/pkg/content"
)

// Payload is the body of a POST or PUT. Absent members stay nil so updates
// can tell "not sent" from "sent empty".
type Payload struct {
	Title         *string                   `json:"title"`
	Body          *string                   `json:"body"`
	Content       *string                   `json:"content"`
	Status        *string                   `json:"status"`
	Meta          map[string]any            `json:"meta"`
	Taxonomies    map[string][]any          `json:"taxonomies"`
	Questionnaire map[string]map[string]any `json:"questionnaire"`
}

// body returns body, falling back to the content alias
func (p Payload) body() *string {
	if p.Body != nil {
		return p.Body
	}
	return p.Content
}

// collectMeta keeps declared, non-private keys and converts them to their
// stored form. With strict set, values are checked against type and range.
func collectMeta(kind content.Kind, in map[string]any, strict bool) (map[string]string, error) {
	out := make(map[string]string, len(in))
	for key, v := range in {
		if content.IsPrivateMeta(key) {
			continue
		}
		field, ok := content.LookupMetaField(kind, key)
		if !ok {
			continue
		}
		raw := content.FormatMetaValue(v)
		if strict {
			if err := content.ValidateMeta(field, raw); err != nil {
				return nil, apierr.BadRequest(apierr.CodeInvalidMeta, err.Error())
			}
		}
		out[key] = raw
	}
	return out, nil
}

// collectTerms converts taxonomy assignments into term references. Numbers
// reference terms by ID, strings by name. Unknown taxonomies are ignored.
func collectTerms(in map[string][]any) map[string][]content.TermRef {
	out := make(map[string][]content.TermRef, len(in))
	for tax, values := range in {
		if !content.IsTaxonomy(tax) {
			continue
		}
		refs := make([]content.TermRef, 0, len(values))
		for _, v := range values {
			if ref, ok := termRef(v); ok {
				refs = append(refs, ref)
			}
		}
		out[tax] = refs
	}
	return out
}

func termRef(v any) (content.TermRef, bool) {
	switch val := v.(type) {
	case json.Number:
		if id, err := val.Int64(); err == nil {
			return content.TermRef{ID: id}, id > 0
		}
		return content.TermRef{Name: val.String()}, true
	case float64:
		if val != math.Trunc(val) || val <= 0 {
			return content.TermRef{}, false
		}
		return content.TermRef{ID: int64(val)}, true
	case int:
		return content.TermRef{ID: int64(val)}, val > 0
	case int64:
		return content.TermRef{ID: val}, val > 0
	case string:
		name := strings.TrimSpace(val)
		return content.TermRef{Name: name}, name != ""
	default:
		return content.TermRef{}, false
	}
}

// termsOf turns references into the Terms field of a new record
func termsOf(refs map[string][]content.TermRef) map[string][]content.Term {
	out := make(map[string][]content.Term, len(refs))
	for tax, list := range refs {
		terms := make([]content.Term, 0, len(list))
		for _, ref := range list {
			terms = append(terms, content.Term{ID: ref.ID, Name: ref.Name})
		}
		out[tax] = terms
	}
	return out
}

// parseProtocolID reads a stored protocol_id value
func parseProtocolID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if ferr != nil || f != math.Trunc(f) {
			return 0, false
		}
		id = int64(f)
	}
	return id, id > 0
}
