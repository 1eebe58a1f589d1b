// Package query translates list request parameters into content store queries.
package query

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/openveil/openveil/pkg/content"
)

const (
	DefaultPerPage = 10
	MaxPerPage     = 100
)

// List is a parsed list request
type List struct {
	Page    int
	PerPage int
	Query   content.Query
}

var orderFields = map[string]content.OrderField{
	"id":       content.OrderByID,
	"title":    content.OrderByTitle,
	"date":     content.OrderByDate,
	"modified": content.OrderByModified,
	"author":   content.OrderByAuthor,
}

// Build parses pagination, sorting, taxonomy filters, search and the trial
// protocol filter. Callers set the status restriction.
func Build(kind content.Kind, params url.Values) List {
	perPage := clampPerPage(params.Get("per_page"))
	page := parsePositive(params.Get("page"), 1)

	offset := (page - 1) * perPage
	if explicit := parsePositive(params.Get("offset"), 0); explicit > 0 {
		offset = explicit
	}

	q := content.Query{
		Kind:   kind,
		Limit:  perPage,
		Offset: offset,
		Search: SanitizeSearch(params.Get("search")),
	}
	applyOrder(&q, params.Get("orderby"), params.Get("order"))
	q.TaxFilters = taxFilters(params)

	if kind == content.KindTrial {
		if pid, err := strconv.ParseInt(strings.TrimSpace(params.Get("protocol_id")), 10, 64); err == nil && pid > 0 {
			q.MetaEquals = map[string]string{content.MetaProtocolID: strconv.FormatInt(pid, 10)}
		}
	}

	return List{Page: page, PerPage: perPage, Query: q}
}

func clampPerPage(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return DefaultPerPage
	}
	if n > MaxPerPage {
		return MaxPerPage
	}
	return n
}

func parsePositive(raw string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return def
	}
	return n
}

func applyOrder(q *content.Query, orderby, order string) {
	q.Descending = !strings.EqualFold(strings.TrimSpace(order), "ASC")

	orderby = strings.TrimSpace(orderby)
	if key, ok := strings.CutPrefix(orderby, "meta."); ok && key != "" && !content.IsPrivateMeta(key) {
		q.OrderBy = content.OrderByMeta
		q.OrderMetaKey = key
		q.OrderNumeric = content.NumericMetaKeys[key]
		return
	}
	if field, ok := orderFields[strings.ToLower(orderby)]; ok {
		q.OrderBy = field
		return
	}
	q.OrderBy = content.OrderByDate
}

func taxFilters(params url.Values) []content.TaxFilter {
	var filters []content.TaxFilter
	for _, tax := range content.Taxonomies {
		if values := splitList(params.Get(tax.Name)); len(values) > 0 {
			filters = append(filters, content.TaxFilter{Taxonomy: tax.Name, Match: content.MatchName, Values: values})
			continue
		}
		if values := splitList(params.Get(tax.Name + "_slug")); len(values) > 0 {
			filters = append(filters, content.TaxFilter{Taxonomy: tax.Name, Match: content.MatchSlug, Values: values})
		}
	}
	return filters
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

var (
	tagPattern   = regexp.MustCompile(`<[^>]*>`)
	spacePattern = regexp.MustCompile(`\s+`)
)

// SanitizeSearch strips markup and control characters from a search term
func SanitizeSearch(raw string) string {
	s := tagPattern.ReplaceAllString(raw, "")
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\t' && r != '\n' {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(spacePattern.ReplaceAllString(s, " "))
}
