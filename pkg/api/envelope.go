package api

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Link is one entry of the Link header
type Link struct {
	Rel  string
	Href string
}

func formatLinks(links []Link) string {
	parts := make([]string, 0, len(links))
	for _, l := range links {
		parts = append(parts, fmt.Sprintf(`<%s>; rel="%s"`, l.Href, l.Rel))
	}
	return strings.Join(parts, ", ")
}

// Pagination describes the page of a list response
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// Envelope wraps every successful JSON response
type Envelope struct {
	Data any          `json:"data"`
	Meta EnvelopeMeta `json:"meta"`
}

// EnvelopeMeta carries the response status and pagination
type EnvelopeMeta struct {
	Status     string      `json:"status"`
	Timestamp  string      `json:"timestamp"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

// paginationLinks builds first/prev/next/last links for a list page. The
// request query is preserved with page replaced.
func paginationLinks(base string, query url.Values, p Pagination) []Link {
	if p.TotalPages == 0 {
		return nil
	}
	at := func(page int) string {
		q := url.Values{}
		for k, v := range query {
			q[k] = v
		}
		q.Set("page", strconv.Itoa(page))
		q.Del("offset")
		return base + "?" + q.Encode()
	}

	links := []Link{{Rel: "first", Href: at(1)}}
	if p.Page > 1 {
		links = append(links, Link{Rel: "prev", Href: at(min(p.Page-1, p.TotalPages))})
	}
	if p.Page < p.TotalPages {
		links = append(links, Link{Rel: "next", Href: at(p.Page + 1)})
	}
	return append(links, Link{Rel: "last", Href: at(p.TotalPages)})
}
