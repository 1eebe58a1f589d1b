// Package csl renders protocols and trials as Citation Style Language items
// for reference managers. Items marshal to CSL-JSON and CSL-YAML.
package csl

import (
	"fmt"
	"strings"
	"time"

	"github.com/openveil/openveil/pkg/content"
)

// Item is one CSL bibliographic entry
type Item struct {
	ID             string `json:"id" yaml:"id"`
	Type           string `json:"type" yaml:"type"`
	Title          string `json:"title" yaml:"title"`
	Author         []Name `json:"author,omitempty" yaml:"author,omitempty"`
	Issued         *Date  `json:"issued,omitempty" yaml:"issued,omitempty"`
	URL            string `json:"URL,omitempty" yaml:"URL,omitempty"`
	Publisher      string `json:"publisher,omitempty" yaml:"publisher,omitempty"`
	ContainerTitle string `json:"container-title,omitempty" yaml:"container-title,omitempty"`
}

// Name is a person's name in CSL form
type Name struct {
	Family  string `json:"family,omitempty" yaml:"family,omitempty"`
	Given   string `json:"given,omitempty" yaml:"given,omitempty"`
	Literal string `json:"literal,omitempty" yaml:"literal,omitempty"`
}

// Date is a CSL date using date-parts
type Date struct {
	DateParts [][]int `json:"date-parts" yaml:"date-parts"`
}

// Source carries the context a record alone does not hold
type Source struct {
	URL       string
	Publisher string
	// ContainerTitle is the parent protocol title for trials
	ContainerTitle string
}

// FromRecord converts a stored record into a CSL item
func FromRecord(rec *content.Record, src Source) Item {
	item := Item{
		ID:             fmt.Sprintf("%s-%d", rec.Kind, rec.ID),
		Type:           "article",
		Title:          rec.Title,
		URL:            src.URL,
		Publisher:      src.Publisher,
		ContainerTitle: src.ContainerTitle,
	}

	if name := ParseAuthorName(rec.AuthorName); name != (Name{}) {
		item.Author = []Name{name}
	}

	if !rec.Date.IsZero() {
		item.Issued = IssuedOn(rec.Date)
	}

	return item
}

// IssuedOn converts a timestamp to a [[year, month, day]] date in UTC
func IssuedOn(t time.Time) *Date {
	t = t.UTC()
	return &Date{DateParts: [][]int{{t.Year(), int(t.Month()), t.Day()}}}
}

// ParseAuthorName splits a display name on its last space: everything before
// is given, the last token is family. Single-token names use the literal field.
func ParseAuthorName(name string) Name {
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return Name{}
	}
	idx := strings.LastIndex(name, " ")
	if idx < 0 {
		return Name{Literal: name}
	}
	return Name{
		Given:  name[:idx],
		Family: name[idx+1:],
	}
}
