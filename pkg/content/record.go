package content

import (
	"errors"
	"fmt"
	"time"
)

// Kind identifies the resource type of a record
type Kind string

const (
	KindProtocol Kind = "protocol"
	KindTrial    Kind = "trial"
)

// Valid reports whether k is a known resource kind
func (k Kind) Valid() bool {
	return k == KindProtocol || k == KindTrial
}

// Label returns the human readable name of the kind
func (k Kind) Label() string {
	switch k {
	case KindProtocol:
		return "Protocol"
	case KindTrial:
		return "Trial"
	default:
		return string(k)
	}
}

// Status is the publication state of a record
type Status string

const (
	StatusPublish Status = "publish"
	StatusPending Status = "pending"
	StatusDraft   Status = "draft"
)

// ParseStatus validates a status string
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPublish, StatusPending, StatusDraft:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// Private metadata keys. Keys with a leading underscore are never exposed or
// writable through the API.
const (
	MetaClaimToken       = "_claim_token"
	MetaClaimTokenExpiry = "_claim_token_expiry"
	MetaProtocolID       = "protocol_id"
)

// IsPrivateMeta reports whether a metadata key is internal
func IsPrivateMeta(key string) bool {
	return len(key) > 0 && key[0] == '_'
}

// Term is a taxonomy term
type Term struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// TermRef references a term either by ID or by name. Name references create
// the term when it does not exist yet.
type TermRef struct {
	ID   int64
	Name string
}

// Record is a stored Protocol or Trial
type Record struct {
	ID         int64             `json:"id"`
	Kind       Kind              `json:"kind"`
	Title      string            `json:"title"`
	Body       string            `json:"body"`
	AuthorID   int64             `json:"author_id"`
	AuthorName string            `json:"author_name"`
	Status     Status            `json:"status"`
	Date       time.Time         `json:"date"`
	Modified   time.Time         `json:"modified"`
	Meta       map[string]string `json:"meta"`
	Terms      map[string][]Term `json:"terms"`
}

// MetaValue returns a metadata value and whether it was set
func (r *Record) MetaValue(key string) (string, bool) {
	if r.Meta == nil {
		return "", false
	}
	v, ok := r.Meta[key]
	return v, ok
}

// Clone returns a deep copy of the record
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.Meta = make(map[string]string, len(r.Meta))
	for k, v := range r.Meta {
		c.Meta[k] = v
	}
	c.Terms = make(map[string][]Term, len(r.Terms))
	for k, v := range r.Terms {
		c.Terms[k] = append([]Term(nil), v...)
	}
	return &c
}

// PostPatch carries the post-level fields of an update. Nil fields are left
// untouched.
type PostPatch struct {
	Title  *string
	Body   *string
	Status *Status
}

// Empty reports whether the patch changes nothing
func (p PostPatch) Empty() bool {
	return p.Title == nil && p.Body == nil && p.Status == nil
}

// NotFoundError is returned when a record does not exist
type NotFoundError struct {
	ID int64
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("record %d not found", e.ID)
}

// Is lets errors.Is(err, ErrNotFound) match any NotFoundError
func (e NotFoundError) Is(target error) bool {
	_, ok := target.(NotFoundError)
	return ok
}

// ErrNotFound matches every NotFoundError via errors.Is
var ErrNotFound = NotFoundError{}

// IsNotFound reports whether err is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
