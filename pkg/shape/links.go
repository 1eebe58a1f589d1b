package shape

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/openveil/openveil/pkg/content"
)

// Links builds absolute URLs for resources
type Links struct {
	SiteURL string // e.g. https://openveil.example
	APIBase string // e.g. https://openveil.example/open-veil/v1
}

// NewLinks derives the API base from the site URL and route prefix
func NewLinks(siteURL, apiPrefix string) Links {
	site := strings.TrimRight(siteURL, "/")
	return Links{SiteURL: site, APIBase: site + "/" + strings.Trim(apiPrefix, "/")}
}

// Collection is the list endpoint of a kind
func (l Links) Collection(kind content.Kind) string {
	return fmt.Sprintf("%s/%s", l.APIBase, kind)
}

// Self is the item endpoint of a record
func (l Links) Self(kind content.Kind, id int64) string {
	return fmt.Sprintf("%s/%s/%d", l.APIBase, kind, id)
}

// CSL is the citation export endpoint of a record
func (l Links) CSL(kind content.Kind, id int64) string {
	return l.Self(kind, id) + "/csl"
}

// Permalink is the public page of a record
func (l Links) Permalink(kind content.Kind, id int64) string {
	return fmt.Sprintf("%s/%s/%d/", l.SiteURL, kind, id)
}

// ClaimURL is the permalink carrying a claim token
func (l Links) ClaimURL(kind content.Kind, id int64, token string) string {
	return l.Permalink(kind, id) + "?claim_token=" + url.QueryEscape(token)
}

// Results is the public results page of a trial
func (l Links) Results(id int64) string {
	return fmt.Sprintf("%s/trial-results/?trial_id=%d", l.SiteURL, id)
}
