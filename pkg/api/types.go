package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/openveil/openveil/pkg/auth"
	"github.com/openveil/openveil/pkg/httputil"
	"github.com/openveil/openveil/pkg/resources"
)

// Request is the router-independent view of an API call
type Request struct {
	PathParams map[string]string
	Query      url.Values
	Body       resources.Payload
	Auth       auth.AuthContext
	ClaimToken string
}

// ID parses the {id} path parameter
func (r *Request) ID() (int64, error) {
	return httputil.ParseID(r.PathParams["id"])
}

// Response is what a handler returns. Body is wrapped in the success
// envelope unless Raw is set.
type Response struct {
	Status     int
	Body       any
	Headers    http.Header
	Links      []Link
	Pagination *Pagination
	Raw        bool
	YAML       bool
}

// HandlerFunc handles one API call
type HandlerFunc func(ctx context.Context, req *Request) (*Response, error)
