package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/openveil/openveil/pkg/content"
)

func (s *Server) list(kind content.Kind) HandlerFunc {
	return func(ctx context.Context, req *Request) (*Response, error) {
		page, err := s.service.List(ctx, kind, req.Query)
		if err != nil {
			return nil, err
		}

		p := Pagination{
			Page:       page.Page,
			PerPage:    page.PerPage,
			Total:      page.Total,
			TotalPages: page.TotalPages,
		}
		headers := http.Header{}
		headers.Set("X-WP-Total", strconv.Itoa(page.Total))
		headers.Set("X-WP-TotalPages", strconv.Itoa(page.TotalPages))

		return &Response{
			Body:       page.Items,
			Headers:    headers,
			Links:      paginationLinks(s.opts.Links.Collection(kind), req.Query, p),
			Pagination: &p,
		}, nil
	}
}

func (s *Server) get(kind content.Kind) HandlerFunc {
	return func(ctx context.Context, req *Request) (*Response, error) {
		id, err := req.ID()
		if err != nil {
			return nil, err
		}
		item, err := s.service.Get(ctx, kind, id, req.Query, req.Auth, req.ClaimToken)
		if err != nil {
			return nil, err
		}
		return &Response{Body: item}, nil
	}
}

func (s *Server) create(kind content.Kind) HandlerFunc {
	return func(ctx context.Context, req *Request) (*Response, error) {
		item, err := s.service.Create(ctx, kind, req.Body, req.Auth)
		if err != nil {
			return nil, err
		}

		resp := &Response{Status: http.StatusCreated, Body: item}
		if id, ok := item["id"].(int64); ok {
			resp.Headers = http.Header{"Location": []string{s.opts.Links.Self(kind, id)}}
		}
		return resp, nil
	}
}

func (s *Server) update(kind content.Kind) HandlerFunc {
	return func(ctx context.Context, req *Request) (*Response, error) {
		id, err := req.ID()
		if err != nil {
			return nil, err
		}
		item, err := s.service.Update(ctx, kind, id, req.Body, req.Auth, req.ClaimToken)
		if err != nil {
			return nil, err
		}
		return &Response{Body: item}, nil
	}
}

func (s *Server) delete(kind content.Kind) HandlerFunc {
	return func(ctx context.Context, req *Request) (*Response, error) {
		id, err := req.ID()
		if err != nil {
			return nil, err
		}
		deleted, err := s.service.Delete(ctx, kind, id, req.Auth)
		if err != nil {
			return nil, err
		}
		return &Response{Body: deleted}, nil
	}
}

// csl returns the bare CSL item, JSON by default or YAML with ?format=yaml
func (s *Server) csl(kind content.Kind) HandlerFunc {
	return func(ctx context.Context, req *Request) (*Response, error) {
		id, err := req.ID()
		if err != nil {
			return nil, err
		}
		item, err := s.service.CSL(ctx, kind, id, req.Auth, req.ClaimToken)
		if err != nil {
			return nil, err
		}
		return &Response{
			Body: item,
			Raw:  true,
			YAML: req.Query.Get("format") == "yaml",
		}, nil
	}
}

func (s *Server) schema(ctx context.Context, _ *Request) (*Response, error) {
	schema, err := s.service.Schema(ctx)
	if err != nil {
		return nil, err
	}
	return &Response{Body: schema}, nil
}
