package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/openveil/openveil/pkg/apierr"
	"github.com/openveil/openveil/pkg/content"
	"github.com/openveil/openveil/pkg/httputil"
	"github.com/openveil/openveil/pkg/middleware"
	"github.com/openveil/openveil/pkg/observability"
	"github.com/openveil/openveil/pkg/resources"
	"github.com/openveil/openveil/pkg/shape"
)

// DefaultPrefix is the route prefix the API is mounted at
const DefaultPrefix = "/open-veil/v1"

// Options configures a Server
type Options struct {
	Prefix string
	Links  shape.Links
	Logger *observability.Logger
	// Metrics may be nil
	Metrics *observability.Metrics
	// Tokens verifies bearer tokens; nil rejects them
	Tokens middleware.TokenParser
	// ClaimLimiter throttles claim token attempts on PUT /trial/{id}; nil
	// disables throttling
	ClaimLimiter middleware.Limiter
	ClaimWindow  time.Duration
	// TrustedProxies may set the client address through X-Forwarded-For
	TrustedProxies httputil.TrustedProxies
	CORSOrigins    []string
	MaxBodyBytes   int64
	// Tracing wraps the handler with OpenTelemetry HTTP spans
	Tracing bool
}

// Server represents our API server
type Server struct {
	router  *mux.Router
	service *resources.Service
	opts    Options
	now     func() time.Time
}

// NewServer creates a new API server
func NewServer(service *resources.Service, opts Options) *Server {
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	opts.Prefix = "/" + strings.Trim(opts.Prefix, "/")
	if opts.ClaimWindow <= 0 {
		opts.ClaimWindow = time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = observability.NewLogger(observability.InfoLevel, nil)
	}

	s := &Server{
		router:  mux.NewRouter(),
		service: service,
		opts:    opts,
		now:     time.Now,
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	s.router.NotFoundHandler = http.HandlerFunc(noRoute)
	s.router.MethodNotAllowedHandler = http.HandlerFunc(noRoute)

	api := s.router.PathPrefix(s.opts.Prefix).Subrouter()
	api.NotFoundHandler = s.router.NotFoundHandler
	api.MethodNotAllowedHandler = s.router.MethodNotAllowedHandler
	if s.opts.Metrics != nil {
		api.Use(observability.HTTPMetricsMiddleware(s.opts.Metrics, routeTemplate))
	}
	api.Use(middleware.NewAuthMiddleware(s.opts.Tokens).Handler)

	for _, kind := range []content.Kind{content.KindProtocol, content.KindTrial} {
		collection := "/" + string(kind)
		item := collection + "/{id:[0-9]+}"

		api.Handle(collection, s.adapt(s.list(kind))).Methods(http.MethodGet)
		api.Handle(collection, s.adapt(s.create(kind))).Methods(http.MethodPost)
		api.Handle(item, s.adapt(s.get(kind))).Methods(http.MethodGet)
		api.Handle(item, s.updateHandler(kind)).Methods(http.MethodPut)
		api.Handle(item, s.adapt(s.delete(kind))).Methods(http.MethodDelete)
		api.Handle(item+"/csl", s.adapt(s.csl(kind))).Methods(http.MethodGet)
	}

	api.Handle("/schema", s.adapt(s.schema)).Methods(http.MethodGet)
}

// updateHandler throttles claim token attempts on trials
func (s *Server) updateHandler(kind content.Kind) http.Handler {
	h := http.Handler(s.adapt(s.update(kind)))
	if kind == content.KindTrial && s.opts.ClaimLimiter != nil {
		h = middleware.NewClaimRateLimit(s.opts.ClaimLimiter, s.opts.ClaimWindow, s.opts.TrustedProxies, s.opts.Metrics).Handler(h)
	}
	return h
}

// ServeHTTP implements http.Handler without the outer middleware chain
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the router wrapped with recovery, request IDs, logging,
// CORS, body limits and optional tracing
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.router
	h = httputil.ContentTypeMiddleware(h)
	if s.opts.MaxBodyBytes > 0 {
		h = httputil.MaxBytesMiddleware(s.opts.MaxBodyBytes)(h)
	}
	if s.opts.Tracing {
		h = otelhttp.NewHandler(h, "openveil-api",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	}
	return httputil.Chain(
		httputil.RecoveryMiddleware(s.opts.Logger),
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(s.opts.Logger),
		httputil.CORSMiddleware(s.opts.CORSOrigins),
	)(h)
}

// adapt turns a HandlerFunc into an http.Handler
func (s *Server) adapt(h HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		req := &Request{
			PathParams: mux.Vars(r),
			Query:      query,
			Auth:       middleware.GetAuthContext(r),
			ClaimToken: strings.TrimSpace(query.Get("claim_token")),
		}
		if r.Method == http.MethodPost || r.Method == http.MethodPut {
			if err := httputil.ParseJSON(r, &req.Body); err != nil {
				s.writeError(w, r, err)
				return
			}
		}

		resp, err := h(r.Context(), req)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.write(w, resp)
	}
}

func (s *Server) write(w http.ResponseWriter, resp *Response) {
	for k, values := range resp.Headers {
		for _, v := range values {
			w.Header().Add(k, v)
		}
	}
	if len(resp.Links) > 0 {
		w.Header().Set("Link", formatLinks(resp.Links))
	}

	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}

	switch {
	case resp.YAML:
		_ = httputil.WriteYAML(w, status, resp.Body)
	case resp.Raw:
		_ = httputil.WriteJSON(w, status, resp.Body)
	default:
		_ = httputil.WriteJSON(w, status, Envelope{
			Data: resp.Body,
			Meta: EnvelopeMeta{
				Status:     "success",
				Timestamp:  s.now().UTC().Format(time.RFC3339),
				Pagination: resp.Pagination,
			},
		})
	}
}

// writeError renders err and logs the cause of server-side failures
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := httputil.WriteError(w, err)
	if apiErr.Status >= http.StatusInternalServerError {
		observability.FromContext(r.Context()).
			WithError(err).
			WithField("code", apiErr.Code).
			Error("request error")
	}
}

func noRoute(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteError(w, apierr.New(http.StatusNotFound, apierr.CodeNoRoute,
		"No route was found matching the URL and request method."))
}

// routeTemplate labels metrics with the matched path template
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}
