// Package api exposes the Protocol and Trial resources over HTTP.
//
// Handlers are written against Request and Response rather than the router,
// and gorilla/mux only adapts them. Successful responses are wrapped in an
// envelope:
//
//	{"data": ..., "meta": {"status": "success", "timestamp": "...", "pagination": {...}}}
//
// Errors use the {code, message, data:{status}} body from pkg/apierr. CSL
// exports are written bare, as JSON or as YAML with ?format=yaml.
//
// # Routes
//
// Mounted under the configured prefix (default /open-veil/v1):
//
//	GET    /protocol              list published protocols
//	POST   /protocol              create
//	GET    /protocol/{id}         fetch
//	PUT    /protocol/{id}         partial update
//	DELETE /protocol/{id}         delete, refused while trials reference it
//	GET    /protocol/{id}/csl     citation export
//	GET    /trial ...             same set for trials; list filters on protocol_id
//	GET    /schema                taxonomies, meta fields, questionnaire and settings
//
// # Usage
//
//	srv := api.NewServer(service, api.Options{
//		Links:   shape.NewLinks(cfg.Site.URL, cfg.Server.APIPrefix),
//		Tokens:  issuer,
//		Metrics: metrics,
//	})
//	http.ListenAndServe(":8080", srv.Handler())
package api
