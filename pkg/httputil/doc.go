// Package httputil provides HTTP helpers shared by the API server: JSON and
// YAML writers, the error body writer, request parsing and the common
// middleware chain.
//
// Error responses always carry the {code, message, data:{status}} body:
//
//	if err := svc.Delete(ctx, req); err != nil {
//		httputil.WriteError(w, err)
//		return
//	}
//
// Middleware:
//
//	handler := httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//		httputil.RecoveryMiddleware(logger),
//		httputil.CORSMiddleware(origins),
//		httputil.MaxBytesMiddleware(1<<20),
//	)(router)
package httputil
