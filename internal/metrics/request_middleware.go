package metrics

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
)

// RequestCountMiddleware counts each request by its route template, using the given OpenCensus context.
func RequestCountMiddleware(ctx context.Context) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			route := req.URL.Path
			if current := mux.CurrentRoute(req); current != nil {
				if template, err := current.GetPathTemplate(); err == nil {
					route = template
				}
			}
			RecordRequest(ctx, route, req.Method)
			next.ServeHTTP(w, req)
		})
	}
}
