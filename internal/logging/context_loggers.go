package logging

import (
	"context"
	"net/http"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

type contextLoggersKey struct{}

// GlobalContextLoggersMiddleware attaches loggers to each request context, for handlers that do not
// otherwise have access to them.
func GlobalContextLoggersMiddleware(loggers ldlog.Loggers) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := context.WithValue(req.Context(), contextLoggersKey{}, loggers)
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	}
}

// GetGlobalContextLoggers returns the loggers attached by GlobalContextLoggersMiddleware, or disabled
// loggers if there are none.
func GetGlobalContextLoggers(ctx context.Context) ldlog.Loggers {
	if loggers, ok := ctx.Value(contextLoggersKey{}).(ldlog.Loggers); ok {
		return loggers
	}
	return ldlog.NewDisabledLoggers()
}
