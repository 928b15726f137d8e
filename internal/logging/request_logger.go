package logging

import (
	"net/http"
)

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten uint64
}

func (w *loggingResponseWriter) Write(data []byte) (int, error) {
	if w.statusCode == 0 {
		w.WriteHeader(http.StatusOK)
	}
	w.bytesWritten += uint64(len(data))
	return w.ResponseWriter.Write(data)
}

func (w *loggingResponseWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// RequestLoggerMiddleware logs every request at Debug level, using the loggers attached by
// GlobalContextLoggersMiddleware.
func RequestLoggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		loggers := GetGlobalContextLoggers(req.Context())
		if !loggers.IsDebugEnabled() {
			next.ServeHTTP(w, req)
			return
		}
		lw := &loggingResponseWriter{ResponseWriter: w}
		next.ServeHTTP(lw, req)
		loggers.Debugf("Request: method=%s url=%s status=%d bytes=%d",
			req.Method, req.URL, lw.statusCode, lw.bytesWritten)
	})
}
