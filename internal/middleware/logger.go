package middleware

import (
	"log"
	"net/http"
	"time"
)

// Logger writes one access-log line per request: method, path, status
// and elapsed time. Webhook and settlement latencies show up here, so
// keep it first after Recovery in the chain.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)

		log.Printf("%s %s %d %s",
			r.Method,
			r.URL.Path,
			ww.status,
			time.Since(start).Round(time.Millisecond),
		)
	})
}

// statusWriter records the status code the handler chain wrote.
// Handlers that never call WriteHeader are logged as 200.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
