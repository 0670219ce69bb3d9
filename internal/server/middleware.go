package server

import (
	"net/http"
	"time"

	eventbus "github.com/hanpama/contentgraph/internal/eventbus"
	events "github.com/hanpama/contentgraph/internal/events"
	reqid "github.com/hanpama/contentgraph/internal/reqid"
)

// Observe assigns the request id, echoes it in the response and publishes
// HTTPStart and HTTPFinish around next.
func Observe(bus *eventbus.Bus) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, rid := reqid.FromRequest(r)
			r = r.WithContext(ctx)
			w.Header().Set(reqid.Header, rid)

			start := time.Now()
			eventbus.Publish(ctx, bus, events.HTTPStart{Request: r})
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			eventbus.Publish(ctx, bus, events.HTTPFinish{Request: r, Status: sw.status, Duration: time.Since(start)})
		})
	}
}

// Chain wraps h with mws; the first middleware is the outermost.
func Chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
