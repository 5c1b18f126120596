package logging

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Headers set by HTTPMiddleware.
const (
	RequestIDHeader  = "X-Request-ID"
	GenerationHeader = "X-Analysis-Generation"
)

const servedKey contextKey = "served"

// served records which analysis generation a response was built from.
type served struct {
	generation uint64
	set        bool
}

// MarkServed records on a request context that the response is built from
// the snapshot of generation. HTTPMiddleware copies it into the
// X-Analysis-Generation header and the request log. Outside the middleware
// it is a no-op.
func MarkServed(ctx context.Context, generation uint64) {
	if s, ok := ctx.Value(servedKey).(*served); ok {
		s.generation, s.set = generation, true
	}
}

// HTTPMiddleware tags each request with a request ID, reports the snapshot
// generation the response came from and logs the outcome. A 503 means no
// analysis has committed yet and is logged as a warning, not a failure.
func HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)

		gen := &served{}
		ctx := context.WithValue(WithRequestID(r.Context(), requestID), servedKey, gen)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK, served: gen}

		start := time.Now()
		DebugContext(ctx, "request started", "method", r.Method, "path", r.URL.Path, "remoteAddr", r.RemoteAddr)
		next.ServeHTTP(rec, r.WithContext(ctx))

		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"durationMs", time.Since(start).Milliseconds(),
		}
		if gen.set {
			attrs = append(attrs, "generation", gen.generation)
		}
		switch {
		case rec.status == http.StatusServiceUnavailable:
			WarnContext(ctx, "request before first analysis", attrs...)
		case rec.status >= 500:
			ErrorContext(ctx, "request failed", attrs...)
		case rec.status >= 400:
			WarnContext(ctx, "request rejected", attrs...)
		default:
			InfoContext(ctx, "request completed", attrs...)
		}
	})
}

// statusRecorder captures the status code and stamps the served generation
// just before the header goes out.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	served      *served
	wroteHeader bool
}

func (rw *statusRecorder) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.wroteHeader = true
	rw.status = code
	if rw.served.set {
		rw.Header().Set(GenerationHeader, strconv.FormatUint(rw.served.generation, 10))
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// Flush implements http.Flusher for the SSE streams.
func (rw *statusRecorder) Flush() {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
