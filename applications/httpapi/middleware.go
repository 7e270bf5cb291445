package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/opentcs-go/kernel/internal/kernellog"
)

const requestIDHeader = "X-Request-Id"

// withMethod wraps a handler, enforcing the HTTP method and emitting 405
// otherwise.
func withMethod(method string, fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			methodNotAllowed(w, method)
			return
		}
		fn(w, r)
	}
}

// methodNotAllowed standardizes 405 responses and sets the Allow header.
func methodNotAllowed(w http.ResponseWriter, methods ...string) {
	if len(methods) > 0 {
		w.Header().Set("Allow", strings.Join(methods, ", "))
	}
	w.WriteHeader(http.StatusMethodNotAllowed)
}

// withAuth requires a valid bearer token issued by h.supervisor.Authenticate,
// attaching the authenticated username so handlers can gate on permissions.
func (h *handler) withAuth(fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		auth := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(auth), "bearer ") {
			h.writeError(w, r, http.StatusUnauthorized, errMissingToken)
			return
		}
		token := strings.TrimSpace(auth[len("bearer "):])
		claims, err := h.supervisor.ValidateToken(token)
		if err != nil {
			h.writeError(w, r, http.StatusUnauthorized, err)
			return
		}
		fn(w, r.WithContext(withUsername(r.Context(), claims.Username)))
	}
}

// withMetrics tags the request with a trace ID (echoed back via the
// X-Request-Id header and attached to every log line the handler emits
// through h.log, via kernellog.Logger.WithContext) and, when metrics are
// enabled, records its duration and outcome.
func (h *handler) withMetrics(path string, fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)
		r = r.WithContext(context.WithValue(r.Context(), kernellog.TraceIDKey, requestID))

		if h.metrics == nil {
			fn(w, r)
			return
		}
		h.metrics.IncrementInFlight()
		defer h.metrics.DecrementInFlight()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		fn(rec, r)
		h.metrics.RecordHTTPRequest(r.Method, path, statusClass(rec.status), time.Since(start))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	default:
		return "2xx"
	}
}
