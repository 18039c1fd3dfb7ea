package trace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	applog "budget/internal/log"
)

type ctxKey struct{}

// HeaderRequestID is echoed back on every response.
const HeaderRequestID = "X-Request-ID"

// Metrics summarises the requests seen so far.
type Metrics struct {
	TotalRequests   int64
	ClientErrors    int64
	ServerErrors    int64
	LastDurationMs  int64
	TotalDurationMs int64
}

// Middleware assigns request ids and logs request start and completion.
type Middleware struct {
	extractIP func(*http.Request) string

	total      atomic.Int64
	clientErrs atomic.Int64
	serverErrs atomic.Int64
	lastMs     atomic.Int64
	totalMs    atomic.Int64
}

// NewMiddleware creates a trace middleware. extractIP may be nil.
func NewMiddleware(extractIP func(*http.Request) string) *Middleware {
	return &Middleware{extractIP: extractIP}
}

// Handler wraps next. The request logger in the context gains request_id
// and client_ip fields for every downstream log call.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get(HeaderRequestID)
		if !validRequestID(requestID) {
			requestID = GenerateRequestID()
		}
		clientIP := ""
		if m.extractIP != nil {
			clientIP = m.extractIP(r)
		}

		logger := applog.FromContext(r.Context()).
			WithComponent(applog.ComponentHTTP).
			With(applog.FieldRequestID, requestID, applog.FieldClientIP, clientIP)
		ctx := context.WithValue(r.Context(), ctxKey{}, requestID)
		ctx = applog.IntoContext(ctx, logger)
		r = r.WithContext(ctx)

		w.Header().Set(HeaderRequestID, requestID)
		logger.Debug("HTTP request started",
			applog.NewFields().WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.UserAgent()).ToSlice()...)

		m.total.Add(1)
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		elapsed := time.Since(start).Milliseconds()
		m.lastMs.Store(elapsed)
		m.totalMs.Add(elapsed)

		level := slog.LevelInfo
		switch {
		case rw.status >= 500:
			level = slog.LevelError
			m.serverErrs.Add(1)
		case rw.status >= 400:
			level = slog.LevelWarn
			m.clientErrs.Add(1)
		}

		fields := applog.NewFields().
			WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, "").
			WithHTTPResponse(rw.status, elapsed)
		logger.Slog().Log(ctx, level, "HTTP request completed", fields.ToSlice()...)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (rw *statusRecorder) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.status = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

func (rw *statusRecorder) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// GenerateRequestID returns "req_" followed by 16 hex characters.
func GenerateRequestID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(b)
}

func validRequestID(id string) bool {
	if id == "" || len(id) > 64 {
		return false
	}
	for _, c := range id {
		if !(c == '-' || c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z') {
			return false
		}
	}
	return true
}

// RequestID returns the id assigned to the request, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

func (m *Middleware) GetMetrics() Metrics {
	return Metrics{
		TotalRequests:   m.total.Load(),
		ClientErrors:    m.clientErrs.Load(),
		ServerErrors:    m.serverErrs.Load(),
		LastDurationMs:  m.lastMs.Load(),
		TotalDurationMs: m.totalMs.Load(),
	}
}
