package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"

	ctxutil "github.com/sasp-edomex/scil-auditoria/internal/infrastructure/context"
	"github.com/sasp-edomex/scil-auditoria/internal/infrastructure/security"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// AuditConfig controls how much of a mutating request AuditLogger records.
type AuditConfig struct {
	Enabled         bool
	LogRequestBody  bool
	LogResponseBody bool
	MaxBodySize     int
}

// AuditLogger returns a middleware that records a compliance trail for
// state-changing requests (everything but GET/HEAD), e.g. PUT /solventacion.
// SCIL is itself an oversight tool, so its own mutations get the same
// sanitized-header/body trail the teacher once kept for outbound provider
// calls (internal/infrastructure/security). Sensitive headers and JSON
// fields are redacted before anything reaches the log.
func AuditLogger(log *slog.Logger, cfg AuditConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !cfg.Enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}

			requestID := chimw.GetReqID(r.Context())
			correlationID := ctxutil.GetCorrelationID(r.Context())
			if correlationID == "" {
				correlationID = requestID
			}

			attrs := []any{
				"method", r.Method,
				"path", security.SanitizeURL(r.URL.String()),
				"correlation_id", correlationID,
				"headers", security.SanitizeHeaders(r.Header),
			}

			if cfg.LogRequestBody && r.Body != nil {
				body, err := io.ReadAll(io.LimitReader(r.Body, int64(cfg.MaxBodySize)+1))
				if err == nil {
					r.Body = io.NopCloser(combineReader(body, r.Body))
					attrs = append(attrs, "request_body", security.SanitizeBody(body, cfg.MaxBodySize))
				}
			}

			rw := &auditResponseWriter{ResponseWriter: w, statusCode: http.StatusOK, captureBody: cfg.LogResponseBody, maxBodySize: cfg.MaxBodySize}
			next.ServeHTTP(rw, r)

			attrs = append(attrs, "status", rw.statusCode)
			if cfg.LogResponseBody {
				attrs = append(attrs, "response_body", security.SanitizeBody(rw.captured, cfg.MaxBodySize))
			}

			log.Info("audit trail", attrs...)
		})
	}
}

// combineReader lets the downstream handler still read the body after the
// audit middleware has consumed it for logging.
func combineReader(consumed []byte, rest io.Reader) io.Reader {
	return io.MultiReader(bytes.NewReader(consumed), rest)
}

type auditResponseWriter struct {
	http.ResponseWriter
	statusCode  int
	captureBody bool
	captured    []byte
	maxBodySize int
}

func (rw *auditResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *auditResponseWriter) Write(b []byte) (int, error) {
	if rw.statusCode == 0 {
		rw.statusCode = http.StatusOK
	}
	if rw.captureBody && len(rw.captured) < rw.maxBodySize {
		remaining := rw.maxBodySize - len(rw.captured)
		if remaining > len(b) {
			remaining = len(b)
		}
		rw.captured = append(rw.captured, b[:remaining]...)
	}
	return rw.ResponseWriter.Write(b)
}
