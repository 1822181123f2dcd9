package web

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"penguinboard/internal/metrics"
	"penguinboard/internal/platform/logging"
	platformotel "penguinboard/internal/platform/otel"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

// Instrument wraps next with a request span, an OpHTTPRequest observation and
// a debug access log line. 5xx responses count as failures.
func Instrument(next http.Handler, recorder metrics.Recorder, logger logging.Logger) http.Handler {
	recorder = metrics.OrNop(recorder)
	logger = logging.OrNop(logger)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := platformotel.Tracer().Start(r.Context(), "http "+r.Method)
		defer span.End()
		span.SetAttributes(attribute.String("http.method", r.Method), attribute.String("http.target", r.URL.Path))

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r.WithContext(ctx))
		elapsed := time.Since(start)

		span.SetAttributes(attribute.Int("http.status_code", rec.status))
		if rec.status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(rec.status))
		}
		recorder.Observe(ctx, metrics.OpHTTPRequest, rec.status < http.StatusInternalServerError, elapsed)
		logger.Debug("http request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", elapsed)
	})
}
