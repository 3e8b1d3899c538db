package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/softflow/deskpro/internal/common/httpx"
	"github.com/softflow/deskpro/internal/common/logtrace"
)

const RequestIdHeader = "X-Deskpro-Request-ID"

// RequestLogger is a middleware that logs the request details and adds a unique request ID to the context.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()
		requestID := newRequestId()
		ctx = logtrace.WithRequestId(ctx, requestID)
		// sub-logger with the request id for everything downstream
		ctx = log.With().Str("request_id", requestID).Logger().WithContext(ctx)
		w.Header().Set(RequestIdHeader, requestID)

		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		requestFields := map[string]interface{}{
			"requestURL":    fmt.Sprintf("%s://%s%s", scheme, r.Host, r.RequestURI),
			"requestMethod": r.Method,
			"requestPath":   r.URL.Path,
			"remoteIP":      r.RemoteAddr,
			"proto":         r.Proto,
		}
		log.Ctx(ctx).Info().Fields(requestFields).Msg("")

		rw := httpx.NewResponseWriter(w)
		next.ServeHTTP(rw, r.WithContext(ctx))
		log.Ctx(ctx).Debug().
			Int("status", rw.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request completed")
	})
}

func newRequestId() string {
	u, err := uuid.NewRandom()
	if err == nil {
		return u.String()
	}
	return ""
}
