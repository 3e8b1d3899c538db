package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog/log"
	"github.com/softflow/deskpro/internal/common/httpx"
	"github.com/softflow/deskpro/internal/common/logtrace"
)

// PanicHandler turns a handler panic into a 500 with the generic
// application error body. The stack is logged, never returned.
func PanicHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			log.Ctx(r.Context()).Error().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("request_id", logtrace.RequestIdFromContext(r.Context())).
				Bytes("stack", debug.Stack()).
				Msgf("panic serving request: %v", rec)
			httpx.ErrApplicationError("Unable to process request. Please try again later.").Send(w)
		}()
		next.ServeHTTP(w, r)
	})
}
