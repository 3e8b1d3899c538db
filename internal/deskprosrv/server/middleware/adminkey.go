package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/softflow/deskpro/internal/common/httpx"
	"github.com/softflow/deskpro/internal/deskprosrv/telemetry"
)

const AdminKeyHeader = "X-Admin-Key"

// AdminKey admits requests whose X-Admin-Key header equals key. An empty
// key rejects everything.
func AdminKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(AdminKeyHeader)
			if key == "" || got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				log.Ctx(r.Context()).Debug().Msg("admin key rejected")
				telemetry.Default.GateRejections.WithLabelValues("invalid_admin_key").Inc()
				httpx.SendError(w, &httpx.Error{
					Description: "invalid or missing admin key",
					Reason:      "invalid_admin_key",
					StatusCode:  http.StatusUnauthorized,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
