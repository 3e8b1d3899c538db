package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/softflow/deskpro/internal/common/apperrors"
	"github.com/softflow/deskpro/internal/common/httpx"
	"github.com/softflow/deskpro/internal/deskprosrv/auth"
	"github.com/softflow/deskpro/internal/deskprosrv/telemetry"
	"github.com/softflow/deskpro/internal/deskprosrv/tenantrouter"
)

const (
	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"

	authHeaderPrefix = "Bearer "
)

// PublicPaths are served without tenant resolution. Entries match as
// path prefixes.
var PublicPaths = []string{
	"/api/tenants/",
	"/api/auth/login",
	"/api/auth/logout",
	"/api/auth/me",
	"/api/docs",
	"/api/openapi.json",
	"/healthz",
	"/version",
	"/metrics",
}

// AliasLoader resolves a tenant slug to a registered alias.
type AliasLoader interface {
	Ensure(ctx context.Context, slug string) (string, error)
}

type TenantGate struct {
	decoder     auth.Decoder
	loader      AliasLoader
	publicPaths []string
}

func NewTenantGate(decoder auth.Decoder, loader AliasLoader, publicPaths ...string) *TenantGate {
	if len(publicPaths) == 0 {
		publicPaths = PublicPaths
	}
	return &TenantGate{
		decoder:     decoder,
		loader:      loader,
		publicPaths: publicPaths,
	}
}

func (g *TenantGate) isPublic(path string) bool {
	for _, p := range g.publicPaths {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// Handler installs a fresh tenant scope for each request and, outside the
// public paths, fills it with the alias of the tenant named by the
// caller's token. The alias is cleared when the request finishes, on every
// path.
func (g *TenantGate) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := tenantrouter.NewScope(r.Context())
		defer tenantrouter.ClearAlias(ctx)

		if g.isPublic(r.URL.Path) {
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		ctx, err := g.resolve(ctx, r)
		if err != nil {
			reject(ctx, w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (g *TenantGate) resolve(ctx context.Context, r *http.Request) (context.Context, error) {
	token := Credential(r)
	if token == "" {
		return ctx, auth.ErrNotAuthenticated
	}
	claims, err := g.decoder.Decode(token)
	if err != nil {
		log.Ctx(ctx).Debug().Err(err).Msg("token rejected")
		return ctx, err
	}
	if claims.TenantSlug == "" {
		return ctx, auth.ErrMissingTenantClaim
	}
	alias, err := g.loader.Ensure(ctx, claims.TenantSlug)
	if err != nil {
		return ctx, err
	}
	if err := tenantrouter.SetAlias(ctx, alias); err != nil {
		return ctx, err
	}
	ctx = auth.WithClaims(ctx, claims)
	ctx = log.Ctx(ctx).With().Str("tenant", claims.TenantSlug).Logger().WithContext(ctx)
	return ctx, nil
}

// Credential returns the access token from the access_token cookie, or
// from a bearer Authorization header when there is no cookie.
func Credential(r *http.Request) string {
	if c, err := r.Cookie(AccessTokenCookie); err == nil && c.Value != "" {
		return c.Value
	}
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, authHeaderPrefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(h, authHeaderPrefix))
}

func reject(ctx context.Context, w http.ResponseWriter, err error) {
	reason := "internal"
	var appErr apperrors.Error
	if errors.As(err, &appErr) && appErr.Reason() != "" {
		reason = appErr.Reason()
	}
	telemetry.Default.GateRejections.WithLabelValues(reason).Inc()
	if apperrors.StatusCodeOf(err) >= http.StatusInternalServerError || reason == "internal" {
		log.Ctx(ctx).Error().Err(err).Msg("tenant resolution failed")
	} else {
		log.Ctx(ctx).Debug().Str("reason", reason).Msg("request rejected")
	}
	httpx.SendError(w, err)
}
