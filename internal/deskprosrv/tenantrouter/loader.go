package tenantrouter

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/softflow/deskpro/internal/common/apperrors"
	"github.com/softflow/deskpro/internal/deskprosrv/db/config"
	"github.com/softflow/deskpro/internal/deskprosrv/db/dberror"
	"github.com/softflow/deskpro/internal/deskprosrv/db/models"
	"github.com/softflow/deskpro/internal/deskprosrv/telemetry"
)

var ErrTenantNotFound = apperrors.New("tenant not found").
	SetStatusCode(http.StatusNotFound).
	SetReason("tenant_not_found")

// TenantLookup reads Tenant rows from the control plane.
type TenantLookup interface {
	GetTenantBySlug(ctx context.Context, slug string, activeOnly bool) (*models.Tenant, apperrors.Error)
}

type Decrypter interface {
	Decrypt(value string) (string, error)
}

// ConnConfigFor builds the registry entry for a tenant from its row and the
// decrypted password.
func ConnConfigFor(t *models.Tenant, password, sslmode string) config.ConnConfig {
	port := t.DBPort
	if port == 0 {
		port = config.DefaultPort
	}
	if sslmode == "" {
		sslmode = config.TenantSSLMode
	}
	return config.ConnConfig{
		Host:     t.DBHost,
		Port:     port,
		User:     t.DBUser,
		Password: password,
		DBName:   t.DBName,
		SSLMode:  sslmode,
	}
}

// DefaultMaxAge bounds how long a registered alias is trusted before the
// Tenant row is read again. Tenants deleted by another process stop being
// served once their entry expires.
const DefaultMaxAge = 30 * time.Second

// Loader fills registry misses from the control plane and revalidates
// entries older than MaxAge.
type Loader struct {
	Registry *Registry
	Lookup   TenantLookup
	Codec    Decrypter
	// SSLMode overrides the tenant sslmode, used with the shared dev database.
	SSLMode string
	// MaxAge defaults to DefaultMaxAge.
	MaxAge time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

func (l *Loader) fresh(alias string) (registered, fresh bool) {
	loadedAt, ok := l.Registry.LoadedAt(alias)
	if !ok {
		return false, false
	}
	maxAge := l.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	now := time.Now
	if l.Now != nil {
		now = l.Now
	}
	return true, now().Sub(loadedAt) < maxAge
}

// Ensure returns the alias for slug, loading it from the active Tenant row
// when it is not registered yet or its entry has expired. Unknown and
// inactive tenants yield ErrTenantNotFound and lose any registry entry.
func (l *Loader) Ensure(ctx context.Context, slug string) (string, error) {
	alias := models.AliasForSlug(slug)
	registered, fresh := l.fresh(alias)
	if fresh {
		return alias, nil
	}
	t, err := l.Lookup.GetTenantBySlug(ctx, slug, true)
	if err != nil {
		if errors.Is(err, dberror.ErrNotFound) {
			telemetry.Default.RegistryColdLoads.WithLabelValues("not_found").Inc()
			if registered {
				l.Registry.Unregister(alias)
				log.Ctx(ctx).Info().Str("alias", alias).Msg("tenant no longer exists, alias removed")
			}
			return "", ErrTenantNotFound.Msg("tenant " + slug + " not found")
		}
		telemetry.Default.RegistryColdLoads.WithLabelValues(telemetry.LabelFailure).Inc()
		if registered {
			// keep serving the cached entry through a control plane outage
			log.Ctx(ctx).Warn().Err(err).Str("alias", alias).Msg("unable to revalidate tenant alias")
			return alias, nil
		}
		return "", err
	}
	password, derr := l.Codec.Decrypt(t.DBPassword)
	if derr != nil {
		telemetry.Default.RegistryColdLoads.WithLabelValues(telemetry.LabelFailure).Inc()
		log.Ctx(ctx).Error().Err(derr).Str("slug", slug).Msg("unable to decrypt tenant credentials")
		return "", ErrRoutingConfiguration.MsgErr("unable to load tenant database settings", derr)
	}
	l.Registry.Register(alias, ConnConfigFor(t, password, l.SSLMode))
	telemetry.Default.RegistryColdLoads.WithLabelValues(telemetry.LabelSuccess).Inc()
	log.Ctx(ctx).Info().Str("alias", alias).Msg("tenant alias loaded")
	return alias, nil
}
