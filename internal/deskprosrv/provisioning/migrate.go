package provisioning

import (
	"context"

	"github.com/rs/zerolog/log"
)

// MigrationResult is the outcome of applying the tenant schema to one tenant.
type MigrationResult struct {
	Slug string
	Err  error
}

// ApplySchema loads the alias of an active tenant and applies the tenant
// schema to its database.
func (o *Orchestrator) ApplySchema(ctx context.Context, slug string) error {
	alias, err := o.Loader().Ensure(ctx, slug)
	if err != nil {
		return err
	}
	return o.Schema.Apply(ctx, alias)
}

// MigrateAll applies the tenant schema to every active tenant. A failure is
// recorded against its tenant and the run moves on to the next one.
func (o *Orchestrator) MigrateAll(ctx context.Context) ([]MigrationResult, error) {
	tenants, err := o.Tenants.ListTenants(ctx, true)
	if err != nil {
		return nil, err
	}
	results := make([]MigrationResult, 0, len(tenants))
	for _, t := range tenants {
		err := o.ApplySchema(ctx, t.Slug)
		if err != nil {
			log.Ctx(ctx).Error().Err(err).Str("slug", t.Slug).Msg("tenant migration failed")
		} else {
			log.Ctx(ctx).Info().Str("slug", t.Slug).Msg("tenant migrated")
		}
		results = append(results, MigrationResult{Slug: t.Slug, Err: err})
	}
	return results, nil
}
