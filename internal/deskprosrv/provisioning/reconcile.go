package provisioning

import (
	"context"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/softflow/deskpro/internal/deskprosrv/db/models"
	"github.com/softflow/deskpro/internal/deskprosrv/neon"
)

// Orphans lists provider databases named like a tenant database that no
// Tenant row points at. They are left behind when a compensation or a
// deletion could not reach the provider.
func (o *Orchestrator) Orphans(ctx context.Context) ([]neon.Database, error) {
	if o.opts.DevMode || o.Provider == nil {
		return nil, ErrProvisioning.Msg("reconcile is not available in dev mode")
	}
	dbs, err := o.Provider.ListDatabases(ctx)
	if err != nil {
		return nil, err
	}
	tenants, terr := o.Tenants.ListTenants(ctx, false)
	if terr != nil {
		return nil, terr
	}
	known := make(map[string]struct{}, len(tenants))
	for _, t := range tenants {
		known[t.DBName] = struct{}{}
		known[t.Alias()] = struct{}{}
	}
	var orphans []neon.Database
	for _, d := range dbs {
		if !strings.HasPrefix(d.Name, models.TenantAliasPrefix) {
			continue
		}
		if _, ok := known[d.Name]; ok {
			continue
		}
		orphans = append(orphans, d)
	}
	sort.Slice(orphans, func(i, j int) bool { return orphans[i].Name < orphans[j].Name })
	return orphans, nil
}

// DeleteOrphans removes every database returned by Orphans and returns the
// names it removed. It stops at the first provider failure.
func (o *Orchestrator) DeleteOrphans(ctx context.Context) ([]string, error) {
	orphans, err := o.Orphans(ctx)
	if err != nil {
		return nil, err
	}
	var deleted []string
	for _, d := range orphans {
		if err := o.Provider.DeleteDatabase(ctx, d.Name); err != nil {
			return deleted, err
		}
		log.Ctx(ctx).Info().Str("database", d.Name).Msg("orphaned database deleted")
		deleted = append(deleted, d.Name)
	}
	return deleted, nil
}
