// Package tenantrouter decides which physical database serves each data
// operation and keeps the alias registry those decisions resolve against.
package tenantrouter

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/softflow/deskpro/internal/common/apperrors"
	"github.com/softflow/deskpro/internal/deskprosrv/db/config"
	"github.com/softflow/deskpro/internal/deskprosrv/db/dbmanager"
	"github.com/softflow/deskpro/internal/deskprosrv/db/models"
)

type Op int

const (
	OpRead Op = iota
	OpWrite
)

func (o Op) String() string {
	if o == OpWrite {
		return "write"
	}
	return "read"
}

type Category int

const (
	CategoryControlPlane Category = iota + 1
	CategoryTenant
)

var entityCategories = map[models.Entity]Category{
	models.EntityTenant:        CategoryControlPlane,
	models.EntityTenantMember:  CategoryControlPlane,
	models.EntityTenantUser:    CategoryTenant,
	models.EntityTicket:        CategoryTenant,
	models.EntityTicketMessage: CategoryTenant,
}

func CategoryOf(entity models.Entity) (Category, bool) {
	c, ok := entityCategories[entity]
	return c, ok
}

var (
	ErrRoutingConfiguration  = apperrors.New("database routing configuration error").SetStatusCode(http.StatusInternalServerError).SetReason("routing_configuration")
	ErrUnknownAlias          = ErrRoutingConfiguration.New("database alias is not registered")
	ErrCrossDatabaseRelation = apperrors.New("related records live in different databases").SetStatusCode(http.StatusBadRequest).SetReason("cross_database_relation")
)

// Router resolves entities to database aliases and aliases to pools.
// Control plane entities always resolve to the default database. Tenant
// entities resolve to the alias installed in the request context and fail
// when none is installed; there is no fallback database.
type Router struct {
	registry     *Registry
	pools        *dbmanager.Pools
	controlPlane config.ConnConfig
}

func NewRouter(registry *Registry, pools *dbmanager.Pools, controlPlane config.ConnConfig) *Router {
	r := &Router{
		registry:     registry,
		pools:        pools,
		controlPlane: controlPlane,
	}
	registry.OnUnregister(pools.Close)
	return r
}

func (r *Router) Registry() *Registry {
	return r.registry
}

func (r *Router) DBForRead(ctx context.Context, entity models.Entity) (string, error) {
	return r.route(ctx, entity, OpRead)
}

func (r *Router) DBForWrite(ctx context.Context, entity models.Entity) (string, error) {
	return r.route(ctx, entity, OpWrite)
}

func (r *Router) route(ctx context.Context, entity models.Entity, op Op) (string, error) {
	category, ok := entityCategories[entity]
	if !ok {
		err := ErrRoutingConfiguration.Msg(fmt.Sprintf("entity %s has no routing category", entity))
		log.Ctx(ctx).Error().Str("entity", string(entity)).Msg(err.Error())
		return "", err
	}
	if category == CategoryControlPlane {
		return models.ControlPlaneAlias, nil
	}
	alias, ok := AliasFromContext(ctx)
	if !ok {
		err := ErrRoutingConfiguration.Msg(fmt.Sprintf("no tenant database selected for %s of %s", op, entity))
		log.Ctx(ctx).Error().Str("entity", string(entity)).Str("op", op.String()).Msg(err.Error())
		return "", err
	}
	return alias, nil
}

// Conn resolves entity and returns the pool for the resolved alias along
// with the alias itself.
func (r *Router) Conn(ctx context.Context, entity models.Entity, op Op) (*sql.DB, string, error) {
	alias, err := r.route(ctx, entity, op)
	if err != nil {
		return nil, "", err
	}
	db, err := r.ConnForAlias(ctx, alias)
	if err != nil {
		return nil, "", err
	}
	return db, alias, nil
}

// ConnForAlias returns the pool for alias. Tenant aliases must be
// registered.
func (r *Router) ConnForAlias(ctx context.Context, alias string) (*sql.DB, error) {
	if alias == models.ControlPlaneAlias {
		db, err := r.pools.Get(ctx, alias, r.controlPlane)
		if err != nil {
			return nil, ErrRoutingConfiguration.Err(err)
		}
		return db, nil
	}
	cfg, ok := r.registry.Get(alias)
	if !ok {
		err := ErrUnknownAlias.Msg(fmt.Sprintf("database alias %s is not registered", alias))
		log.Ctx(ctx).Error().Str("alias", alias).Msg(err.Error())
		return nil, err
	}
	db, err := r.pools.Get(ctx, alias, cfg)
	if err != nil {
		return nil, ErrRoutingConfiguration.Err(err)
	}
	return db, nil
}

// AllowRelation rejects associating two records that were resolved to
// different databases.
func (r *Router) AllowRelation(db1, db2 string) error {
	if db1 == "" || db2 == "" || db1 != db2 {
		return ErrCrossDatabaseRelation.Msg(fmt.Sprintf("cannot relate records from %q and %q", db1, db2))
	}
	return nil
}

// AllowMigrate reports whether entity's tables belong on alias.
func (r *Router) AllowMigrate(alias string, entity models.Entity) bool {
	switch entityCategories[entity] {
	case CategoryControlPlane:
		return alias == models.ControlPlaneAlias
	case CategoryTenant:
		return models.IsTenantAlias(alias)
	}
	return false
}
