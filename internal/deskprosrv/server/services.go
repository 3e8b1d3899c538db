package server

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/softflow/deskpro/internal/deskprosrv/auth"
	"github.com/softflow/deskpro/internal/deskprosrv/config"
	"github.com/softflow/deskpro/internal/deskprosrv/db"
	dbconfig "github.com/softflow/deskpro/internal/deskprosrv/db/config"
	"github.com/softflow/deskpro/internal/deskprosrv/db/dbmanager"
	"github.com/softflow/deskpro/internal/deskprosrv/db/models"
	"github.com/softflow/deskpro/internal/deskprosrv/neon"
	"github.com/softflow/deskpro/internal/deskprosrv/provisioning"
	"github.com/softflow/deskpro/internal/deskprosrv/schema"
	"github.com/softflow/deskpro/internal/deskprosrv/secretcodec"
	"github.com/softflow/deskpro/internal/deskprosrv/tenantrouter"
)

// Services is the dependency graph shared by the HTTP server and the admin
// CLI.
type Services struct {
	Registry     *tenantrouter.Registry
	Pools        *dbmanager.Pools
	Router       *tenantrouter.Router
	ControlPlane db.ControlPlane
	TenantData   db.TenantData
	Schema       schema.Applicator
	Tokens       *auth.TokenService
	Codec        *secretcodec.Codec
	Provider     neon.Provider
	Orchestrator *provisioning.Orchestrator
	Loader       *tenantrouter.Loader
}

type serviceOptions struct {
	opener   dbmanager.Opener
	provider neon.Provider
}

type ServiceOption func(*serviceOptions)

// WithOpener replaces the database/sql opener, used by tests.
func WithOpener(o dbmanager.Opener) ServiceOption {
	return func(so *serviceOptions) { so.opener = o }
}

// WithProvider replaces the managed database provider.
func WithProvider(p neon.Provider) ServiceOption {
	return func(so *serviceOptions) { so.provider = p }
}

// NewServices builds every service from the loaded configuration. Nothing
// connects to a database until first use.
func NewServices(opts ...ServiceOption) (*Services, error) {
	cfg := config.Config()
	if cfg == nil {
		return nil, errors.New("configuration is not loaded")
	}
	so := &serviceOptions{}
	for _, o := range opts {
		o(so)
	}

	var poolOpts []dbmanager.Option
	if so.opener != nil {
		poolOpts = append(poolOpts, dbmanager.WithOpener(so.opener))
	}
	s := &Services{
		Registry: tenantrouter.NewRegistry(),
		Pools:    dbmanager.NewPools(poolOpts...),
	}
	s.Router = tenantrouter.NewRouter(s.Registry, s.Pools, dbconfig.ControlPlane())
	s.ControlPlane = db.NewControlPlane(s.Router)
	s.TenantData = db.NewTenantData(s.Router)
	s.Schema = schema.NewApplicator(s.Router)

	var err error
	if s.Tokens, err = auth.NewTokenServiceFromConfig(cfg); err != nil {
		return nil, err
	}
	if s.Codec, err = secretcodec.New(cfg.FieldEncryptionKey); err != nil {
		return nil, err
	}

	switch {
	case so.provider != nil:
		s.Provider = so.provider
	case !cfg.TenantDevMode:
		client, err := neon.NewClientFromConfig(cfg)
		if err != nil {
			return nil, err
		}
		s.Provider = client
	}

	s.Orchestrator, err = provisioning.New(provisioning.Deps{
		Tenants:  s.ControlPlane,
		Users:    s.TenantData,
		Provider: s.Provider,
		Codec:    s.Codec,
		Registry: s.Registry,
		Conns:    s.Router,
		Schema:   s.Schema,
	}, provisioning.Options{
		DevMode:    cfg.TenantDevMode,
		DevDB:      dbconfig.DevTenant(),
		Production: cfg.Production,
	})
	if err != nil {
		return nil, err
	}
	s.Loader = s.Orchestrator.Loader()
	return s, nil
}

// ApplyControlPlaneSchema brings the control plane tables up to date.
func (s *Services) ApplyControlPlaneSchema(ctx context.Context) error {
	if err := s.Schema.Apply(ctx, models.ControlPlaneAlias); err != nil {
		return err
	}
	log.Ctx(ctx).Info().Msg("control plane schema is up to date")
	return nil
}

// Ping checks that the control plane database answers.
func (s *Services) Ping(ctx context.Context) error {
	conn, err := s.Router.ConnForAlias(ctx, models.ControlPlaneAlias)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return conn.PingContext(ctx)
}

func (s *Services) Close() {
	s.Pools.CloseAll()
}
