// Package provisioning runs the tenant creation and deletion sagas.
//
// Creation reserves an inactive Tenant row, gives it a database, applies
// the tenant schema, creates the first admin and only then activates the
// row. A failure at any step undoes what can be undone and deletes the
// reserved row so the slug is free again.
package provisioning

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/softflow/deskpro/internal/common/apperrors"
	"github.com/softflow/deskpro/internal/deskprosrv/auth"
	"github.com/softflow/deskpro/internal/deskprosrv/db/config"
	"github.com/softflow/deskpro/internal/deskprosrv/db/dberror"
	"github.com/softflow/deskpro/internal/deskprosrv/db/models"
	"github.com/softflow/deskpro/internal/deskprosrv/neon"
	"github.com/softflow/deskpro/internal/deskprosrv/schema"
	"github.com/softflow/deskpro/internal/deskprosrv/telemetry"
	"github.com/softflow/deskpro/internal/deskprosrv/tenantrouter"
)

// TenantStore is the control plane surface the sagas need.
type TenantStore interface {
	CreateTenant(ctx context.Context, t *models.Tenant) apperrors.Error
	GetTenantBySlug(ctx context.Context, slug string, activeOnly bool) (*models.Tenant, apperrors.Error)
	ListTenants(ctx context.Context, activeOnly bool) ([]*models.Tenant, apperrors.Error)
	UpdateTenantConnection(ctx context.Context, tenantID uuid.UUID, conn models.TenantConnection) apperrors.Error
	ActivateTenant(ctx context.Context, tenantID uuid.UUID) apperrors.Error
	DeleteTenant(ctx context.Context, tenantID uuid.UUID) apperrors.Error
	UpsertTenantMember(ctx context.Context, m *models.TenantMember) apperrors.Error
}

type UserStore interface {
	CreateTenantUser(ctx context.Context, u *models.TenantUser) apperrors.Error
}

type Codec interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(value string) (string, error)
}

// Conns hands out the pool behind a registered alias.
type Conns interface {
	ConnForAlias(ctx context.Context, alias string) (*sql.DB, error)
}

type Deps struct {
	Tenants  TenantStore
	Users    UserStore
	Provider neon.Provider
	Codec    Codec
	Registry *tenantrouter.Registry
	Conns    Conns
	Schema   schema.Applicator
}

type Options struct {
	// DevMode points every tenant at DevDB instead of creating a database.
	DevMode bool
	DevDB   config.ConnConfig
	// Production hides failure causes from API responses.
	Production bool
	// ReadyAttempts and ReadyDelay bound the wait for a new database to
	// accept connections.
	ReadyAttempts uint
	ReadyDelay    time.Duration
}

type Orchestrator struct {
	Deps
	opts     Options
	validate *validator.Validate
}

func New(deps Deps, opts Options) (*Orchestrator, error) {
	if deps.Tenants == nil || deps.Users == nil || deps.Codec == nil || deps.Registry == nil || deps.Conns == nil || deps.Schema == nil {
		return nil, ErrProvisioning.Msg("provisioning dependencies are incomplete")
	}
	if !opts.DevMode && deps.Provider == nil {
		return nil, ErrProvisioning.Msg("a database provider is required outside dev mode")
	}
	if opts.ReadyAttempts == 0 {
		opts.ReadyAttempts = 10
	}
	if opts.ReadyDelay == 0 {
		opts.ReadyDelay = 500 * time.Millisecond
	}
	return &Orchestrator{
		Deps:     deps,
		opts:     opts,
		validate: newValidator(),
	}, nil
}

func (o *Orchestrator) DevMode() bool {
	return o.opts.DevMode
}

// Loader returns a cold path loader backed by this orchestrator's stores.
func (o *Orchestrator) Loader() *tenantrouter.Loader {
	l := &tenantrouter.Loader{
		Registry: o.Registry,
		Lookup:   o.Tenants,
		Codec:    o.Codec,
	}
	if o.opts.DevMode {
		l.SSLMode = o.opts.DevDB.SSLMode
	}
	return l
}

type SignupRequest struct {
	Name          string `json:"name" validate:"required,max=255"`
	Slug          string `json:"slug" validate:"required,slug"`
	AdminEmail    string `json:"admin_email" validate:"required,email,max=254"`
	AdminPassword string `json:"admin_password" validate:"required,max=128"`
	AdminFullName string `json:"admin_full_name" validate:"max=255"`
}

// Signup validates req, reserves the slug and provisions the tenant. On
// any provisioning failure the reserved row is deleted before returning.
func (o *Orchestrator) Signup(ctx context.Context, req SignupRequest) (tenant *models.Tenant, err error) {
	start := time.Now()
	defer func() { observe("create", start, err) }()

	req.Slug = strings.TrimSpace(req.Slug)
	req.AdminEmail = strings.ToLower(strings.TrimSpace(req.AdminEmail))
	if verr := o.validate.Struct(req); verr != nil {
		return nil, ErrInvalidInput.Msg(validationMessage(verr))
	}

	logger := log.Ctx(ctx).With().Str("slug", req.Slug).Logger()
	ctx = logger.WithContext(ctx)

	tenant = &models.Tenant{
		Name:       req.Name,
		Slug:       req.Slug,
		AdminEmail: req.AdminEmail,
	}
	if cerr := o.Tenants.CreateTenant(ctx, tenant); cerr != nil {
		if errors.Is(cerr, dberror.ErrAlreadyExists) {
			return nil, ErrConflict.Msg("slug " + req.Slug + " is already taken")
		}
		return nil, cerr
	}
	logger.Info().Str("tenant_id", tenant.ID.String()).Msg("tenant reserved")

	if perr := o.Provision(ctx, tenant, req.AdminPassword, req.AdminFullName); perr != nil {
		logger.Error().Err(perr).Msg("tenant provisioning failed, releasing slug")
		if derr := o.Tenants.DeleteTenant(context.WithoutCancel(ctx), tenant.ID); derr != nil && !errors.Is(derr, dberror.ErrNotFound) {
			logger.Error().Err(derr).Msg("failed to delete reserved tenant row")
		}
		if o.opts.Production {
			return nil, ErrProvisioningFailed.Err(perr)
		}
		return nil, ErrProvisioningFailed.MsgErr("provisioning failed: "+perr.Error(), perr)
	}
	return tenant, nil
}

// saga tracks what a creation run has done so a failure can undo it.
type saga struct {
	tenant          *models.Tenant
	alias           string
	createdDatabase string
	registered      bool
}

// Provision runs steps 1 to 7 against a reserved, inactive tenant. On
// failure it unregisters the alias and, when this run created one, tries to
// delete the provider database. Deleting the reserved row is left to the
// caller.
func (o *Orchestrator) Provision(ctx context.Context, tenant *models.Tenant, adminPassword, adminFullName string) error {
	s := &saga{tenant: tenant, alias: tenant.Alias()}
	logger := log.Ctx(ctx).With().Str("alias", s.alias).Logger()
	ctx = logger.WithContext(ctx)

	// persist and register use the credentials acquired in step 1
	var creds *neon.Credentials
	steps := []struct {
		step Step
		run  func(context.Context) error
	}{
		{StepAcquireDatabase, func(ctx context.Context) (err error) {
			creds, err = o.acquireDatabase(ctx, s)
			return err
		}},
		{StepPersistCredentials, func(ctx context.Context) error { return o.persistCredentials(ctx, s, creds) }},
		{StepRegisterAlias, func(ctx context.Context) error { return o.registerAlias(ctx, s, creds) }},
		{StepApplySchema, func(ctx context.Context) error { return o.applySchema(ctx, s) }},
		{StepCreateAdmin, func(ctx context.Context) error { return o.createAdmin(ctx, s, adminPassword, adminFullName) }},
		{StepSyncMember, func(ctx context.Context) error { return o.syncMember(ctx, s, adminFullName) }},
		{StepActivate, func(ctx context.Context) error { return o.activate(ctx, s) }},
	}

	for _, st := range steps {
		logger.Debug().Str("step", string(st.step)).Msg("provisioning step")
		if err := st.run(ctx); err != nil {
			logger.Error().Err(err).Str("step", string(st.step)).Msg("provisioning step failed")
			o.compensate(ctx, s)
			return &StepError{Step: st.step, Err: err}
		}
	}
	logger.Info().Msg("tenant provisioned")
	return nil
}

func (o *Orchestrator) acquireDatabase(ctx context.Context, s *saga) (*neon.Credentials, error) {
	if o.opts.DevMode {
		dev := o.opts.DevDB
		log.Ctx(ctx).Info().Str("database", dev.DBName).Msg("dev mode: using shared tenant database")
		return &neon.Credentials{
			Host:         dev.Host,
			User:         dev.User,
			Password:     dev.Password,
			DatabaseName: dev.DBName,
			Port:         dev.Port,
		}, nil
	}
	creds, err := o.Provider.CreateDatabase(ctx, s.alias)
	if err != nil {
		return nil, err
	}
	s.createdDatabase = creds.DatabaseName
	return creds, nil
}

func (o *Orchestrator) persistCredentials(ctx context.Context, s *saga, creds *neon.Credentials) error {
	encrypted, err := o.Codec.Encrypt(creds.Password)
	if err != nil {
		return err
	}
	port := creds.Port
	if port == 0 {
		port = config.DefaultPort
	}
	c := models.TenantConnection{
		Host:     creds.Host,
		User:     creds.User,
		Password: encrypted,
		DBName:   creds.DatabaseName,
		Port:     port,
	}
	if err := o.Tenants.UpdateTenantConnection(ctx, s.tenant.ID, c); err != nil {
		return err
	}
	s.tenant.DBHost, s.tenant.DBUser, s.tenant.DBPassword, s.tenant.DBName, s.tenant.DBPort = c.Host, c.User, c.Password, c.DBName, c.Port
	return nil
}

func (o *Orchestrator) registerAlias(ctx context.Context, s *saga, creds *neon.Credentials) error {
	sslmode := config.TenantSSLMode
	if o.opts.DevMode {
		sslmode = o.opts.DevDB.SSLMode
	}
	o.Registry.Register(s.alias, tenantrouter.ConnConfigFor(s.tenant, creds.Password, sslmode))
	s.registered = true
	log.Ctx(ctx).Info().Msg("tenant alias registered")
	return nil
}

// applySchema waits for the new database to accept connections, then
// applies the tenant schema. Only the ping is retried.
func (o *Orchestrator) applySchema(ctx context.Context, s *saga) error {
	db, err := o.Conns.ConnForAlias(ctx, s.alias)
	if err != nil {
		return err
	}
	err = retry.Do(
		func() error { return db.PingContext(ctx) },
		retry.Context(ctx),
		retry.Attempts(o.opts.ReadyAttempts),
		retry.Delay(o.opts.ReadyDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Ctx(ctx).Debug().Uint("attempt", n+1).Err(err).Msg("tenant database not ready")
		}),
	)
	if err != nil {
		return err
	}
	return o.Schema.Apply(ctx, s.alias)
}

func (o *Orchestrator) createAdmin(ctx context.Context, s *saga, password, fullName string) error {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	user := &models.TenantUser{
		Email:        s.tenant.AdminEmail,
		FullName:     fullName,
		TenantSlug:   s.tenant.Slug,
		PasswordHash: hash,
		IsAdmin:      true,
		IsActive:     true,
	}
	// the alias is installed for this write only
	return tenantrouter.WithAlias(ctx, s.alias, func(ctx context.Context) error {
		if err := o.Users.CreateTenantUser(ctx, user); err != nil {
			return err
		}
		return nil
	})
}

func (o *Orchestrator) syncMember(ctx context.Context, s *saga, fullName string) error {
	member := &models.TenantMember{
		TenantID: s.tenant.ID,
		Email:    s.tenant.AdminEmail,
		FullName: fullName,
		Role:     models.MemberRoleAdmin,
	}
	if err := o.Tenants.UpsertTenantMember(ctx, member); err != nil {
		return err
	}
	return nil
}

func (o *Orchestrator) activate(ctx context.Context, s *saga) error {
	if err := o.Tenants.ActivateTenant(ctx, s.tenant.ID); err != nil {
		return err
	}
	s.tenant.IsActive = true
	return nil
}

// compensate undoes the in-memory and external effects of a failed run.
// Provider failures here leave an orphan database behind, which the
// reconcile command finds later.
func (o *Orchestrator) compensate(ctx context.Context, s *saga) {
	ctx = context.WithoutCancel(ctx)
	logger := log.Ctx(ctx)
	if s.registered {
		o.Registry.Unregister(s.alias)
		logger.Info().Msg("tenant alias unregistered")
	}
	if s.createdDatabase != "" {
		if err := o.Provider.DeleteDatabase(ctx, s.createdDatabase); err != nil {
			telemetry.Default.ProviderOrphans.Inc()
			logger.Error().Err(err).Str("database", s.createdDatabase).Msg("orphaned provider database, run reconcile")
			return
		}
		logger.Info().Str("database", s.createdDatabase).Msg("provider database removed")
	}
}

// Delete tears a tenant down: provider database (skipped in dev mode, and
// tolerated on failure), alias, then the row and its members.
func (o *Orchestrator) Delete(ctx context.Context, slug string) (err error) {
	start := time.Now()
	defer func() { observe("delete", start, err) }()

	logger := log.Ctx(ctx).With().Str("slug", slug).Logger()
	ctx = logger.WithContext(ctx)

	tenant, terr := o.Tenants.GetTenantBySlug(ctx, slug, false)
	if terr != nil {
		if errors.Is(terr, dberror.ErrNotFound) {
			return ErrTenantNotFound.Msg("tenant " + slug + " not found")
		}
		return terr
	}

	switch {
	case o.opts.DevMode:
		logger.Info().Msg("dev mode: keeping shared tenant database")
	case tenant.DBName == "":
		logger.Info().Msg("tenant has no provider database")
	default:
		if perr := o.Provider.DeleteDatabase(ctx, tenant.DBName); perr != nil {
			telemetry.Default.ProviderOrphans.Inc()
			logger.Warn().Err(perr).Str("database", tenant.DBName).Msg("could not delete provider database")
		}
	}

	o.Registry.Unregister(tenant.Alias())

	if derr := o.Tenants.DeleteTenant(ctx, tenant.ID); derr != nil {
		if errors.Is(derr, dberror.ErrNotFound) {
			return ErrTenantNotFound.Msg("tenant " + slug + " not found")
		}
		return derr
	}
	logger.Info().Msg("tenant deleted")
	return nil
}

func observe(saga string, start time.Time, err error) {
	result := telemetry.LabelSuccess
	if err != nil {
		result = telemetry.LabelFailure
	}
	telemetry.Default.ProvisioningSagas.WithLabelValues(saga, result).Inc()
	telemetry.Default.ProvisioningDuration.WithLabelValues(saga, result).Observe(time.Since(start).Seconds())
}
