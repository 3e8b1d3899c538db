package postgresql

import (
	"context"
	"database/sql"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/rs/zerolog/log"
	"github.com/softflow/deskpro/internal/deskprosrv/db/config"
	"github.com/softflow/deskpro/internal/deskprosrv/db/dberror"
	"github.com/softflow/deskpro/internal/deskprosrv/db/dbmanager"
	"github.com/softflow/deskpro/internal/deskprosrv/db/models"
	"github.com/softflow/deskpro/internal/deskprosrv/tenantrouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	controlPlane *ControlPlaneStore
	tenantData   *TenantDataStore
	cpMock       sqlmock.Sqlmock
	tenantMock   sqlmock.Sqlmock
}

func newTestEnv(t *testing.T) *testEnv {
	cpDB, cpMock, err := sqlmock.New()
	require.NoError(t, err)
	tenantDB, tenantMock, err := sqlmock.New()
	require.NoError(t, err)

	pools := dbmanager.NewPools(dbmanager.WithOpener(func(dsn string) (*sql.DB, error) {
		if strings.Contains(dsn, "/tenant_acme") {
			return tenantDB, nil
		}
		return cpDB, nil
	}))
	registry := tenantrouter.NewRegistry()
	registry.Register("tenant_acme", config.ConnConfig{Host: "ep-rw", DBName: "tenant_acme"})
	router := tenantrouter.NewRouter(registry, pools, config.ConnConfig{Host: "localhost", DBName: "deskpro"})
	t.Cleanup(pools.CloseAll)

	return &testEnv{
		controlPlane: NewControlPlaneStore(router),
		tenantData:   NewTenantDataStore(router),
		cpMock:       cpMock,
		tenantMock:   tenantMock,
	}
}

func (e *testEnv) verify(t *testing.T) {
	assert.NoError(t, e.cpMock.ExpectationsWereMet())
	assert.NoError(t, e.tenantMock.ExpectationsWereMet())
}

func tenantRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "slug", "admin_email", "db_host", "db_user", "db_password", "db_name", "db_port", "is_active", "created_at"})
}

func TestCreateTenant(t *testing.T) {
	env := newTestEnv(t)
	ctx := log.Logger.WithContext(context.Background())
	now := time.Now()

	env.cpMock.ExpectQuery(regexp.QuoteMeta("INSERT INTO tenants")).
		WithArgs(sqlmock.AnyArg(), "Acme", "acme", "admin@acme.test", 5432).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))

	tenant := &models.Tenant{Name: "Acme", Slug: "acme", AdminEmail: "admin@acme.test"}
	require.NoError(t, env.controlPlane.CreateTenant(ctx, tenant))
	assert.NotEqual(t, uuid.Nil, tenant.ID)
	assert.False(t, tenant.IsActive)
	assert.Equal(t, now, tenant.CreatedAt)
	env.verify(t)
}

func TestCreateTenantDuplicateSlug(t *testing.T) {
	env := newTestEnv(t)
	ctx := log.Logger.WithContext(context.Background())

	env.cpMock.ExpectQuery(regexp.QuoteMeta("INSERT INTO tenants")).
		WillReturnError(&pgconn.PgError{Code: dberror.PgUniqueViolation, ConstraintName: "tenants_slug_key"})

	err := env.controlPlane.CreateTenant(ctx, &models.Tenant{Name: "Acme", Slug: "acme", AdminEmail: "a@acme.test"})
	require.Error(t, err)
	assert.ErrorIs(t, err, dberror.ErrAlreadyExists)
	assert.Equal(t, 409, err.StatusCode())
	env.verify(t)
}

func TestGetTenantBySlug(t *testing.T) {
	env := newTestEnv(t)
	ctx := log.Logger.WithContext(context.Background())
	id := uuid.New()

	env.cpMock.ExpectQuery(regexp.QuoteMeta("FROM tenants WHERE slug = $1 AND is_active = true")).
		WithArgs("acme").
		WillReturnRows(tenantRows().AddRow(id.String(), "Acme", "acme", "a@acme.test", "ep-rw", "owner", "v1:xyz", "tenant_acme", 5432, true, time.Now()))
	env.cpMock.ExpectQuery(regexp.QuoteMeta("FROM tenants WHERE slug = $1 AND is_active = true")).
		WithArgs("ghost").
		WillReturnRows(tenantRows())

	tenant, err := env.controlPlane.GetTenantBySlug(ctx, "acme", true)
	require.NoError(t, err)
	assert.Equal(t, id, tenant.ID)
	assert.Equal(t, "tenant_acme", tenant.Alias())
	assert.Equal(t, "v1:xyz", tenant.DBPassword)

	_, err = env.controlPlane.GetTenantBySlug(ctx, "ghost", true)
	assert.ErrorIs(t, err, dberror.ErrNotFound)
	env.verify(t)
}

func TestActivateAndDeleteTenant(t *testing.T) {
	env := newTestEnv(t)
	ctx := log.Logger.WithContext(context.Background())
	id := uuid.New()

	env.cpMock.ExpectExec(regexp.QuoteMeta("UPDATE tenants SET is_active = true WHERE id = $1")).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 1))
	env.cpMock.ExpectExec(regexp.QuoteMeta("DELETE FROM tenants WHERE id = $1")).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 1))
	env.cpMock.ExpectExec(regexp.QuoteMeta("DELETE FROM tenants WHERE id = $1")).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, env.controlPlane.ActivateTenant(ctx, id))
	require.NoError(t, env.controlPlane.DeleteTenant(ctx, id))
	assert.ErrorIs(t, env.controlPlane.DeleteTenant(ctx, id), dberror.ErrNotFound)
	env.verify(t)
}

func TestUpsertTenantMember(t *testing.T) {
	env := newTestEnv(t)
	ctx := log.Logger.WithContext(context.Background())
	tenantID := uuid.New()
	memberID := uuid.New()

	env.cpMock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (tenant_id, email)")).
		WithArgs(sqlmock.AnyArg(), tenantID, "admin@acme.test", "Ada Admin", models.MemberRoleAdmin).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(memberID.String(), time.Now()))

	m := &models.TenantMember{TenantID: tenantID, Email: "admin@acme.test", FullName: "Ada Admin", Role: models.MemberRoleAdmin}
	require.NoError(t, env.controlPlane.UpsertTenantMember(ctx, m))
	assert.Equal(t, memberID, m.ID)

	err := env.controlPlane.UpsertTenantMember(ctx, &models.TenantMember{TenantID: tenantID, Email: "x@acme.test", Role: "owner"})
	assert.ErrorIs(t, err, dberror.ErrInvalidInput)
	env.verify(t)
}

func TestTenantDataRequiresTenantScope(t *testing.T) {
	env := newTestEnv(t)
	ctx := log.Logger.WithContext(context.Background())

	_, err := env.tenantData.GetTicket(ctx, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, tenantrouter.ErrRoutingConfiguration)
	assert.Contains(t, err.Error(), string(models.EntityTicket))

	err = env.tenantData.CreateTenantUser(tenantrouter.NewScope(ctx), &models.TenantUser{Email: "a@acme.test"})
	assert.ErrorIs(t, err, tenantrouter.ErrRoutingConfiguration)
	env.verify(t)
}

func TestCreateTenantUserRoutesToTenantDatabase(t *testing.T) {
	env := newTestEnv(t)
	ctx := log.Logger.WithContext(context.Background())

	env.tenantMock.ExpectQuery(regexp.QuoteMeta("INSERT INTO tenant_users")).
		WithArgs(sqlmock.AnyArg(), "admin@acme.test", "Ada Admin", "acme", "hash", true, true).
		WillReturnRows(sqlmock.NewRows([]string{"date_joined"}).AddRow(time.Now()))

	u := &models.TenantUser{Email: " Admin@Acme.test ", FullName: "Ada Admin", TenantSlug: "acme", PasswordHash: "hash", IsAdmin: true, IsActive: true}
	err := tenantrouter.WithAlias(ctx, "tenant_acme", func(ctx context.Context) error {
		if err := env.tenantData.CreateTenantUser(ctx, u); err != nil {
			return err
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "admin@acme.test", u.Email)
	env.verify(t)
}

func TestTicketsAndMessages(t *testing.T) {
	env := newTestEnv(t)
	ctx, release := tenantrouter.Acquire(log.Logger.WithContext(context.Background()), "tenant_acme")
	defer release()
	now := time.Now()

	env.tenantMock.ExpectQuery(regexp.QuoteMeta("INSERT INTO tickets")).
		WithArgs("Printer on fire", "Roy", "roy@example.com", "open", "urgent", "phone", "", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(7), now, now))
	env.tenantMock.ExpectQuery(regexp.QuoteMeta("FROM tickets WHERE status = $1 ORDER BY created_at DESC LIMIT $2")).
		WithArgs("open", 100).
		WillReturnRows(sqlmock.NewRows([]string{"id", "subject", "customer_name", "customer_email", "status", "priority", "channel", "assignee", "tags", "created_at", "updated_at"}).
			AddRow(int64(7), "Printer on fire", "Roy", "roy@example.com", "open", "urgent", "phone", "", "{vip,hardware}", now, now))
	env.tenantMock.ExpectQuery(regexp.QuoteMeta("INSERT INTO ticket_messages")).
		WithArgs(sqlmock.AnyArg(), int64(7), "Roy", "Have you tried turning it off?").
		WillReturnRows(sqlmock.NewRows([]string{"timestamp"}).AddRow(now))

	ticket := &models.Ticket{Subject: "Printer on fire", CustomerName: "Roy", CustomerEmail: "roy@example.com", Status: "open", Priority: "urgent", Channel: "phone"}
	require.NoError(t, env.tenantData.CreateTicket(ctx, ticket))
	assert.Equal(t, int64(7), ticket.ID)
	assert.Equal(t, "tenant_acme", ticket.DBAlias)

	tickets, err := env.tenantData.ListTickets(ctx, models.TicketFilter{Status: "open"})
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, []string{"vip", "hardware"}, tickets[0].Tags)

	msg := &models.TicketMessage{Sender: "Roy", Body: "Have you tried turning it off?"}
	require.NoError(t, env.tenantData.AddTicketMessage(ctx, tickets[0], msg))
	assert.Equal(t, int64(7), msg.TicketID)
	env.verify(t)
}

func TestCrossDatabaseRelationRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx, release := tenantrouter.Acquire(log.Logger.WithContext(context.Background()), "tenant_acme")
	defer release()

	foreign := &models.Ticket{ID: 3, DBAlias: "tenant_globex"}
	err := env.tenantData.AddTicketMessage(ctx, foreign, &models.TicketMessage{Sender: "x", Body: "y"})
	assert.ErrorIs(t, err, tenantrouter.ErrCrossDatabaseRelation)
	env.verify(t)
}
