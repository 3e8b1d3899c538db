package postgresql

import (
	"context"
	"database/sql"

	"github.com/rs/zerolog/log"
	"github.com/softflow/deskpro/internal/common/apperrors"
	"github.com/softflow/deskpro/internal/common/uuid"
	"github.com/softflow/deskpro/internal/deskprosrv/db/dberror"
	"github.com/softflow/deskpro/internal/deskprosrv/db/models"
	"github.com/softflow/deskpro/internal/deskprosrv/tenantrouter"
)

type ControlPlaneStore struct {
	r ConnResolver
}

func NewControlPlaneStore(r ConnResolver) *ControlPlaneStore {
	return &ControlPlaneStore{r: r}
}

const tenantColumns = `id, name, slug, admin_email, db_host, db_user, db_password, db_name, db_port, is_active, created_at`

func scanTenant(row interface{ Scan(...any) error }) (*models.Tenant, error) {
	var t models.Tenant
	err := row.Scan(&t.ID, &t.Name, &t.Slug, &t.AdminEmail, &t.DBHost, &t.DBUser, &t.DBPassword, &t.DBName, &t.DBPort, &t.IsActive, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateTenant reserves a slug by inserting an inactive tenant. The unique
// constraint on slug decides concurrent signups for the same slug.
func (s *ControlPlaneStore) CreateTenant(ctx context.Context, t *models.Tenant) apperrors.Error {
	conn, _, err := resolve(ctx, s.r, models.EntityTenant, tenantrouter.OpWrite)
	if err != nil {
		return err
	}
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.DBPort == 0 {
		t.DBPort = 5432
	}
	query := `
		INSERT INTO tenants (id, name, slug, admin_email, db_port, is_active)
		VALUES ($1, $2, $3, $4, $5, false)
		RETURNING created_at`
	errdb := conn.QueryRowContext(ctx, query, t.ID, t.Name, t.Slug, t.AdminEmail, t.DBPort).Scan(&t.CreatedAt)
	if errdb != nil {
		if isUniqueViolation(errdb) {
			return dberror.ErrAlreadyExists.Msg("tenant " + t.Slug + " already exists")
		}
		log.Ctx(ctx).Error().Err(errdb).Str("slug", t.Slug).Msg("failed to create tenant")
		return dberror.ErrDatabase.Err(errdb)
	}
	t.IsActive = false
	return nil
}

func (s *ControlPlaneStore) GetTenantBySlug(ctx context.Context, slug string, activeOnly bool) (*models.Tenant, apperrors.Error) {
	conn, _, err := resolve(ctx, s.r, models.EntityTenant, tenantrouter.OpRead)
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE slug = $1`
	if activeOnly {
		query += ` AND is_active = true`
	}
	t, errdb := scanTenant(conn.QueryRowContext(ctx, query, slug))
	if errdb != nil {
		if errdb == sql.ErrNoRows {
			return nil, dberror.ErrNotFound.Msg("tenant not found")
		}
		log.Ctx(ctx).Error().Err(errdb).Str("slug", slug).Msg("failed to get tenant")
		return nil, dberror.ErrDatabase.Err(errdb)
	}
	return t, nil
}

func (s *ControlPlaneStore) ListTenants(ctx context.Context, activeOnly bool) ([]*models.Tenant, apperrors.Error) {
	conn, _, err := resolve(ctx, s.r, models.EntityTenant, tenantrouter.OpRead)
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + tenantColumns + ` FROM tenants`
	if activeOnly {
		query += ` WHERE is_active = true`
	}
	query += ` ORDER BY slug`
	rows, errdb := conn.QueryContext(ctx, query)
	if errdb != nil {
		log.Ctx(ctx).Error().Err(errdb).Msg("failed to list tenants")
		return nil, dberror.ErrDatabase.Err(errdb)
	}
	defer rows.Close()
	var tenants []*models.Tenant
	for rows.Next() {
		t, errdb := scanTenant(rows)
		if errdb != nil {
			log.Ctx(ctx).Error().Err(errdb).Msg("failed to scan tenant")
			return nil, dberror.ErrDatabase.Err(errdb)
		}
		tenants = append(tenants, t)
	}
	if errdb := rows.Err(); errdb != nil {
		return nil, dberror.ErrDatabase.Err(errdb)
	}
	return tenants, nil
}

// UpdateTenantConnection stores connection parameters. conn.Password must
// already be encrypted.
func (s *ControlPlaneStore) UpdateTenantConnection(ctx context.Context, tenantID uuid.UUID, c models.TenantConnection) apperrors.Error {
	conn, _, err := resolve(ctx, s.r, models.EntityTenant, tenantrouter.OpWrite)
	if err != nil {
		return err
	}
	query := `
		UPDATE tenants
		SET db_host = $2, db_user = $3, db_password = $4, db_name = $5, db_port = $6
		WHERE id = $1`
	return execOne(ctx, conn, "tenant", query, tenantID, c.Host, c.User, c.Password, c.DBName, c.Port)
}

func (s *ControlPlaneStore) ActivateTenant(ctx context.Context, tenantID uuid.UUID) apperrors.Error {
	conn, _, err := resolve(ctx, s.r, models.EntityTenant, tenantrouter.OpWrite)
	if err != nil {
		return err
	}
	return execOne(ctx, conn, "tenant", `UPDATE tenants SET is_active = true WHERE id = $1`, tenantID)
}

// DeleteTenant removes the row; tenant_members rows go with it.
func (s *ControlPlaneStore) DeleteTenant(ctx context.Context, tenantID uuid.UUID) apperrors.Error {
	conn, _, err := resolve(ctx, s.r, models.EntityTenant, tenantrouter.OpWrite)
	if err != nil {
		return err
	}
	return execOne(ctx, conn, "tenant", `DELETE FROM tenants WHERE id = $1`, tenantID)
}

func execOne(ctx context.Context, conn *sql.DB, what, query string, args ...any) apperrors.Error {
	result, errdb := conn.ExecContext(ctx, query, args...)
	if errdb != nil {
		log.Ctx(ctx).Error().Err(errdb).Str("record", what).Msg("failed to update record")
		return dberror.ErrDatabase.Err(errdb)
	}
	n, errdb := result.RowsAffected()
	if errdb != nil {
		return dberror.ErrDatabase.Err(errdb)
	}
	if n == 0 {
		return dberror.ErrNotFound.Msg(what + " not found")
	}
	return nil
}
