package postgresql

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/softflow/deskpro/internal/common/apperrors"
	"github.com/softflow/deskpro/internal/common/uuid"
	"github.com/softflow/deskpro/internal/deskprosrv/db/dberror"
	"github.com/softflow/deskpro/internal/deskprosrv/db/models"
	"github.com/softflow/deskpro/internal/deskprosrv/tenantrouter"
)

// UpsertTenantMember creates the directory entry for (tenant, email) or
// refreshes its name and role.
func (s *ControlPlaneStore) UpsertTenantMember(ctx context.Context, m *models.TenantMember) apperrors.Error {
	if !m.Role.Valid() {
		return dberror.ErrInvalidInput.Msg("invalid member role " + string(m.Role))
	}
	conn, _, err := resolve(ctx, s.r, models.EntityTenantMember, tenantrouter.OpWrite)
	if err != nil {
		return err
	}
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	query := `
		INSERT INTO tenant_members (id, tenant_id, email, full_name, role)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (tenant_id, email)
		DO UPDATE SET full_name = EXCLUDED.full_name, role = EXCLUDED.role
		RETURNING id, created_at`
	errdb := conn.QueryRowContext(ctx, query, m.ID, m.TenantID, m.Email, m.FullName, m.Role).Scan(&m.ID, &m.CreatedAt)
	if errdb != nil {
		if isForeignKeyViolation(errdb) {
			return dberror.ErrNotFound.Msg("tenant not found")
		}
		log.Ctx(ctx).Error().Err(errdb).Str("email", m.Email).Msg("failed to upsert tenant member")
		return dberror.ErrDatabase.Err(errdb)
	}
	return nil
}

func (s *ControlPlaneStore) ListTenantMembers(ctx context.Context, tenantID uuid.UUID) ([]*models.TenantMember, apperrors.Error) {
	conn, _, err := resolve(ctx, s.r, models.EntityTenantMember, tenantrouter.OpRead)
	if err != nil {
		return nil, err
	}
	query := `
		SELECT id, tenant_id, email, full_name, role, created_at
		FROM tenant_members
		WHERE tenant_id = $1
		ORDER BY email`
	rows, errdb := conn.QueryContext(ctx, query, tenantID)
	if errdb != nil {
		log.Ctx(ctx).Error().Err(errdb).Msg("failed to list tenant members")
		return nil, dberror.ErrDatabase.Err(errdb)
	}
	defer rows.Close()
	var members []*models.TenantMember
	for rows.Next() {
		var m models.TenantMember
		if errdb := rows.Scan(&m.ID, &m.TenantID, &m.Email, &m.FullName, &m.Role, &m.CreatedAt); errdb != nil {
			return nil, dberror.ErrDatabase.Err(errdb)
		}
		members = append(members, &m)
	}
	if errdb := rows.Err(); errdb != nil {
		return nil, dberror.ErrDatabase.Err(errdb)
	}
	return members, nil
}
