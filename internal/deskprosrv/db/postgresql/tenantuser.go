package postgresql

import (
	"context"
	"database/sql"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/softflow/deskpro/internal/common/apperrors"
	"github.com/softflow/deskpro/internal/common/uuid"
	"github.com/softflow/deskpro/internal/deskprosrv/db/dberror"
	"github.com/softflow/deskpro/internal/deskprosrv/db/models"
	"github.com/softflow/deskpro/internal/deskprosrv/tenantrouter"
)

type TenantDataStore struct {
	r ConnResolver
}

func NewTenantDataStore(r ConnResolver) *TenantDataStore {
	return &TenantDataStore{r: r}
}

func (s *TenantDataStore) CreateTenantUser(ctx context.Context, u *models.TenantUser) apperrors.Error {
	conn, _, err := resolve(ctx, s.r, models.EntityTenantUser, tenantrouter.OpWrite)
	if err != nil {
		return err
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	query := `
		INSERT INTO tenant_users (id, email, full_name, tenant_slug, password_hash, is_admin, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING date_joined`
	errdb := conn.QueryRowContext(ctx, query, u.ID, u.Email, u.FullName, u.TenantSlug, u.PasswordHash, u.IsAdmin, u.IsActive).Scan(&u.DateJoined)
	if errdb != nil {
		if isUniqueViolation(errdb) {
			return dberror.ErrAlreadyExists.Msg("user " + u.Email + " already exists")
		}
		log.Ctx(ctx).Error().Err(errdb).Msg("failed to create tenant user")
		return dberror.ErrDatabase.Err(errdb)
	}
	return nil
}

func (s *TenantDataStore) GetTenantUserByEmail(ctx context.Context, email string) (*models.TenantUser, apperrors.Error) {
	conn, _, err := resolve(ctx, s.r, models.EntityTenantUser, tenantrouter.OpRead)
	if err != nil {
		return nil, err
	}
	query := `
		SELECT id, email, full_name, tenant_slug, password_hash, is_admin, is_active, date_joined
		FROM tenant_users
		WHERE email = $1`
	var u models.TenantUser
	errdb := conn.QueryRowContext(ctx, query, strings.ToLower(strings.TrimSpace(email))).
		Scan(&u.ID, &u.Email, &u.FullName, &u.TenantSlug, &u.PasswordHash, &u.IsAdmin, &u.IsActive, &u.DateJoined)
	if errdb != nil {
		if errdb == sql.ErrNoRows {
			return nil, dberror.ErrNotFound.Msg("user not found")
		}
		log.Ctx(ctx).Error().Err(errdb).Msg("failed to get tenant user")
		return nil, dberror.ErrDatabase.Err(errdb)
	}
	return &u, nil
}
