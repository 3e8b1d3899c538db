package postgresql

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgconn"
	"github.com/rs/zerolog/log"
	"github.com/softflow/deskpro/internal/common/apperrors"
	"github.com/softflow/deskpro/internal/deskprosrv/db/dberror"
	"github.com/softflow/deskpro/internal/deskprosrv/db/models"
	"github.com/softflow/deskpro/internal/deskprosrv/tenantrouter"
)

// ConnResolver hands out the pool an entity lives in for the current
// context. *tenantrouter.Router implements it.
type ConnResolver interface {
	Conn(ctx context.Context, entity models.Entity, op tenantrouter.Op) (*sql.DB, string, error)
	AllowRelation(db1, db2 string) error
}

var _ ConnResolver = (*tenantrouter.Router)(nil)

func resolve(ctx context.Context, r ConnResolver, entity models.Entity, op tenantrouter.Op) (*sql.DB, string, apperrors.Error) {
	conn, alias, err := r.Conn(ctx, entity, op)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("entity", string(entity)).Msg("failed to resolve connection")
		return nil, "", asAppError(err)
	}
	return conn, alias, nil
}

func asAppError(err error) apperrors.Error {
	var appErr apperrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return dberror.ErrDatabase.Err(err)
}

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isUniqueViolation(err error) bool {
	return pgErrorCode(err) == dberror.PgUniqueViolation
}

func isForeignKeyViolation(err error) bool {
	return pgErrorCode(err) == dberror.PgForeignKeyViolation
}
