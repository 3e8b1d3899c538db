package dberror

import (
	"net/http"

	"github.com/softflow/deskpro/internal/common/apperrors"
)

var (
	ErrDatabase      apperrors.Error = apperrors.New("db error").SetStatusCode(http.StatusInternalServerError)
	ErrAlreadyExists apperrors.Error = ErrDatabase.New("already exists").SetStatusCode(http.StatusConflict).SetReason("conflict")
	ErrNotFound      apperrors.Error = ErrDatabase.New("not found").SetStatusCode(http.StatusNotFound).SetReason("not_found")
	ErrInvalidInput  apperrors.Error = ErrDatabase.New("invalid input").SetStatusCode(http.StatusBadRequest).SetReason("invalid_input")
)

// PostgreSQL error codes inspected by the stores.
const (
	PgUniqueViolation     = "23505"
	PgForeignKeyViolation = "23503"
)
