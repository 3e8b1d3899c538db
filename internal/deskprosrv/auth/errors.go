package auth

import (
	"net/http"

	"github.com/softflow/deskpro/internal/common/apperrors"
)

// Stable reason codes returned with authentication failures.
const (
	ReasonNotAuthenticated   = "not_authenticated"
	ReasonInvalidToken       = "invalid_token"
	ReasonMissingTenantClaim = "missing_tenant_claim"
	ReasonInvalidCredentials = "invalid_credentials"
)

var (
	ErrAuth apperrors.Error = apperrors.New("auth error").SetStatusCode(http.StatusInternalServerError)

	ErrAuthentication     apperrors.Error = ErrAuth.New("authentication failed").SetStatusCode(http.StatusUnauthorized)
	ErrNotAuthenticated   apperrors.Error = ErrAuthentication.New("authentication credentials were not provided").SetReason(ReasonNotAuthenticated)
	ErrInvalidToken       apperrors.Error = ErrAuthentication.New("invalid or expired token").SetReason(ReasonInvalidToken)
	ErrMissingTenantClaim apperrors.Error = ErrAuthentication.New("token carries no tenant").SetReason(ReasonMissingTenantClaim)
	ErrInvalidCredentials apperrors.Error = ErrAuthentication.New("invalid email or password").SetReason(ReasonInvalidCredentials)

	ErrTokenGeneration apperrors.Error = ErrAuth.New("failed to generate token")
	ErrPasswordHash    apperrors.Error = ErrAuth.New("failed to hash password")
)
