package neon

import (
	"fmt"
	"net/http"

	"github.com/softflow/deskpro/internal/common/apperrors"
)

// ErrProvider matches every *ProviderError through errors.Is.
var ErrProvider = apperrors.New("managed database provider error").
	SetStatusCode(http.StatusBadGateway).
	SetReason("provider_error")

// ProviderError is returned for every failed provider call: transport
// errors, timeouts, non-2xx responses and undecodable bodies.
type ProviderError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("neon: %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("neon: %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() []error {
	return []error{ErrProvider, e.Err}
}
