package provisioning

import (
	"fmt"
	"net/http"

	"github.com/softflow/deskpro/internal/common/apperrors"
	"github.com/softflow/deskpro/internal/deskprosrv/tenantrouter"
)

var (
	ErrProvisioning       apperrors.Error = apperrors.New("provisioning error").SetStatusCode(http.StatusInternalServerError)
	ErrProvisioningFailed apperrors.Error = ErrProvisioning.New("provisioning failed").SetReason("provisioning_failed")
	ErrInvalidInput       apperrors.Error = ErrProvisioning.New("invalid request").SetStatusCode(http.StatusBadRequest).SetReason("invalid_input")
	ErrConflict           apperrors.Error = ErrProvisioning.New("slug is already taken").SetStatusCode(http.StatusConflict).SetReason("slug_taken")
	ErrTenantNotFound                     = tenantrouter.ErrTenantNotFound
)

// Step names one stage of the creation saga.
type Step string

const (
	StepAcquireDatabase    Step = "acquire_database"
	StepPersistCredentials Step = "persist_credentials"
	StepRegisterAlias      Step = "register_alias"
	StepApplySchema        Step = "apply_schema"
	StepCreateAdmin        Step = "create_admin"
	StepSyncMember         Step = "sync_member"
	StepActivate           Step = "activate"
)

// StepError reports the saga step that aborted provisioning.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
