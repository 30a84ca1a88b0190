package service

import (
	"fmt"
	"time"

	"github.com/ronl/business-api/internal/domain/models"
	"github.com/ronl/business-api/pkg/constants"
	"github.com/ronl/business-api/pkg/errors"
)

// TenantIsolation enforces that every operation is scoped to the caller's
// municipality. It compares tenant tags on resources fetched from external
// systems and tags state created in them.
type TenantIsolation struct {
	enabled bool
	now     func() time.Time
}

// NewTenantIsolation creates the policy. With enabled=false every check passes.
func NewTenantIsolation(enabled bool) *TenantIsolation {
	return &TenantIsolation{enabled: enabled, now: time.Now}
}

// Enabled reports whether isolation is enforced.
func (t *TenantIsolation) Enabled() bool {
	return t.enabled
}

// CheckResourceTenant compares a resource's tenant tag with the caller's tenant.
// The tag must be a non-empty string equal byte-for-byte to callerTenant;
// anything else, including a missing or non-string tag, is a mismatch.
func (t *TenantIsolation) CheckResourceTenant(callerTenant string, resourceTenant interface{}) error {
	if !t.enabled {
		return nil
	}
	if callerTenant == "" {
		return errors.ErrMissingTenant()
	}
	tag, ok := resourceTenant.(string)
	if !ok || tag == "" || tag != callerTenant {
		return errors.ErrTenantMismatch().WithCause(fmt.Errorf("resource tenant %v does not match caller tenant %q", resourceTenant, callerTenant))
	}
	return nil
}

// CheckVariables validates the municipality variable of a fetched variable map.
func (t *TenantIsolation) CheckVariables(callerTenant string, vars models.VariableMap) error {
	v, ok := vars[constants.VariableMunicipality]
	if !ok {
		return t.CheckResourceTenant(callerTenant, nil)
	}
	return t.CheckResourceTenant(callerTenant, v.Value)
}

// TagProcessStart injects the caller's tenant, user id and assurance level into
// the start variables, overriding client supplied values, and derives the
// business key "{tenant}-{unix millis}".
func (t *TenantIsolation) TagProcessStart(user *models.AuthenticatedUser, vars models.VariableMap) (string, models.VariableMap) {
	tagged := vars.Clone()
	tagged[constants.VariableMunicipality] = models.StringVariable(user.TenantID)
	tagged[constants.VariableInitiator] = models.StringVariable(user.UserID)
	tagged[constants.VariableAssuranceLevel] = models.StringVariable(user.AssuranceLevel.String())

	businessKey := fmt.Sprintf("%s-%d", user.TenantID, t.now().UnixMilli())
	return businessKey, tagged
}

// TaskTenant returns the tenant that task listings are filtered on. It is empty
// when isolation is disabled, which lists the assignee's tasks across all
// municipalities.
func (t *TenantIsolation) TaskTenant(callerTenant string) string {
	if !t.enabled {
		return ""
	}
	return callerTenant
}

// TagDecision injects the caller's tenant into decision input variables.
func (t *TenantIsolation) TagDecision(tenantID string, vars models.VariableMap) models.VariableMap {
	tagged := vars.Clone()
	tagged[constants.VariableMunicipality] = models.StringVariable(tenantID)
	return tagged
}
