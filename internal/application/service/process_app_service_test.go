package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ronl/business-api/internal/application/dto"
	"github.com/ronl/business-api/internal/domain/models"
	domainservice "github.com/ronl/business-api/internal/domain/service"
	"github.com/ronl/business-api/internal/domain/service/mocks"
	"github.com/ronl/business-api/pkg/constants"
	"github.com/ronl/business-api/pkg/errors"
	"github.com/ronl/business-api/pkg/logger"
)

// fakeUpstream satisfies domainservice.UpstreamFailure.
type fakeUpstream struct {
	status  int
	message string
	body    json.RawMessage
}

func (f *fakeUpstream) Error() string                 { return fmt.Sprintf("upstream %d: %s", f.status, f.message) }
func (f *fakeUpstream) UpstreamStatus() int           { return f.status }
func (f *fakeUpstream) UpstreamMessage() string       { return f.message }
func (f *fakeUpstream) UpstreamBody() json.RawMessage { return f.body }

func testUser(tenant string) *models.AuthenticatedUser {
	return models.NewAuthenticatedUser("citizen-1", tenant, []string{"citizen"}, models.AssuranceSubstantieel, nil, "Jan Jansen", "")
}

func ownedBy(tenant string) models.VariableMap {
	return models.VariableMap{
		constants.VariableMunicipality: models.StringVariable(tenant),
		"kenteken":                     models.StringVariable("AB-123-C"),
	}
}

func appCode(t *testing.T, err error) string {
	t.Helper()
	appErr, ok := errors.As(err)
	require.True(t, ok, "expected AppError, got %v", err)
	return appErr.Code()
}

func newProcessService(engine *mocks.MockWorkflowEngine) ProcessAppService {
	return NewProcessAppService(engine, domainservice.NewTenantIsolation(true), nil, logger.NewNoopLogger())
}

func TestProcessAppService_StartProcess(t *testing.T) {
	ctx := context.Background()
	engine := new(mocks.MockWorkflowEngine)
	svc := newProcessService(engine)

	engine.On("StartProcess", ctx, "zorgtoeslag", mock.MatchedBy(func(req *models.StartProcessRequest) bool {
		return strings.HasPrefix(req.BusinessKey, "utrecht-") &&
			req.Variables[constants.VariableMunicipality].Value == "utrecht" &&
			req.Variables[constants.VariableInitiator].Value == "citizen-1" &&
			req.Variables[constants.VariableAssuranceLevel].Value == "substantieel" &&
			req.Variables["inkomen"].Value != nil
	})).Return(&models.ProcessInstance{ID: "pi-1", BusinessKey: "utrecht-1700000000000"}, nil)

	started, err := svc.StartProcess(ctx, testUser("utrecht"), "zorgtoeslag", &dto.StartProcessRequest{
		Variables: map[string]json.RawMessage{
			"inkomen":                      json.RawMessage(`{"value": 24000, "type": "Integer"}`),
			constants.VariableMunicipality: json.RawMessage(`"amsterdam"`),
		},
	})

	require.NoError(t, err)
	assert.Equal(t, "pi-1", started.ProcessInstanceID)
	assert.Equal(t, "utrecht-1700000000000", started.BusinessKey)
	assert.Equal(t, models.ProcessActive, started.Status)
	assert.False(t, started.StartTime.IsZero())
	engine.AssertExpectations(t)
}

func TestProcessAppService_StartProcess_InvalidVariables(t *testing.T) {
	engine := new(mocks.MockWorkflowEngine)
	svc := newProcessService(engine)

	_, err := svc.StartProcess(context.Background(), testUser("utrecht"), "zorgtoeslag", &dto.StartProcessRequest{
		Variables: map[string]json.RawMessage{"x": json.RawMessage(`{"value": 1, "type": "Blob"}`)},
	})

	assert.Equal(t, errors.CodeValidation, appCode(t, err))
	engine.AssertNotCalled(t, "StartProcess", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessAppService_StartProcess_EngineFailure(t *testing.T) {
	ctx := context.Background()
	engine := new(mocks.MockWorkflowEngine)
	svc := newProcessService(engine)
	engine.On("StartProcess", ctx, "unknown", mock.Anything).
		Return(nil, &fakeUpstream{status: http.StatusNotFound, message: "No matching process definition"})

	_, err := svc.StartProcess(ctx, testUser("utrecht"), "unknown", &dto.StartProcessRequest{})

	appErr, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeProcessStartFailed, appErr.Code())
	assert.Equal(t, "No matching process definition", appErr.Details())
}

func TestProcessAppService_GetStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("owned instance", func(t *testing.T) {
		engine := new(mocks.MockWorkflowEngine)
		svc := newProcessService(engine)
		engine.On("GetProcessInstance", ctx, "pi-1").Return(&models.ProcessInstance{ID: "pi-1", BusinessKey: "utrecht-1", Suspended: true}, nil)
		engine.On("GetProcessVariables", ctx, "pi-1").Return(ownedBy("utrecht"), nil)

		view, err := svc.GetStatus(ctx, testUser("utrecht"), "pi-1")

		require.NoError(t, err)
		assert.Equal(t, models.ProcessSuspended, view.Status)
		assert.Equal(t, "utrecht-1", view.BusinessKey)
	})

	t.Run("other tenant", func(t *testing.T) {
		engine := new(mocks.MockWorkflowEngine)
		svc := newProcessService(engine)
		engine.On("GetProcessInstance", ctx, "pi-1").Return(&models.ProcessInstance{ID: "pi-1"}, nil)
		engine.On("GetProcessVariables", ctx, "pi-1").Return(ownedBy("amsterdam"), nil)

		_, err := svc.GetStatus(ctx, testUser("utrecht"), "pi-1")

		assert.Equal(t, errors.CodeTenantMismatch, appCode(t, err))
	})

	t.Run("not found", func(t *testing.T) {
		engine := new(mocks.MockWorkflowEngine)
		svc := newProcessService(engine)
		engine.On("GetProcessInstance", ctx, "missing").Return(nil, &fakeUpstream{status: http.StatusNotFound})

		_, err := svc.GetStatus(ctx, testUser("utrecht"), "missing")

		assert.Equal(t, errors.CodeProcessNotFound, appCode(t, err))
	})

	t.Run("engine down", func(t *testing.T) {
		engine := new(mocks.MockWorkflowEngine)
		svc := newProcessService(engine)
		engine.On("GetProcessInstance", ctx, "pi-1").Return(nil, &fakeUpstream{message: "connection refused"})

		_, err := svc.GetStatus(ctx, testUser("utrecht"), "pi-1")

		appErr, ok := errors.As(err)
		require.True(t, ok)
		assert.Equal(t, errors.CodeServiceUnavailable, appErr.Code())
		assert.Equal(t, http.StatusServiceUnavailable, appErr.HTTPStatus())
	})
}

func TestProcessAppService_GetVariables(t *testing.T) {
	ctx := context.Background()
	engine := new(mocks.MockWorkflowEngine)
	svc := newProcessService(engine)
	engine.On("GetProcessVariables", ctx, "pi-1").Return(ownedBy("utrecht"), nil)
	engine.On("GetProcessVariables", ctx, "pi-untagged").Return(models.VariableMap{"a": models.StringVariable("b")}, nil)

	vars, err := svc.GetVariables(ctx, testUser("utrecht"), "pi-1")
	require.NoError(t, err)
	assert.Equal(t, "AB-123-C", vars["kenteken"])
	assert.Equal(t, "utrecht", vars[constants.VariableMunicipality])

	_, err = svc.GetVariables(ctx, testUser("utrecht"), "pi-untagged")
	assert.Equal(t, errors.CodeTenantMismatch, appCode(t, err))
}

func TestProcessAppService_GetVariables_IsolationDisabled(t *testing.T) {
	ctx := context.Background()
	engine := new(mocks.MockWorkflowEngine)
	svc := NewProcessAppService(engine, domainservice.NewTenantIsolation(false), nil, logger.NewNoopLogger())
	engine.On("GetProcessVariables", ctx, "pi-1").Return(ownedBy("amsterdam"), nil)

	vars, err := svc.GetVariables(ctx, testUser("utrecht"), "pi-1")

	require.NoError(t, err)
	assert.Equal(t, "amsterdam", vars[constants.VariableMunicipality])
}

func TestProcessAppService_Cancel(t *testing.T) {
	ctx := context.Background()

	t.Run("deletes owned instance", func(t *testing.T) {
		engine := new(mocks.MockWorkflowEngine)
		svc := newProcessService(engine)
		engine.On("GetProcessVariables", ctx, "pi-1").Return(ownedBy("utrecht"), nil)
		engine.On("DeleteProcessInstance", ctx, "pi-1", "Aanvraag ingetrokken").Return(nil)

		res, err := svc.Cancel(ctx, testUser("utrecht"), "pi-1", "Aanvraag ingetrokken")

		require.NoError(t, err)
		assert.Equal(t, "pi-1", res.ProcessInstanceID)
		engine.AssertExpectations(t)
	})

	t.Run("never deletes foreign instance", func(t *testing.T) {
		engine := new(mocks.MockWorkflowEngine)
		svc := newProcessService(engine)
		engine.On("GetProcessVariables", ctx, "pi-1").Return(ownedBy("amsterdam"), nil)

		_, err := svc.Cancel(ctx, testUser("utrecht"), "pi-1", "")

		assert.Equal(t, errors.CodeTenantMismatch, appCode(t, err))
		engine.AssertNotCalled(t, "DeleteProcessInstance", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("delete failure", func(t *testing.T) {
		engine := new(mocks.MockWorkflowEngine)
		svc := newProcessService(engine)
		engine.On("GetProcessVariables", ctx, "pi-1").Return(ownedBy("utrecht"), nil)
		engine.On("DeleteProcessInstance", ctx, "pi-1", "").Return(&fakeUpstream{status: http.StatusInternalServerError, message: "boom"})

		_, err := svc.Cancel(ctx, testUser("utrecht"), "pi-1", "")

		assert.Equal(t, errors.CodeProcessDeleteFailed, appCode(t, err))
	})
}
