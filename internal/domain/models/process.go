package models

import "time"

// ProcessStatus is the coarse lifecycle state reported to clients.
type ProcessStatus string

const (
	ProcessActive    ProcessStatus = "active"
	ProcessSuspended ProcessStatus = "suspended"
	ProcessEnded     ProcessStatus = "ended"
)

// ProcessInstance is the engine's view of a running or finished workflow.
type ProcessInstance struct {
	ID           string `json:"id"`
	DefinitionID string `json:"definitionId"`
	BusinessKey  string `json:"businessKey"`
	CaseInstance string `json:"caseInstanceId,omitempty"`
	Ended        bool   `json:"ended"`
	Suspended    bool   `json:"suspended"`
	TenantID     string `json:"tenantId,omitempty"`
}

// Status derives the client-facing status; ended wins over suspended.
func (p *ProcessInstance) Status() ProcessStatus {
	switch {
	case p.Ended:
		return ProcessEnded
	case p.Suspended:
		return ProcessSuspended
	default:
		return ProcessActive
	}
}

// StartProcessRequest is the body sent to the engine to start an instance.
type StartProcessRequest struct {
	BusinessKey string      `json:"businessKey,omitempty"`
	Variables   VariableMap `json:"variables"`
}

// StartedProcess is returned to the client after a successful start.
type StartedProcess struct {
	ProcessInstanceID string        `json:"processInstanceId"`
	BusinessKey       string        `json:"businessKey"`
	Status            ProcessStatus `json:"status"`
	StartTime         time.Time     `json:"startTime"`
}

// ProcessStatusView is returned by the status endpoint.
type ProcessStatusView struct {
	ProcessInstanceID string        `json:"processInstanceId"`
	DefinitionID      string        `json:"definitionId"`
	BusinessKey       string        `json:"businessKey"`
	Status            ProcessStatus `json:"status"`
	Ended             bool          `json:"ended"`
	Suspended         bool          `json:"suspended"`
}

// NewProcessStatusView projects an instance onto the status response.
func NewProcessStatusView(p *ProcessInstance) *ProcessStatusView {
	return &ProcessStatusView{
		ProcessInstanceID: p.ID,
		DefinitionID:      p.DefinitionID,
		BusinessKey:       p.BusinessKey,
		Status:            p.Status(),
		Ended:             p.Ended,
		Suspended:         p.Suspended,
	}
}
