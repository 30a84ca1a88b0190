package models

// Task is a user task as reported by the workflow engine.
type Task struct {
	ID                  string  `json:"id"`
	Name                string  `json:"name"`
	Assignee            *string `json:"assignee"`
	Owner               *string `json:"owner,omitempty"`
	Created             string  `json:"created"`
	Due                 *string `json:"due"`
	FollowUp            *string `json:"followUp,omitempty"`
	Description         *string `json:"description,omitempty"`
	Priority            int     `json:"priority"`
	ProcessDefinitionID string  `json:"processDefinitionId"`
	ProcessInstanceID   string  `json:"processInstanceId"`
	TaskDefinitionKey   string  `json:"taskDefinitionKey"`
	Suspended           bool    `json:"suspended"`
	FormKey             *string `json:"formKey,omitempty"`
	TenantID            *string `json:"tenantId,omitempty"`
}

// CompleteTaskRequest is the body sent to complete a task.
type CompleteTaskRequest struct {
	Variables VariableMap `json:"variables"`
}
