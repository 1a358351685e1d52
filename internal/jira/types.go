package jira

import "encoding/json"

// Issue is the slice of an issue response the panel reads.
type Issue struct {
	ID     string      `json:"id"`
	Key    string      `json:"key"`
	Fields IssueFields `json:"fields"`
}

// IssueFields contains the issue fields the panel requests.
type IssueFields struct {
	Status Status `json:"status"`
}

// Status represents the status of a Jira issue.
type Status struct {
	Name           string         `json:"name"`
	ID             string         `json:"id"`
	StatusCategory StatusCategory `json:"statusCategory"`
}

// StatusCategory is the broad category a status belongs to.
type StatusCategory struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// Transition is a workflow transition available on an issue.
type Transition struct {
	ID   string           `json:"id"`
	Name string           `json:"name"`
	To   TransitionTarget `json:"to"`
}

// TransitionTarget is the destination status of a transition.
type TransitionTarget struct {
	Name           string         `json:"name"`
	StatusCategory StatusCategory `json:"statusCategory"`
}

// TransitionsResponse is the response from the transitions endpoint.
type TransitionsResponse struct {
	Transitions []Transition `json:"transitions"`
}

// PropertyResponse wraps an issue property value. Jira stores the
// value as arbitrary JSON under the "value" key.
type PropertyResponse struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// ErrorResponse is the Jira REST error response format.
type ErrorResponse struct {
	ErrorMessages []string          `json:"errorMessages"`
	Errors        map[string]string `json:"errors"`
}
