package model

import "github.com/nhle/pr-overview/internal/status"

// Approver identifies a participant who approved the pull request.
type Approver struct {
	Name      string `json:"name"`
	AccountID string `json:"accountId"`
}

// Commit is a single commit on a pull request.
type Commit struct {
	Hash    string `json:"hash"`
	Message string `json:"message"`
	Author  string `json:"author"`
	Date    string `json:"date"`
	Link    string `json:"link"`
}

// PullRequestSnapshot is an immutable view of a pull request, fetched
// fresh per read and never merged across reads.
type PullRequestSnapshot struct {
	ID           int             `json:"id"`
	Title        string          `json:"title"`
	Status       status.PRStatus `json:"status"`
	RawState     string          `json:"state"`
	Draft        bool            `json:"draft"`
	Approved     bool            `json:"approved"`
	Approvals    int             `json:"approvals"`
	Approvers    []Approver      `json:"approvers"`
	Author       string          `json:"author"`
	Created      string          `json:"created"`
	SourceBranch string          `json:"sourceBranch"`
	DestBranch   string          `json:"destBranch"`
	Link         string          `json:"link"`
}

// IssueStatusSnapshot is the issue's current workflow position,
// fetched fresh on every poll. Name is lowercased for matching.
type IssueStatusSnapshot struct {
	Name     string             `json:"currentStatus"`
	Category status.CategoryKey `json:"currentCategory"`
}
