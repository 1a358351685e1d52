// Package resolver exposes the backend logic as named operations over
// structured JSON payloads. The operation names and result field
// shapes are the contract the presentation layer depends on, so they
// stay stable even as internals move.
package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nhle/pr-overview/internal/automation"
	"github.com/nhle/pr-overview/internal/bitbucket"
	"github.com/nhle/pr-overview/internal/model"
)

// Operation names understood by Invoke.
const (
	OpTransitionIssue     = "transitionIssue"
	OpGetIssueStatus      = "getIssueStatus"
	OpGetAutomationState  = "getAutomationState"
	OpSaveAutomationState = "saveAutomationState"
	OpCheckConfiguration  = "checkConfiguration"
	OpGetRepositoryConfig = "getRepositoryConfig"
	OpGetPRWithCommits    = "getPRWithCommits"
)

// Payload is the union of arguments accepted by the operations.
// Unused fields are simply absent.
type Payload struct {
	IssueKey   string                      `json:"issueKey,omitempty"`
	TargetName string                      `json:"targetName,omitempty"`
	IsAuto     bool                        `json:"isAuto,omitempty"`
	State      *automation.AutomationState `json:"state,omitempty"`
	Workspace  string                      `json:"workspace,omitempty"`
	Repository string                      `json:"repository,omitempty"`
}

// ConfigurationResult is the response of checkConfiguration and
// getRepositoryConfig.
type ConfigurationResult struct {
	Success    bool   `json:"success"`
	Configured bool   `json:"configured,omitempty"`
	Workspace  string `json:"workspace,omitempty"`
	Repository string `json:"repository,omitempty"`
	Error      string `json:"error,omitempty"`
}

// PRWithCommitsResult is the response of getPRWithCommits. A missing
// pull request is reported through Error with PR left nil; that is a
// normal negative result, not an operation failure.
type PRWithCommitsResult struct {
	PR          *model.PullRequestSnapshot `json:"pr,omitempty"`
	Commits     []model.Commit             `json:"commits,omitempty"`
	CommitCount int                        `json:"commitCount"`
	Error       string                     `json:"error,omitempty"`
}

// HandlerFunc executes one operation. Handlers are total: they encode
// failures into their result value instead of returning an error.
type HandlerFunc func(ctx context.Context, payload Payload) interface{}

// Resolver dispatches named operations to their handlers.
type Resolver struct {
	handlers map[string]HandlerFunc
}

// New creates an empty resolver. Use Define to register operations or
// NewWithBackend to get the full standard set.
func New() *Resolver {
	return &Resolver{handlers: make(map[string]HandlerFunc)}
}

// Define registers a handler under an operation name, replacing any
// previous registration.
func (r *Resolver) Define(name string, handler HandlerFunc) {
	r.handlers[name] = handler
}

// Invoke runs the named operation with a raw JSON payload and returns
// the marshaled result. Failures of any kind, including panics inside
// a handler, come back as {"success":false,"error":...}; Invoke never
// propagates them.
func (r *Resolver) Invoke(
	ctx context.Context,
	name string,
	rawPayload json.RawMessage,
) (result json.RawMessage) {
	defer func() {
		if rec := recover(); rec != nil {
			result = errorJSON(fmt.Sprintf("internal error in %s: %v", name, rec))
		}
	}()

	handler, ok := r.handlers[name]
	if !ok {
		return errorJSON(fmt.Sprintf("unknown operation %q", name))
	}

	var payload Payload
	if len(rawPayload) > 0 {
		if err := json.Unmarshal(rawPayload, &payload); err != nil {
			return errorJSON(fmt.Sprintf("invalid payload for %s: %v", name, err))
		}
	}

	out, err := json.Marshal(handler(ctx, payload))
	if err != nil {
		return errorJSON(fmt.Sprintf("encoding result of %s: %v", name, err))
	}
	return out
}

func errorJSON(message string) json.RawMessage {
	out, _ := json.Marshal(automation.Result{Success: false, Error: message})
	return out
}

// Backend carries the collaborators the standard operations run on.
type Backend struct {
	Engine *automation.Engine
	Repo   *bitbucket.Repo
	Config *model.AppConfig

	// AppPassword is the resolved Bitbucket app password, checked (but
	// never echoed) by checkConfiguration.
	AppPassword string
}

// NewWithBackend creates a resolver with the full standard operation
// set registered.
func NewWithBackend(b Backend) *Resolver {
	r := New()

	r.Define(OpTransitionIssue, func(ctx context.Context, p Payload) interface{} {
		if p.IssueKey == "" || p.TargetName == "" {
			return automation.Result{Success: false, Error: "issueKey and targetName are required"}
		}
		return b.Engine.TransitionIssue(ctx, p.IssueKey, p.TargetName, p.IsAuto)
	})

	r.Define(OpGetIssueStatus, func(ctx context.Context, p Payload) interface{} {
		if p.IssueKey == "" {
			return automation.Result{Success: false, Error: "issueKey is required"}
		}
		return b.Engine.GetIssueStatus(ctx, p.IssueKey)
	})

	r.Define(OpGetAutomationState, func(ctx context.Context, p Payload) interface{} {
		if p.IssueKey == "" {
			return automation.StateResult{Success: false, Error: "issueKey is required"}
		}
		return b.Engine.GetAutomationState(ctx, p.IssueKey)
	})

	r.Define(OpSaveAutomationState, func(ctx context.Context, p Payload) interface{} {
		if p.IssueKey == "" || p.State == nil {
			return automation.Result{Success: false, Error: "issueKey and state are required"}
		}
		return b.Engine.SaveAutomationState(ctx, p.IssueKey, *p.State)
	})

	r.Define(OpCheckConfiguration, func(ctx context.Context, p Payload) interface{} {
		missing := b.Config.MissingBitbucketFields(b.AppPassword)
		if len(missing) > 0 {
			err := &model.MissingConfigError{Fields: missing}
			return ConfigurationResult{Success: false, Error: err.Error()}
		}
		return ConfigurationResult{Success: true, Configured: true}
	})

	r.Define(OpGetRepositoryConfig, func(ctx context.Context, p Payload) interface{} {
		return ConfigurationResult{
			Success:    true,
			Workspace:  b.Config.Bitbucket.Workspace,
			Repository: b.Config.Bitbucket.RepositorySlug,
		}
	})

	r.Define(OpGetPRWithCommits, func(ctx context.Context, p Payload) interface{} {
		if p.IssueKey == "" {
			return PRWithCommitsResult{Error: "issueKey is required"}
		}
		if err := b.Config.ValidateBitbucket(b.AppPassword); err != nil {
			return PRWithCommitsResult{Error: err.Error()}
		}

		snap, err := b.Repo.Snapshot(ctx, p.IssueKey)
		if err != nil {
			var noPR *bitbucket.NoPullRequestError
			if errors.As(err, &noPR) {
				return PRWithCommitsResult{Error: noPR.Error()}
			}
			return PRWithCommitsResult{Error: err.Error()}
		}

		commits, err := b.Repo.GetCommits(ctx, snap.ID)
		if err != nil {
			return PRWithCommitsResult{Error: err.Error()}
		}

		return PRWithCommitsResult{
			PR:          snap,
			Commits:     commits,
			CommitCount: len(commits),
		}
	})

	return r
}
