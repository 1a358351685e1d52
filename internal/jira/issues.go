package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/nhle/pr-overview/internal/model"
	"github.com/nhle/pr-overview/internal/status"
)

// GetIssueStatus fetches the issue's current status name and category.
// The name is lowercased so callers can match it against target text.
func (c *Client) GetIssueStatus(
	ctx context.Context,
	issueKey string,
) (model.IssueStatusSnapshot, error) {
	path := fmt.Sprintf(
		"/rest/api/2/issue/%s?fields=status", url.PathEscape(issueKey),
	)

	var issue Issue
	if err := c.Get(ctx, path, &issue); err != nil {
		return model.IssueStatusSnapshot{}, fmt.Errorf(
			"fetching issue %s: %w", issueKey, err,
		)
	}

	return model.IssueStatusSnapshot{
		Name: strings.ToLower(issue.Fields.Status.Name),
		Category: status.CategoryKey(
			strings.ToLower(issue.Fields.Status.StatusCategory.Key),
		),
	}, nil
}

// GetTransitions fetches the workflow transitions currently available
// on an issue, in the order Jira returns them. Callers depend on that
// order being preserved for first-match selection.
func (c *Client) GetTransitions(
	ctx context.Context,
	issueKey string,
) ([]Transition, error) {
	path := fmt.Sprintf(
		"/rest/api/2/issue/%s/transitions", url.PathEscape(issueKey),
	)

	var resp TransitionsResponse
	if err := c.Get(ctx, path, &resp); err != nil {
		return nil, fmt.Errorf(
			"fetching transitions for %s: %w", issueKey, err,
		)
	}

	return resp.Transitions, nil
}

// DoTransition performs a status transition on an issue. The endpoint
// returns 204 No Content on success.
func (c *Client) DoTransition(
	ctx context.Context,
	issueKey string,
	transitionID string,
) error {
	path := fmt.Sprintf(
		"/rest/api/2/issue/%s/transitions", url.PathEscape(issueKey),
	)
	payload := map[string]interface{}{
		"transition": map[string]string{"id": transitionID},
	}

	if err := c.Post(ctx, path, payload, nil); err != nil {
		return fmt.Errorf(
			"transitioning %s via transition %s: %w",
			issueKey, transitionID, err,
		)
	}
	return nil
}

// GetProperty reads an issue property and unmarshals its value into
// out. A property that was never written surfaces as a NotFoundError.
func (c *Client) GetProperty(
	ctx context.Context,
	issueKey string,
	propertyKey string,
	out interface{},
) error {
	path := fmt.Sprintf(
		"/rest/api/2/issue/%s/properties/%s",
		url.PathEscape(issueKey), url.PathEscape(propertyKey),
	)

	var resp PropertyResponse
	if err := c.Get(ctx, path, &resp); err != nil {
		return err
	}

	if len(resp.Value) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Value, out); err != nil {
		return fmt.Errorf(
			"unmarshaling property %s of %s: %w",
			propertyKey, issueKey, err,
		)
	}
	return nil
}

// SetProperty writes an issue property, replacing any previous value.
// Last write wins; there is no compare-and-set on this endpoint.
func (c *Client) SetProperty(
	ctx context.Context,
	issueKey string,
	propertyKey string,
	value interface{},
) error {
	path := fmt.Sprintf(
		"/rest/api/2/issue/%s/properties/%s",
		url.PathEscape(issueKey), url.PathEscape(propertyKey),
	)

	if err := c.Put(ctx, path, value); err != nil {
		return fmt.Errorf(
			"writing property %s of %s: %w", propertyKey, issueKey, err,
		)
	}
	return nil
}
