package bitbucket

import (
	"context"
	"fmt"
	"strings"

	"github.com/nhle/pr-overview/internal/model"
	"github.com/nhle/pr-overview/internal/status"
)

// prStatesQuery requests every lifecycle state so merged and declined
// pull requests keep driving the panel after they leave OPEN.
const prStatesQuery = "state=OPEN&state=MERGED&state=DECLINED&state=CLOSED&pagelen=50"

// NoPullRequestError is returned when no pull request's source branch
// contains the issue key. It carries every branch name that was
// checked so the caller can show what was searched.
type NoPullRequestError struct {
	IssueKey        string
	CheckedBranches []string
}

func (e *NoPullRequestError) Error() string {
	return fmt.Sprintf(
		"no PR found for %s. Checked branches: %s",
		e.IssueKey, strings.Join(e.CheckedBranches, ", "),
	)
}

// Repo binds a client to one workspace/repository pair.
type Repo struct {
	client     *Client
	workspace  string
	repository string
}

// NewRepo creates a repository-scoped view over the given client.
func NewRepo(client *Client, workspace, repository string) *Repo {
	return &Repo{
		client:     client,
		workspace:  workspace,
		repository: repository,
	}
}

// Workspace returns the bound workspace id.
func (r *Repo) Workspace() string { return r.workspace }

// Repository returns the bound repository slug.
func (r *Repo) Repository() string { return r.repository }

// FindPullRequestByIssueKey walks the paginated pull request list
// until a PR whose source branch name contains the issue key is found
// or the pages are exhausted. Pages are fetched lazily, so the walk
// stops at the first hit.
func (r *Repo) FindPullRequestByIssueKey(
	ctx context.Context,
	issueKey string,
) (*PullRequest, error) {
	path := fmt.Sprintf(
		"/repositories/%s/%s/pullrequests?%s",
		r.workspace, r.repository, prStatesQuery,
	)

	var checked []string
	for path != "" {
		var page ListResponse[PullRequest]
		if err := r.client.Get(ctx, path, &page); err != nil {
			return nil, fmt.Errorf(
				"listing pull requests for %s/%s: %w",
				r.workspace, r.repository, err,
			)
		}

		for i := range page.Values {
			branch := page.Values[i].Source.Branch.Name
			checked = append(checked, branch)
			if strings.Contains(branch, issueKey) {
				return &page.Values[i], nil
			}
		}

		if page.Next == "" {
			break
		}
		path = r.client.StripAPIBase(page.Next)
	}

	return nil, &NoPullRequestError{
		IssueKey:        issueKey,
		CheckedBranches: checked,
	}
}

// GetPullRequest fetches a single pull request with its participants.
func (r *Repo) GetPullRequest(
	ctx context.Context,
	prID int,
) (*PullRequest, error) {
	path := fmt.Sprintf(
		"/repositories/%s/%s/pullrequests/%d",
		r.workspace, r.repository, prID,
	)

	var pr PullRequest
	if err := r.client.Get(ctx, path, &pr); err != nil {
		return nil, fmt.Errorf("fetching pull request %d: %w", prID, err)
	}
	return &pr, nil
}

// GetCommits fetches every commit on a pull request across pages.
func (r *Repo) GetCommits(
	ctx context.Context,
	prID int,
) ([]model.Commit, error) {
	path := fmt.Sprintf(
		"/repositories/%s/%s/pullrequests/%d/commits?pagelen=100",
		r.workspace, r.repository, prID,
	)

	var commits []model.Commit
	for path != "" {
		var page ListResponse[Commit]
		if err := r.client.Get(ctx, path, &page); err != nil {
			return nil, fmt.Errorf(
				"fetching commits for pull request %d: %w", prID, err,
			)
		}

		for _, c := range page.Values {
			commits = append(commits, model.Commit{
				Hash:    c.Hash,
				Message: c.Message,
				Author:  commitAuthorName(c.Author),
				Date:    c.Date,
				Link:    c.Links.HTML.Href,
			})
		}

		if page.Next == "" {
			break
		}
		path = r.client.StripAPIBase(page.Next)
	}

	return commits, nil
}

// Snapshot assembles an immutable PullRequestSnapshot for the issue:
// it locates the PR by source branch, loads its participants for the
// approval roster, and normalizes the lifecycle state. Approval
// loading is best effort; a failure there leaves the roster empty
// rather than failing the snapshot.
func (r *Repo) Snapshot(
	ctx context.Context,
	issueKey string,
) (*model.PullRequestSnapshot, error) {
	pr, err := r.FindPullRequestByIssueKey(ctx, issueKey)
	if err != nil {
		return nil, err
	}

	snap := &model.PullRequestSnapshot{
		ID:           pr.ID,
		Title:        pr.Title,
		Status:       status.NormalizePRState(pr.State, pr.Draft),
		RawState:     pr.State,
		Draft:        pr.Draft,
		Author:       pr.Author.DisplayName,
		Created:      pr.CreatedOn,
		SourceBranch: pr.Source.Branch.Name,
		DestBranch:   pr.Destination.Branch.Name,
		Link:         pr.Links.HTML.Href,
	}

	detail, err := r.GetPullRequest(ctx, pr.ID)
	if err != nil {
		return snap, nil
	}

	for _, p := range detail.Participants {
		if !p.Approved {
			continue
		}
		snap.Approvals++
		snap.Approvers = append(snap.Approvers, model.Approver{
			Name:      participantName(p.User),
			AccountID: p.User.AccountID,
		})
	}
	snap.Approved = snap.Approvals > 0

	return snap, nil
}

// participantName picks the best available display name for a user.
func participantName(u User) string {
	switch {
	case u.DisplayName != "":
		return u.DisplayName
	case u.Nickname != "":
		return u.Nickname
	case u.Username != "":
		return u.Username
	default:
		return "Unknown"
	}
}

// commitAuthorName resolves a commit author to a display name, falling
// back to the raw signature up to the email bracket.
func commitAuthorName(a CommitAuthor) string {
	if a.User != nil && a.User.DisplayName != "" {
		return a.User.DisplayName
	}
	if a.Raw != "" {
		name := strings.TrimSpace(strings.SplitN(a.Raw, "<", 2)[0])
		if name != "" {
			return name
		}
	}
	return "Unknown"
}
