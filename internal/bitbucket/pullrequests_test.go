package bitbucket

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nhle/pr-overview/internal/status"
)

// newTestRepo wires a Repo against a test server. The server handler
// can rely on StripAPIBase handling its own absolute next URLs.
func newTestRepo(t *testing.T, handler http.HandlerFunc) (*Repo, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := NewClient(srv.URL, "user", "app-pass")
	return NewRepo(client, "acme", "widgets"), srv
}

func TestFindPullRequestByIssueKeyAcrossPages(t *testing.T) {
	var srvURL string

	repo, srv := newTestRepo(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/repositories/acme/widgets/pullrequests") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}

		page := r.URL.Query().Get("page")
		if page == "" {
			// First page: no match, points at page 2 via absolute URL.
			fmt.Fprintf(w, `{
				"values": [
					{"id": 1, "state": "OPEN", "source": {"branch": {"name": "feature/other"}}}
				],
				"next": "%s/repositories/acme/widgets/pullrequests?page=2"
			}`, srvURL)
			return
		}

		io.WriteString(w, `{
			"values": [
				{"id": 7, "title": "Add widget", "state": "MERGED",
				 "source": {"branch": {"name": "feature/PROJ-9-widget"}}}
			]
		}`)
	})
	srvURL = srv.URL

	pr, err := repo.FindPullRequestByIssueKey(context.Background(), "PROJ-9")
	if err != nil {
		t.Fatalf("FindPullRequestByIssueKey: %v", err)
	}
	if pr.ID != 7 {
		t.Errorf("pr.ID = %d, want 7", pr.ID)
	}
}

func TestFindPullRequestByIssueKeyNoMatch(t *testing.T) {
	repo, _ := newTestRepo(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"values": [
			{"id": 1, "source": {"branch": {"name": "feature/alpha"}}},
			{"id": 2, "source": {"branch": {"name": "bugfix/beta"}}}
		]}`)
	})

	_, err := repo.FindPullRequestByIssueKey(context.Background(), "PROJ-9")

	var notFound *NoPullRequestError
	if !errors.As(err, &notFound) {
		t.Fatalf("err = %v, want NoPullRequestError", err)
	}
	if len(notFound.CheckedBranches) != 2 {
		t.Errorf("CheckedBranches = %v, want both branches listed", notFound.CheckedBranches)
	}
	if !strings.Contains(notFound.Error(), "feature/alpha") {
		t.Errorf("error text %q should list checked branches", notFound.Error())
	}
}

func TestSnapshotCollectsApprovals(t *testing.T) {
	repo, _ := newTestRepo(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/pullrequests/7") {
			io.WriteString(w, `{
				"id": 7, "state": "OPEN", "draft": true,
				"participants": [
					{"approved": true, "user": {"display_name": "Ana", "account_id": "a1"}},
					{"approved": false, "user": {"display_name": "Bob"}},
					{"approved": true, "user": {"nickname": "cveta", "account_id": "c3"}}
				]
			}`)
			return
		}

		io.WriteString(w, `{"values": [
			{"id": 7, "title": "Draft work", "state": "OPEN", "draft": true,
			 "author": {"display_name": "Ana"},
			 "source": {"branch": {"name": "PROJ-4-draft"}},
			 "destination": {"branch": {"name": "main"}},
			 "links": {"html": {"href": "https://example.test/pr/7"}}}
		]}`)
	})

	snap, err := repo.Snapshot(context.Background(), "PROJ-4")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	if snap.Status != status.PRDraft {
		t.Errorf("Status = %q, want %q", snap.Status, status.PRDraft)
	}
	if snap.Approvals != 2 || !snap.Approved {
		t.Errorf("Approvals = %d, Approved = %v, want 2/true", snap.Approvals, snap.Approved)
	}
	if snap.Approvers[1].Name != "cveta" {
		t.Errorf("second approver = %q, want nickname fallback", snap.Approvers[1].Name)
	}
}

func TestGetCommitsAuthorFallback(t *testing.T) {
	repo, _ := newTestRepo(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"values": [
			{"hash": "abc", "message": "one", "author": {"user": {"display_name": "Ana"}}},
			{"hash": "def", "message": "two", "author": {"raw": "Bob Builder <bob@example.test>"}},
			{"hash": "ghi", "message": "three", "author": {}}
		]}`)
	})

	commits, err := repo.GetCommits(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetCommits: %v", err)
	}

	want := []string{"Ana", "Bob Builder", "Unknown"}
	for i, w := range want {
		if commits[i].Author != w {
			t.Errorf("commit %d author = %q, want %q", i, commits[i].Author, w)
		}
	}
}
