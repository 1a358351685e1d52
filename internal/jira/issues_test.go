package jira

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nhle/pr-overview/internal/status"
)

func TestGetIssueStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/rest/api/2/issue/PROJ-1" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			if got := r.Header.Get("Authorization"); got != "Bearer tok" {
				t.Errorf("unexpected auth header %q", got)
			}
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, `{
				"key": "PROJ-1",
				"fields": {"status": {
					"name": "In Review",
					"statusCategory": {"key": "INDETERMINATE"}
				}}
			}`)
		},
	))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	snap, err := c.GetIssueStatus(context.Background(), "PROJ-1")
	if err != nil {
		t.Fatalf("GetIssueStatus: %v", err)
	}

	if snap.Name != "in review" {
		t.Errorf("Name = %q, want %q", snap.Name, "in review")
	}
	if snap.Category != status.CategoryIndeterminate {
		t.Errorf("Category = %q, want %q", snap.Category, status.CategoryIndeterminate)
	}
}

func TestGetIssueStatusServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			io.WriteString(w, `{"errorMessages":["boom"]}`)
		},
	))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	if _, err := c.GetIssueStatus(context.Background(), "PROJ-1"); err == nil {
		t.Fatal("expected error on 500 response")
	}
}

func TestGetTransitionsPreservesOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"transitions": [
				{"id":"11","name":"Close","to":{"name":"Closed","statusCategory":{"key":"done"}}},
				{"id":"21","name":"Mark Done","to":{"name":"Done","statusCategory":{"key":"done"}}}
			]}`)
		},
	))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	transitions, err := c.GetTransitions(context.Background(), "PROJ-1")
	if err != nil {
		t.Fatalf("GetTransitions: %v", err)
	}

	if len(transitions) != 2 {
		t.Fatalf("got %d transitions, want 2", len(transitions))
	}
	if transitions[0].ID != "11" || transitions[1].ID != "21" {
		t.Errorf("order not preserved: %q, %q", transitions[0].ID, transitions[1].ID)
	}
}

func TestDoTransitionPostsID(t *testing.T) {
	var posted map[string]map[string]string

	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				t.Errorf("method = %s, want POST", r.Method)
			}
			if err := json.NewDecoder(r.Body).Decode(&posted); err != nil {
				t.Errorf("decoding body: %v", err)
			}
			w.WriteHeader(http.StatusNoContent)
		},
	))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	if err := c.DoTransition(context.Background(), "PROJ-1", "21"); err != nil {
		t.Fatalf("DoTransition: %v", err)
	}

	if posted["transition"]["id"] != "21" {
		t.Errorf("posted transition id = %q, want %q", posted["transition"]["id"], "21")
	}
}

func TestGetPropertyNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		},
	))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	var out map[string]bool
	err := c.GetProperty(context.Background(), "PROJ-1", "overview-app.automationState", &out)
	if !IsNotFound(err) {
		t.Fatalf("err = %v, want NotFoundError", err)
	}
}

func TestPropertyRoundTrip(t *testing.T) {
	var stored json.RawMessage

	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPut:
				body, _ := io.ReadAll(r.Body)
				stored = body
				w.WriteHeader(http.StatusCreated)
			case http.MethodGet:
				w.Header().Set("Content-Type", "application/json")
				resp := map[string]interface{}{
					"key":   "overview-app.automationState",
					"value": json.RawMessage(stored),
				}
				json.NewEncoder(w).Encode(resp)
			}
		},
	))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	ctx := context.Background()

	in := map[string]bool{"autoMovedToDone": true}
	if err := c.SetProperty(ctx, "PROJ-1", "overview-app.automationState", in); err != nil {
		t.Fatalf("SetProperty: %v", err)
	}

	var out map[string]bool
	if err := c.GetProperty(ctx, "PROJ-1", "overview-app.automationState", &out); err != nil {
		t.Fatalf("GetProperty: %v", err)
	}
	if !out["autoMovedToDone"] {
		t.Errorf("round-tripped value = %v, want autoMovedToDone=true", out)
	}
}

func TestClientRetriesOn429(t *testing.T) {
	attempts := 0

	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			attempts++
			if attempts == 1 {
				w.Header().Set("Retry-After", "0")
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			io.WriteString(w, `{"transitions": []}`)
		},
	))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	if _, err := c.GetTransitions(context.Background(), "PROJ-1"); err != nil {
		t.Fatalf("GetTransitions after 429: %v", err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}
