package tracker

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.Client(), "")
	if err != nil {
		t.Fatalf("NewClient() error: %v", err)
	}
	c.gh.BaseURL, _ = url.Parse(srv.URL + "/")
	return c
}

func TestClient_CreateIssue(t *testing.T) {
	var got map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("POST /repos/octo/events/issues", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"number": 7}`)
	})
	c := newTestClient(t, mux)

	n, err := c.CreateIssue(context.Background(), "octo/events", "Setup", "Please visit", "mona")
	if err != nil {
		t.Fatalf("CreateIssue() error: %v", err)
	}
	if n != 7 {
		t.Errorf("CreateIssue() = %d, want 7", n)
	}
	if got["title"] != "Setup" || got["body"] != "Please visit" || got["assignee"] != "mona" {
		t.Errorf("unexpected request body: %v", got)
	}
}

func TestClient_CreateComment(t *testing.T) {
	var body string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /repos/octo/events/issues/3/comments", func(w http.ResponseWriter, r *http.Request) {
		var c struct{ Body string }
		json.NewDecoder(r.Body).Decode(&c)
		body = c.Body
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id": 1}`)
	})
	c := newTestClient(t, mux)

	if err := c.CreateComment(context.Background(), "octo/events", 3, "🌟 done"); err != nil {
		t.Fatalf("CreateComment() error: %v", err)
	}
	if body != "🌟 done" {
		t.Errorf("comment body = %q", body)
	}
}

func TestClient_HasComment(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/octo/events/issues/3/comments", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, `[{"id": 3, "body": "🌟 here you go", "user": {"id": 42}}]`)
			return
		}
		w.Header().Set("Link", fmt.Sprintf(`<%s?page=2>; rel="next"`, "http://"+r.Host+r.URL.Path))
		fmt.Fprint(w, `[{"id": 1, "body": "4/abc", "user": {"id": 9}}, {"id": 2, "body": "🌟 spoofed", "user": {"id": 9}}]`)
	})
	c := newTestClient(t, mux)

	ok, err := c.HasComment(context.Background(), "octo/events", 3, 42, "🌟")
	if err != nil {
		t.Fatalf("HasComment() error: %v", err)
	}
	if !ok {
		t.Error("HasComment() = false, want the second page to match")
	}

	ok, err = c.HasComment(context.Background(), "octo/events", 3, 77, "🌟")
	if err != nil {
		t.Fatalf("HasComment() error: %v", err)
	}
	if ok {
		t.Error("HasComment() = true for an author that never commented")
	}
}

func TestClient_ReadFile(t *testing.T) {
	content := base64.StdEncoding.EncodeToString([]byte("gcal_calendar: team\n"))
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/octo/events/contents/.github/calendar.yml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"type": "file", "encoding": "base64", "content": %q}`, content)
	})
	mux.HandleFunc("GET /repos/octo/empty/contents/.github/calendar.yml", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message": "Not Found"}`)
	})
	c := newTestClient(t, mux)

	data, err := c.ReadFile(context.Background(), "octo/events", ".github/calendar.yml")
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	if string(data) != "gcal_calendar: team\n" {
		t.Errorf("ReadFile() = %q", data)
	}

	_, err = c.ReadFile(context.Background(), "octo/empty", ".github/calendar.yml")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("ReadFile() error = %v, want %v", err, ErrNotFound)
	}
}

func TestNewApp_BadKey(t *testing.T) {
	if _, err := NewApp(1, []byte("not a pem key"), ""); err == nil {
		t.Fatal("NewApp() accepted an invalid private key")
	}
}
