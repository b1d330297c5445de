package handler_test

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/msomdec/postwriter/internal/handler"
)

func postJSON(t *testing.T, url, body string, header http.Header) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return v
}

func TestIntegration_CreateGetList(t *testing.T) {
	app := newTestApp(t, nil)

	// 1. Create a post.
	resp := postJSON(t, app.srv.URL+"/posts", `{"content":"hello","email":"integ@example.com"}`, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", resp.StatusCode)
	}
	if resp.Header.Get(handler.RequestIDHeader) == "" {
		t.Fatal("expected X-Request-ID on response")
	}
	created := decode[handler.PostDTO](t, resp)
	if created.ID == 0 || created.UserID == 0 || created.Content != "hello" {
		t.Fatalf("unexpected post %+v", created)
	}
	if created.CreatedAt == 0 || created.CreatedAt != created.UpdatedAt {
		t.Fatalf("expected equal non-zero timestamps, got %+v", created)
	}

	// 2. Fetch it back.
	resp, err := http.Get(fmt.Sprintf("%s/posts/%d", app.srv.URL, created.ID))
	if err != nil {
		t.Fatalf("GET /posts/{id}: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", resp.StatusCode)
	}
	if got := decode[handler.PostDTO](t, resp); got != created {
		t.Fatalf("expected %+v, got %+v", created, got)
	}

	// 3. List by author.
	resp, err = http.Get(app.srv.URL + "/users/integ@example.com/posts?limit=10")
	if err != nil {
		t.Fatalf("GET /users/{email}/posts: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", resp.StatusCode)
	}
	list := decode[[]handler.PostDTO](t, resp)
	if len(list) != 1 || list[0] != created {
		t.Fatalf("expected [%+v], got %+v", created, list)
	}
}

func TestIntegration_CreateValidation(t *testing.T) {
	app := newTestApp(t, nil)

	tests := []struct {
		name string
		body string
		want []string
	}{
		{"empty content", `{"content":"","email":"a@example.com"}`, []string{"content: must not be empty"}},
		{"bad email", `{"content":"x","email":"foo"}`, []string{"email: invalid: foo"}},
		{"both", `{"content":"","email":"foo"}`, []string{"content: must not be empty", "email: invalid: foo"}},
		{"leading NUL", `{"content":"\u0000hidden","email":"a@example.com"}`, []string{"content: must not be empty"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, app.srv.URL+"/posts", tt.body, nil)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", resp.StatusCode)
			}
			got := decode[[]string](t, resp)
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Fatalf("expected errors %q, got %q", tt.want, got)
			}
			for _, msg := range got {
				if strings.Contains(msg, "constraint") {
					t.Fatalf("expected no storage detail in %q", msg)
				}
			}
		})
	}

	for _, body := range []string{`not json`, `{"content":"x","email":"a@example.com","extra":1}`, `{} {}`} {
		resp := postJSON(t, app.srv.URL+"/posts", body, nil)
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("body %q: expected 400, got %d", body, resp.StatusCode)
		}
	}

	if s := app.writer.Stats(); s.Commits+s.Rollbacks != 0 {
		t.Fatal("expected rejected requests to never reach the writer")
	}
}

func TestIntegration_NotFound(t *testing.T) {
	app := newTestApp(t, nil)

	for _, path := range []string{"/posts/12345", "/posts/abc"} {
		resp, err := http.Get(app.srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("GET %s: expected 404, got %d", path, resp.StatusCode)
		}
	}

	resp, err := http.Get(app.srv.URL + "/users/a@example.com/posts?limit=-1")
	if err != nil {
		t.Fatalf("GET list: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative limit, got %d", resp.StatusCode)
	}
}

func TestIntegration_Echo(t *testing.T) {
	app := newTestApp(t, nil)

	resp := postJSON(t, app.srv.URL+"/echo", `{"content":"hi","email":"e@example.com"}`, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	got := decode[handler.NewPostRequest](t, resp)
	if got.Content != "hi" || got.Email != "e@example.com" {
		t.Fatalf("unexpected echo %+v", got)
	}
	if s := app.writer.Stats(); s.Commits != 0 {
		t.Fatal("expected echo to not write")
	}
}

func TestIntegration_TokenGate(t *testing.T) {
	tokens := newTestVerifier(t)
	app := newTestApp(t, tokens)
	body := `{"content":"gated","email":"g@example.com"}`

	resp := postJSON(t, app.srv.URL+"/posts", body, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("without token: expected 401, got %d", resp.StatusCode)
	}

	resp = postJSON(t, app.srv.URL+"/posts", body, http.Header{"Authorization": {"Bearer nope"}})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad token: expected 401, got %d", resp.StatusCode)
	}

	token, err := tokens.Issue("bench", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	resp = postJSON(t, app.srv.URL+"/posts", body, http.Header{"Authorization": {"Bearer " + token}})
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("with token: expected 201, got %d", resp.StatusCode)
	}

	// Reads stay open.
	resp, err = http.Get(app.srv.URL + "/users/g@example.com/posts")
	if err != nil {
		t.Fatalf("GET list: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", resp.StatusCode)
	}
}

func TestIntegration_ConcurrentPosts(t *testing.T) {
	app := newTestApp(t, nil)

	const n = 20
	var wg sync.WaitGroup
	codes := make([]int, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			body := fmt.Sprintf(`{"content":"post %d","email":"many@example.com"}`, i)
			resp, err := http.Post(app.srv.URL+"/posts", "application/json", strings.NewReader(body))
			if err != nil {
				return
			}
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			codes[i] = resp.StatusCode
		}()
	}
	wg.Wait()

	for i, code := range codes {
		if code != http.StatusCreated {
			t.Fatalf("request %d: expected 201, got %d", i, code)
		}
	}

	resp, err := http.Get(app.srv.URL + "/users/many@example.com/posts?limit=100")
	if err != nil {
		t.Fatalf("GET list: %v", err)
	}
	if list := decode[[]handler.PostDTO](t, resp); len(list) != n {
		t.Fatalf("expected %d posts, got %d", n, len(list))
	}
}

func TestIntegration_WriterClosed(t *testing.T) {
	app := newTestApp(t, nil)
	if err := app.writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	resp := postJSON(t, app.srv.URL+"/posts", `{"content":"late","email":"a@example.com"}`, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
}
