package service_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/msomdec/postwriter/internal/domain"
	"github.com/msomdec/postwriter/internal/repository/sqlite"
	"github.com/msomdec/postwriter/internal/service"
	"github.com/msomdec/postwriter/internal/sqlite3"
	"github.com/msomdec/postwriter/internal/writer"
)

func newTestPostService(t *testing.T, limiter *service.RateLimiter) (*service.PostService, *writer.Writer[domain.NewPost, domain.Post]) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	w, err := writer.Start(context.Background(), writer.Config{
		Path:  dbPath,
		Setup: sqlite.Setup,
	}, sqlite.InsertPost)
	if err != nil {
		t.Fatalf("start writer: %v", err)
	}
	t.Cleanup(func() { w.Close() })

	db, err := sqlite.Open(dbPath, 2)
	if err != nil {
		t.Fatalf("open read side: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return service.NewPostService(w, db.Posts(), limiter, 5*time.Second), w
}

func TestPostService_Validate(t *testing.T) {
	svc := service.NewPostService(nil, nil, nil, 0)

	tests := []struct {
		name   string
		req    domain.NewPost
		fields []string
	}{
		{"valid", domain.NewPost{Content: "hi", Email: "a@example.com"}, nil},
		{"empty content", domain.NewPost{Email: "a@example.com"}, []string{"content: must not be empty"}},
		{"leading NUL", domain.NewPost{Content: "\x00hidden", Email: "a@example.com"}, []string{"content: must not be empty"}},
		{"inner NUL", domain.NewPost{Content: "a\x00b", Email: "a@example.com"}, nil},
		{"bad email", domain.NewPost{Content: "hi", Email: "foo"}, []string{"email: invalid: foo"}},
		{"display name", domain.NewPost{Content: "hi", Email: "Al <a@example.com>"}, []string{"email: invalid: Al <a@example.com>"}},
		{"both", domain.NewPost{Email: "foo"}, []string{"content: must not be empty", "email: invalid: foo"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Validate(tt.req)
			if tt.fields == nil {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			var verr *domain.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if !errors.Is(err, domain.ErrInvalidInput) {
				t.Fatal("expected ValidationError to match ErrInvalidInput")
			}
			if strings.Join(verr.Fields, "|") != strings.Join(tt.fields, "|") {
				t.Fatalf("expected fields %q, got %q", tt.fields, verr.Fields)
			}
		})
	}
}

func TestPostService_CreateAndGet(t *testing.T) {
	svc, _ := newTestPostService(t, nil)
	ctx := context.Background()

	post, err := svc.Create(ctx, domain.NewPost{Content: "hello", Email: "a@example.com"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := svc.Get(ctx, post.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Content != "hello" {
		t.Fatalf("expected content hello, got %q", got.Content)
	}

	list, err := svc.ListByEmail(ctx, "a@example.com", 0)
	if err != nil {
		t.Fatalf("ListByEmail: %v", err)
	}
	if len(list) != 1 || list[0].ID != post.ID {
		t.Fatalf("expected one post %d, got %+v", post.ID, list)
	}
}

func TestPostService_Create_Invalid(t *testing.T) {
	svc, w := newTestPostService(t, nil)

	_, err := svc.Create(context.Background(), domain.NewPost{Content: "", Email: "nope"})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if s := w.Stats(); s.Commits+s.Rollbacks != 0 {
		t.Fatal("expected invalid request to never reach the writer")
	}
}

func TestPostService_Create_WriterClosed(t *testing.T) {
	svc, w := newTestPostService(t, nil)
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	_, err := svc.Create(context.Background(), domain.NewPost{Content: "hi", Email: "a@example.com"})
	if !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

type failingWriter struct{ err error }

func (f failingWriter) Call(context.Context, domain.NewPost) (domain.Post, error) {
	return domain.Post{}, f.err
}

func TestPostService_Create_ConstraintIsInternal(t *testing.T) {
	stepErr := &sqlite3.StepError{Code: 275, Msg: "CHECK constraint failed: length(content) > 0"}
	svc := service.NewPostService(failingWriter{err: stepErr}, nil, nil, 0)

	_, err := svc.Create(context.Background(), domain.NewPost{Content: "hi", Email: "a@example.com"})
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected constraint failure to stay internal, got %v", err)
	}
	if !errors.Is(err, sqlite3.ErrConstraint) {
		t.Fatalf("expected wrapped ErrConstraint, got %v", err)
	}
}

func TestPostService_Create_RateLimited(t *testing.T) {
	svc, _ := newTestPostService(t, service.NewRateLimiter(0, 1))
	ctx := context.Background()

	if _, err := svc.Create(ctx, domain.NewPost{Content: "one", Email: "a@example.com"}); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	_, err := svc.Create(ctx, domain.NewPost{Content: "two", Email: "a@example.com"})
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestPostService_Get_NotFound(t *testing.T) {
	svc, _ := newTestPostService(t, nil)

	_, err := svc.Get(context.Background(), 42)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPostService_ListByEmail_Invalid(t *testing.T) {
	svc, _ := newTestPostService(t, nil)

	_, err := svc.ListByEmail(context.Background(), "not-an-email", 10)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
