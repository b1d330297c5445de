package sqlite_test

import (
	"context"
	"errors"
	"testing"

	"github.com/msomdec/postwriter/internal/domain"
)

func TestUserRepository_GetByEmail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	post, err := s.writer.Call(ctx, domain.NewPost{Content: "hi", Email: "find@example.com"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := s.db.Users().GetByEmail(ctx, "FIND@example.com")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if got.ID != post.UserID {
		t.Fatalf("expected ID %d, got %d", post.UserID, got.ID)
	}
	if got.Email != "find@example.com" {
		t.Fatalf("expected email as first written, got %q", got.Email)
	}
}

func TestUserRepository_GetByEmail_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.db.Users().GetByEmail(context.Background(), "nobody@example.com")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
