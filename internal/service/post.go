package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/msomdec/postwriter/internal/domain"
	"github.com/msomdec/postwriter/internal/writer"
)

// DefaultListLimit is used by ListByEmail when no positive limit is given.
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// PostWriter submits a post to the single writer.
type PostWriter interface {
	Call(ctx context.Context, req domain.NewPost) (domain.Post, error)
}

// PostService validates and publishes posts and serves them back.
type PostService struct {
	writer      PostWriter
	posts       domain.PostRepository
	limiter     *RateLimiter
	callTimeout time.Duration
}

// NewPostService creates a new PostService. limiter may be nil to disable
// per-author rate limiting.
func NewPostService(w PostWriter, posts domain.PostRepository, limiter *RateLimiter, callTimeout time.Duration) *PostService {
	return &PostService{
		writer:      w,
		posts:       posts,
		limiter:     limiter,
		callTimeout: callTimeout,
	}
}

// Validate checks a new post and returns a *domain.ValidationError listing
// every problem, or nil.
func (s *PostService) Validate(req domain.NewPost) error {
	var fields []string
	// length() in SQL stops at the first NUL, so the CHECK sees "\x00..." as empty.
	if req.Content == "" || strings.HasPrefix(req.Content, "\x00") {
		fields = append(fields, "content: must not be empty")
	}
	if !validEmail(req.Email) {
		fields = append(fields, "email: invalid: "+req.Email)
	}
	if len(fields) > 0 {
		return &domain.ValidationError{Fields: fields}
	}
	return nil
}

// validEmail accepts a bare address only, not "Name <addr>".
func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

// Create validates req and publishes it through the writer.
func (s *PostService) Create(ctx context.Context, req domain.NewPost) (*domain.Post, error) {
	if err := s.Validate(req); err != nil {
		return nil, err
	}
	if s.limiter != nil && !s.limiter.Allow(req.Email) {
		return nil, domain.ErrRateLimited
	}

	if s.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.callTimeout)
		defer cancel()
	}

	post, err := s.writer.Call(ctx, req)
	if err != nil {
		if errors.Is(err, writer.ErrClosed) {
			return nil, domain.ErrUnavailable
		}
		return nil, fmt.Errorf("create post: %w", err)
	}
	return &post, nil
}

func (s *PostService) Get(ctx context.Context, id int64) (*domain.Post, error) {
	return s.posts.GetByID(ctx, id)
}

// ListByEmail returns the newest posts by email. limit is clamped to
// [1, MaxListLimit]; zero or negative selects DefaultListLimit.
func (s *PostService) ListByEmail(ctx context.Context, email string, limit int) ([]domain.Post, error) {
	if !validEmail(email) {
		return nil, &domain.ValidationError{Fields: []string{"email: invalid: " + email}}
	}
	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}
	return s.posts.ListByEmail(ctx, email, limit)
}
