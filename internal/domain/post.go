package domain

import "context"

// NewPost is a request to publish a post as the user with Email.
type NewPost struct {
	Content string
	Email   string
}

// Post is a stored post. Timestamps are Unix milliseconds.
type Post struct {
	ID        int64
	UserID    int64
	Content   string
	CreatedAt int64
	UpdatedAt int64
}

// PostRepository defines read operations for posts. Writes go through the
// single writer.
type PostRepository interface {
	GetByID(ctx context.Context, id int64) (*Post, error)
	ListByEmail(ctx context.Context, email string, limit int) ([]Post, error)
}
