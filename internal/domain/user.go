package domain

import "context"

// User is an author, identified by email. Users are created implicitly by
// their first post.
type User struct {
	ID        int64
	Email     string
	CreatedAt int64
	UpdatedAt int64
}

// UserRepository defines read operations for users.
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (*User, error)
}
