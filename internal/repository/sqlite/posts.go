package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/msomdec/postwriter/internal/domain"
	"github.com/msomdec/postwriter/internal/sqlite3"
)

const (
	insertUserSQL = `INSERT OR IGNORE INTO users (email) VALUES (?)`
	insertPostSQL = `INSERT INTO posts (content, user_id)
SELECT ?, id FROM users WHERE email = ?
RETURNING id, user_id, content, created_at, updated_at`
)

// InsertPost creates the author on first use and inserts the post. It is
// a writer operation: it runs on the writer connection inside the
// transaction the writer opened.
func InsertPost(c *sqlite3.Conn, req domain.NewPost) (domain.Post, error) {
	users, err := c.PrepareCached(insertUserSQL)
	if err != nil {
		return domain.Post{}, err
	}
	if err := users.Exec(req.Email); err != nil {
		return domain.Post{}, fmt.Errorf("insert user: %w", err)
	}

	posts, err := c.PrepareCached(insertPostSQL)
	if err != nil {
		return domain.Post{}, err
	}
	post, err := sqlite3.QueryRow(posts, []any{req.Content, req.Email}, scanPost)
	if err != nil {
		return domain.Post{}, fmt.Errorf("insert post: %w", err)
	}
	return post, nil
}

func scanPost(r *sqlite3.Row) domain.Post {
	return domain.Post{
		ID:        r.Int64(0),
		UserID:    r.Int64(1),
		Content:   r.Text(2),
		CreatedAt: r.Int64(3),
		UpdatedAt: r.Int64(4),
	}
}

// PostRepository implements domain.PostRepository using SQLite.
type PostRepository struct {
	db *sql.DB
}

// NewPostRepository creates a new SQLite-backed PostRepository.
func NewPostRepository(db *DB) *PostRepository {
	return &PostRepository{db: db.SqlDB}
}

func (r *PostRepository) GetByID(ctx context.Context, id int64) (*domain.Post, error) {
	post := &domain.Post{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, content, created_at, updated_at
		 FROM posts WHERE id = ?`, id,
	).Scan(&post.ID, &post.UserID, &post.Content, &post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("query post by id: %w", err)
	}
	return post, nil
}

// ListByEmail returns the newest posts by the user with email, newest
// first.
func (r *PostRepository) ListByEmail(ctx context.Context, email string, limit int) ([]domain.Post, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT p.id, p.user_id, p.content, p.created_at, p.updated_at
		 FROM posts p JOIN users u ON u.id = p.user_id
		 WHERE u.email = ?
		 ORDER BY p.id DESC
		 LIMIT ?`, email, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query posts by email: %w", err)
	}
	defer rows.Close()

	var posts []domain.Post
	for rows.Next() {
		var p domain.Post
		if err := rows.Scan(&p.ID, &p.UserID, &p.Content, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}
