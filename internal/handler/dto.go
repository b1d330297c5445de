package handler

import (
	"github.com/msomdec/postwriter/internal/domain"
)

// NewPostRequest is the JSON body of POST /posts.
type NewPostRequest struct {
	Content string `json:"content"`
	Email   string `json:"email"`
}

func (r NewPostRequest) toDomain() domain.NewPost {
	return domain.NewPost{Content: r.Content, Email: r.Email}
}

// PostDTO is the JSON representation of a post. Timestamps are Unix
// milliseconds.
type PostDTO struct {
	ID        int64  `json:"id"`
	UserID    int64  `json:"user_id"`
	Content   string `json:"content"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

func toPostDTO(p *domain.Post) PostDTO {
	return PostDTO{
		ID:        p.ID,
		UserID:    p.UserID,
		Content:   p.Content,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func toPostDTOs(posts []domain.Post) []PostDTO {
	dtos := make([]PostDTO, len(posts))
	for i := range posts {
		dtos[i] = toPostDTO(&posts[i])
	}
	return dtos
}
