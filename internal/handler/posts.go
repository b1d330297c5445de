package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/msomdec/postwriter/internal/domain"
	"github.com/msomdec/postwriter/internal/service"
)

var errTrailingData = errors.New("unexpected data after JSON body")

// PostHandler serves the post endpoints.
type PostHandler struct {
	posts *service.PostService
}

func NewPostHandler(posts *service.PostService) *PostHandler {
	return &PostHandler{posts: posts}
}

// HandleCreate handles POST /posts.
func (h *PostHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req NewPostRequest
	if err := readJSON(w, r, &req); err != nil {
		writeErrors(w, []string{"body: invalid JSON: " + err.Error()})
		return
	}

	post, err := h.posts.Create(r.Context(), req.toDomain())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPostDTO(post))
}

// HandleGet handles GET /posts/{id}.
func (h *PostHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	post, err := h.posts.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPostDTO(post))
}

// HandleListByEmail handles GET /users/{email}/posts.
func (h *PostHandler) HandleListByEmail(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeErrors(w, []string{"limit: must be a non-negative integer"})
			return
		}
		limit = n
	}

	posts, err := h.posts.ListByEmail(r.Context(), r.PathValue("email"), limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPostDTOs(posts))
}

// HandleEcho handles POST /echo. It decodes a new post and sends it back
// without touching the database.
func HandleEcho(w http.ResponseWriter, r *http.Request) {
	var req NewPostRequest
	if err := readJSON(w, r, &req); err != nil {
		writeErrors(w, []string{"body: invalid JSON: " + err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// writeServiceError maps a service error to a response.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		writeErrors(w, verr.Fields)
	case errors.Is(err, domain.ErrInvalidInput):
		writeErrors(w, []string{err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate limited")
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, domain.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
	case errors.Is(err, context.Canceled):
		// The client went away; nobody reads this.
		w.WriteHeader(499)
	default:
		slog.Error("request failed", "error", err, "request_id", RequestIDFromContext(r.Context()))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
