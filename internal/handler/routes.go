package handler

import (
	"net/http"

	"github.com/msomdec/postwriter/internal/service"
)

// RegisterRoutes sets up all HTTP routes on the given mux. tokens may be
// nil to leave the write endpoint open; metrics may be nil to skip
// /metrics.
func RegisterRoutes(mux *http.ServeMux, posts *service.PostService, writer WriterStatus, tokens *service.TokenVerifier, metrics http.Handler) {
	ph := NewPostHandler(posts)

	create := http.Handler(http.HandlerFunc(ph.HandleCreate))
	if tokens != nil {
		create = RequireToken(tokens, create)
	}

	mux.Handle("POST /posts", create)
	mux.HandleFunc("GET /posts/{id}", ph.HandleGet)
	mux.HandleFunc("GET /users/{email}/posts", ph.HandleListByEmail)
	mux.HandleFunc("POST /echo", HandleEcho)
	mux.HandleFunc("GET /healthz", HandleHealthz(writer))
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}
}
