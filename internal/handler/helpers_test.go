package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/msomdec/postwriter/internal/domain"
	"github.com/msomdec/postwriter/internal/handler"
	"github.com/msomdec/postwriter/internal/repository/sqlite"
	"github.com/msomdec/postwriter/internal/service"
	"github.com/msomdec/postwriter/internal/writer"
)

const testTokenSecret = "test-secret-for-handler-tests-0123456789"

type testApp struct {
	srv    *httptest.Server
	writer *writer.Writer[domain.NewPost, domain.Post]
}

func newTestApp(t *testing.T, tokens *service.TokenVerifier) *testApp {
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

	posts := service.NewPostService(w, db.Posts(), nil, 5*time.Second)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, posts, w, tokens, nil)

	srv := httptest.NewServer(handler.RequestID(handler.SecurityHeaders(mux)))
	t.Cleanup(srv.Close)
	return &testApp{srv: srv, writer: w}
}
