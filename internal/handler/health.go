package handler

import (
	"net/http"

	"github.com/msomdec/postwriter/internal/writer"
)

// WriterStatus reports the lifecycle state of the single writer.
type WriterStatus interface {
	State() writer.State
}

// HandleHealthz responds 200 while the writer is running and 503
// otherwise.
func HandleHealthz(ws WriterStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := ws.State()
		if state != writer.StateRunning {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "writer": state.String()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "writer": state.String()})
	}
}
