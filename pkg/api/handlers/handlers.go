package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/cbodonnell/jigsaw/pkg/log"
	"github.com/cbodonnell/jigsaw/pkg/messages"
	"github.com/cbodonnell/jigsaw/pkg/puzzle"
	"github.com/cbodonnell/jigsaw/pkg/state"
	"github.com/cbodonnell/jigsaw/pkg/version"
	"github.com/gorilla/mux"
)

type Health struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

func HandleHealthz() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, &Health{Status: "ok", Version: version.Get()})
	}
}

// HandleGetState returns the last published tick.
func HandleGetState(stateManager state.StateManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshot, ok := getSnapshot(w, r, stateManager)
		if !ok {
			return
		}
		writeJSON(w, &messages.ServerState{
			SessionID: snapshot.SessionID,
			Timestamp: snapshot.Timestamp,
			Puzzle:    snapshot.Puzzle.Pieces,
		})
	}
}

func HandleGetPiece(stateManager state.StateManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		index, err := strconv.Atoi(mux.Vars(r)["index"])
		if err != nil {
			http.Error(w, "Index must be an integer", http.StatusBadRequest)
			return
		}

		snapshot, ok := getSnapshot(w, r, stateManager)
		if !ok {
			return
		}
		if index < 0 || index >= snapshot.Puzzle.Len() {
			http.Error(w, puzzle.ErrIndexOutOfRange.Error(), http.StatusNotFound)
			return
		}
		writeJSON(w, &snapshot.Puzzle.Pieces[index])
	}
}

func getSnapshot(w http.ResponseWriter, r *http.Request, stateManager state.StateManager) (*state.Snapshot, bool) {
	snapshot, err := stateManager.Get(r.Context())
	if err != nil {
		if errors.Is(err, state.ErrNoSession) {
			http.Error(w, "No active session", http.StatusNotFound)
			return nil, false
		}
		log.Error("failed to get snapshot: %v", err)
		http.Error(w, "Failed to get snapshot", http.StatusInternalServerError)
		return nil, false
	}
	return snapshot, true
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("failed to encode response: %v", err)
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}
