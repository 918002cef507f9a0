package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"joker-briscola/internal/cache"
	"joker-briscola/internal/database"
)

// ResultReader serves the results API.
type ResultReader interface {
	GetAll() ([]database.MatchResult, error)
	GetByID(id string) (database.MatchResult, error)
	GetByPlayer(name string) ([]database.MatchResult, error)
}

// HandleRoutes registers the REST API on mux.
func HandleRoutes(mux *http.ServeMux, hub *Hub, results ResultReader, logger *zap.Logger) {
	mux.HandleFunc("GET /api/results/player/{name}", func(w http.ResponseWriter, r *http.Request) {
		GetResultsByPlayerHandler(results, w, r)
	})
	mux.HandleFunc("GET /api/results/{id}", func(w http.ResponseWriter, r *http.Request) {
		GetResultHandler(results, w, r)
	})
	mux.HandleFunc("GET /api/results", func(w http.ResponseWriter, r *http.Request) {
		GetResultsHandler(results, w, r)
	})
	mux.HandleFunc("GET /api/rooms/{code}", func(w http.ResponseWriter, r *http.Request) {
		GetRoomSnapshotHandler(hub.snapshots, w, r)
	})
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"status": "ok", "rooms": hub.Rooms().Count()})
	})

	logger.Info("registered routes", zap.Strings("routes", []string{
		"/api/results", "/api/results/{id}", "/api/results/player/{name}", "/api/rooms/{code}", "/health",
	}))
}

func GetResultsByPlayerHandler(results ResultReader, w http.ResponseWriter, r *http.Request) {
	player := r.PathValue("name")
	if player == "" {
		http.Error(w, "Player name is required", http.StatusBadRequest)
		return
	}

	list, err := results.GetByPlayer(player)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "No results found for player", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to fetch results", http.StatusInternalServerError)
		return
	}
	writeJSON(w, list)
}

func GetResultHandler(results ResultReader, w http.ResponseWriter, r *http.Request) {
	result, err := results.GetByID(r.PathValue("id"))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "Result not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to fetch result", http.StatusInternalServerError)
		return
	}
	writeJSON(w, result)
}

func GetResultsHandler(results ResultReader, w http.ResponseWriter, r *http.Request) {
	list, err := results.GetAll()
	if err != nil {
		http.Error(w, "Failed to fetch results", http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []database.MatchResult{}
	}
	writeJSON(w, list)
}

// GetRoomSnapshotHandler returns the latest authoritative snapshot of a room.
func GetRoomSnapshotHandler(snapshots cache.SnapshotCache, w http.ResponseWriter, r *http.Request) {
	code := NormalizeCode(r.PathValue("code"))
	s, err := snapshots.Get(r.Context(), code)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			http.Error(w, "No match in room "+code, http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to fetch room", http.StatusInternalServerError)
		return
	}
	writeJSON(w, s)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
