package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/cbodonnell/dropfour/pkg/log"
	"github.com/cbodonnell/dropfour/pkg/repositories"
	"github.com/gorilla/mux"
)

const (
	defaultLimit = 10
	maxLimit     = 100
)

// HandleLeaderboard returns the top players ordered by games won.
func HandleLeaderboard(repository repositories.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := repository.ListLeaderboard(r.Context(), limitParam(r))
		if err != nil {
			log.Error("failed to list leaderboard: %v", err)
			http.Error(w, "Failed to list leaderboard", http.StatusInternalServerError)
			return
		}
		writeJSON(w, records)
	}
}

// HandleGetPlayer returns one player's win/loss record.
func HandleGetPlayer(repository repositories.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username := mux.Vars(r)["username"]
		record, err := repository.GetPlayer(r.Context(), username)
		if err != nil {
			if repositories.IsNotFound(err) {
				http.Error(w, "Player not found", http.StatusNotFound)
				return
			}
			log.Error("failed to get player %s: %v", username, err)
			http.Error(w, "Failed to get player", http.StatusInternalServerError)
			return
		}
		writeJSON(w, record)
	}
}

// HandleRecentGames returns the most recently finished games.
func HandleRecentGames(repository repositories.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := repository.ListRecentGames(r.Context(), limitParam(r))
		if err != nil {
			log.Error("failed to list recent games: %v", err)
			http.Error(w, "Failed to list recent games", http.StatusInternalServerError)
			return
		}
		writeJSON(w, records)
	}
}

func limitParam(r *http.Request) int {
	limit := defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err == nil && parsed > 0 && parsed <= maxLimit {
			limit = parsed
		}
	}
	return limit
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("failed to encode response: %v", err)
	}
}
