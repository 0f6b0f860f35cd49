package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/cbodonnell/dropfour/pkg/api/handlers"
	"github.com/cbodonnell/dropfour/pkg/log"
	"github.com/cbodonnell/dropfour/pkg/repositories"
	"github.com/gorilla/mux"
)

// APIServer serves the read-only statistics and history endpoints. It only
// reads from the repository; the live engine never depends on it.
type APIServer struct {
	server *http.Server
}

type NewAPIServerOptions struct {
	Port       int
	Repository repositories.Repository
}

// NewAPIServer creates a new http.Server for handling API requests
func NewAPIServer(opts NewAPIServerOptions) *APIServer {
	router := mux.NewRouter()
	router.HandleFunc("/api/leaderboard", handlers.HandleLeaderboard(opts.Repository)).Methods(http.MethodGet)
	router.HandleFunc("/api/players/{username}", handlers.HandleGetPlayer(opts.Repository)).Methods(http.MethodGet)
	router.HandleFunc("/api/games/recent", handlers.HandleRecentGames(opts.Repository)).Methods(http.MethodGet)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: router,
	}
	return &APIServer{
		server: server,
	}
}

// Start starts the APIServer
func (s *APIServer) Start() {
	log.Info("API server listening on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			log.Info("API server closed")
			return
		}
		log.Error("API server error: %v", err)
	}
}

// Stop stops the APIServer
func (s *APIServer) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
