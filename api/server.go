package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/wricardo/tango-game/game/service"
	"github.com/wricardo/tango-game/game/session"
	"github.com/wricardo/tango-game/transport/websocket"
)

// Server represents the REST API server
type Server struct {
	service service.GameService
	hub     *websocket.Hub
	mcp     http.Handler
	log     logrus.FieldLogger
	router  *mux.Router
}

// Option configures the server
type Option func(*Server)

// WithLogger sets the request logger
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// WithMCPHandler mounts h at POST /mcp
func WithMCPHandler(h http.Handler) Option {
	return func(s *Server) { s.mcp = h }
}

// NewServer creates a new API server. hub may be nil, which disables /ws.
func NewServer(gameService service.GameService, hub *websocket.Hub, opts ...Option) *Server {
	s := &Server{
		service: gameService,
		hub:     hub,
		log:     logrus.StandardLogger(),
		router:  mux.NewRouter(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.Use(s.logRequests)

	api := s.router.PathPrefix("/api").Subrouter()

	// Players
	api.HandleFunc("/players", s.handleCreatePlayer).Methods("POST")
	api.HandleFunc("/players", s.handleListPlayers).Methods("GET")
	api.HandleFunc("/players/{id}", s.handleGetPlayer).Methods("GET")
	api.HandleFunc("/players/{id}", s.handleDeletePlayer).Methods("DELETE")

	// Gameplay
	api.HandleFunc("/players/{id}/state", s.handleGetState).Methods("GET")
	api.HandleFunc("/players/{id}/enter", s.handleEnterLevel).Methods("POST")
	api.HandleFunc("/players/{id}/toggle", s.handleToggle).Methods("POST")
	api.HandleFunc("/players/{id}/undo", s.action(s.service.Undo)).Methods("POST")
	api.HandleFunc("/players/{id}/hint", s.action(s.service.Hint)).Methods("POST")
	api.HandleFunc("/players/{id}/submit", s.handleSubmit).Methods("POST")
	api.HandleFunc("/players/{id}/next", s.action(s.service.NextLevel)).Methods("POST")

	// Economy and preferences
	api.HandleFunc("/players/{id}/coins", s.action(s.service.GrantCoin)).Methods("POST")
	api.HandleFunc("/players/{id}/premium", s.action(s.service.PurchasePremium)).Methods("POST")
	api.HandleFunc("/players/{id}/theme", s.handleSetTheme).Methods("PUT")
	api.HandleFunc("/players/{id}/session/end", s.action(s.service.EndSession)).Methods("POST")
	api.HandleFunc("/players/{id}/error", s.handleDismissError).Methods("DELETE")

	// Queries
	api.HandleFunc("/players/{id}/levels", s.handleListLevels).Methods("GET")
	api.HandleFunc("/players/{id}/stats", s.handleGetStats).Methods("GET")
	api.HandleFunc("/levels", s.handleListLevels).Methods("GET")

	if s.mcp != nil {
		s.router.Handle("/mcp", s.mcp).Methods("POST")
	}
	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start).String(),
		}).Debug("request")
	})
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// statusFor maps a service error to an HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrPlayerNotFound), errors.Is(err, session.ErrLevelNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrPlayerAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	respondError(w, statusFor(err), err.Error())
}

// decodeBody decodes an optional JSON body into v. An empty body is fine.
func decodeBody(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if err == io.EOF {
		return nil
	}
	return err
}

// action adapts a body-less player operation into a handler
func (s *Server) action(op func(ctx context.Context, playerID string) (*service.ActionResult, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := op(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			s.fail(w, err)
			return
		}
		respondJSON(w, http.StatusOK, result)
	}
}

// Player Handlers

func (s *Server) handleCreatePlayer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id,omitempty"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	player, err := s.service.CreatePlayer(r.Context(), req.ID)
	if err != nil {
		s.fail(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, player)
}

func (s *Server) handleListPlayers(w http.ResponseWriter, r *http.Request) {
	players, err := s.service.ListPlayers(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}

	query := r.URL.Query()
	sortBy := query.Get("sort") // "id" (default), "created", "accessed"
	order := query.Get("order") // "asc" (default), "desc"
	if sortBy == "" {
		sortBy = "id"
	}
	if order == "" {
		order = "asc"
	}

	sort.SliceStable(players, func(i, j int) bool {
		var less bool
		switch sortBy {
		case "created":
			less = players[i].CreatedAt.Before(players[j].CreatedAt)
		case "accessed":
			less = players[i].LastAccessedAt.Before(players[j].LastAccessedAt)
		default:
			less = players[i].ID < players[j].ID
		}
		if order == "desc" {
			return !less
		}
		return less
	})

	total := len(players)
	if limitStr := query.Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l < len(players) {
			players = players[:l]
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(players),
		"total":   total,
		"players": players,
		"sort":    sortBy,
		"order":   order,
	})
}

func (s *Server) handleGetPlayer(w http.ResponseWriter, r *http.Request) {
	player, err := s.service.GetPlayer(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, player)
}

func (s *Server) handleDeletePlayer(w http.ResponseWriter, r *http.Request) {
	playerID := mux.Vars(r)["id"]
	if err := s.service.DeletePlayer(r.Context(), playerID); err != nil {
		s.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Player %s deleted", playerID),
	})
}

// Gameplay Handlers

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	state, err := s.service.GetState(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, state)
}

func (s *Server) handleEnterLevel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Level *int `json:"level"`
	}
	if err := decodeBody(r, &req); err != nil || req.Level == nil {
		respondError(w, http.StatusBadRequest, "Invalid request body: level is required")
		return
	}

	result, err := s.service.EnterLevel(r.Context(), mux.Vars(r)["id"], *req.Level)
	if err != nil {
		s.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Row *int `json:"row"`
		Col *int `json:"col"`
	}
	if err := decodeBody(r, &req); err != nil || req.Row == nil || req.Col == nil {
		respondError(w, http.StatusBadRequest, "Invalid request body: row and col are required")
		return
	}

	result, err := s.service.ToggleCell(r.Context(), mux.Vars(r)["id"], *req.Row, *req.Col)
	if err != nil {
		s.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CompletionSeconds *float64 `json:"completion_seconds,omitempty"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := s.service.Submit(r.Context(), mux.Vars(r)["id"], req.CompletionSeconds)
	if err != nil {
		s.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleSetTheme(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Theme string `json:"theme"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := s.service.SetTheme(r.Context(), mux.Vars(r)["id"], req.Theme)
	if err != nil {
		s.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleDismissError(w http.ResponseWriter, r *http.Request) {
	state, err := s.service.DismissError(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, state)
}

// Query Handlers

func (s *Server) handleListLevels(w http.ResponseWriter, r *http.Request) {
	levels, err := s.service.ListLevels(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":  len(levels),
		"levels": levels,
	})
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.GetStats(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// WebSocket Handler

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		http.Error(w, "websocket disabled", http.StatusNotFound)
		return
	}
	playerID := r.URL.Query().Get("player")
	if playerID == "" {
		http.Error(w, "player parameter required", http.StatusBadRequest)
		return
	}

	state, err := s.service.GetState(r.Context(), playerID)
	if err != nil {
		http.Error(w, "Invalid player", http.StatusNotFound)
		return
	}

	s.hub.ServeWS(w, r, state.PlayerID, state)
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}
