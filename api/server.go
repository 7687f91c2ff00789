package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/wricardo/seatsession/reservation/config"
	"github.com/wricardo/seatsession/reservation/grid"
	"github.com/wricardo/seatsession/reservation/passenger"
	"github.com/wricardo/seatsession/reservation/service"
	"github.com/wricardo/seatsession/reservation/session"
	"github.com/wricardo/seatsession/transport/websocket"
)

// Server represents the REST API server
type Server struct {
	service service.ReservationService
	hub     *websocket.Hub
	router  *mux.Router
	limiter *rate.Limiter
	log     logrus.FieldLogger
}

// Option configures a Server
type Option func(*Server)

// WithRateLimit rejects requests with 429 once the limiter is exhausted
func WithRateLimit(l *rate.Limiter) Option {
	return func(s *Server) { s.limiter = l }
}

// WithLogger sets the request logger
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Server) { s.log = l }
}

// NewServer creates a new API server. hub may be nil, in which case /ws
// answers 503.
func NewServer(svc service.ReservationService, hub *websocket.Hub, opts ...Option) *Server {
	s := &Server{
		service: svc,
		hub:     hub,
		router:  mux.NewRouter(),
		log:     logrus.WithField("pkg", "api"),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.router.Use(s.logRequests)
	if s.limiter != nil {
		s.router.Use(s.rateLimit)
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	// Session management
	api.HandleFunc("/sessions", s.handleCreateSession).Methods("POST")
	api.HandleFunc("/sessions", s.handleListSessions).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleGetSession).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleDeleteSession).Methods("DELETE")

	// Reservation operations
	api.HandleFunc("/sessions/{id}/view", s.handleGetView).Methods("GET")
	api.HandleFunc("/sessions/{id}/seats/{seat}/toggle", s.handleToggleSeat).Methods("POST")
	api.HandleFunc("/sessions/{id}/continue", s.handleContinue).Methods("POST")
	api.HandleFunc("/sessions/{id}/cancel", s.handleCancel).Methods("POST")
	api.HandleFunc("/sessions/{id}/restart", s.handleRestart).Methods("POST")
	api.HandleFunc("/sessions/{id}/passengers/{seat}", s.handleUpdatePassenger).Methods("PUT")
	api.HandleFunc("/sessions/{id}/forms/{seat}/toggle", s.handleToggleForm).Methods("POST")
	api.HandleFunc("/sessions/{id}/submit", s.handleSubmit).Methods("POST")

	// Venues
	api.HandleFunc("/venues", s.handleListVenues).Methods("GET")
	api.HandleFunc("/venues/{id}", s.handleGetVenue).Methods("GET")

	api.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Router exposes the router so callers can mount extra handlers
func (s *Server) Router() *mux.Router {
	return s.router
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps domain errors to status codes
func respondServiceError(w http.ResponseWriter, err error) {
	var verr *session.ValidationError
	if errors.As(err, &verr) {
		respondJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  verr.Error(),
			"errors": verr.Errors,
		})
		return
	}
	respondError(w, statusFor(err), err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, config.ErrConfigNotFound),
		errors.Is(err, grid.ErrSeatNotFound):
		return http.StatusNotFound
	case errors.Is(err, grid.ErrAlreadyOccupied),
		errors.Is(err, grid.ErrSelectionLimitReached),
		errors.Is(err, session.ErrSessionExists),
		errors.Is(err, session.ErrSessionNotExpired):
		return http.StatusConflict
	case errors.Is(err, session.ErrSessionExpired):
		return http.StatusGone
	case errors.Is(err, session.ErrNoSeatsSelected),
		errors.Is(err, grid.ErrSeatNotSelected),
		errors.Is(err, session.ErrInvalidSessionID),
		errors.Is(err, config.ErrInvalidConfig),
		errors.Is(err, grid.ErrInvalidVenue):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func seatParam(r *http.Request) (int, error) {
	seat, err := strconv.Atoi(mux.Vars(r)["seat"])
	if err != nil || seat < 1 {
		return 0, fmt.Errorf("invalid seat number %q", mux.Vars(r)["seat"])
	}
	return seat, nil
}

// Session Handlers

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		VenueID string `json:"venue_id,omitempty"`
	}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}
	if req.VenueID == "" {
		req.VenueID = r.URL.Query().Get("venue")
	}

	info, err := s.service.CreateSession(r.Context(), req.VenueID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, info)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.service.ListSessions(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	total := len(sessions)

	query := r.URL.Query()
	sortBy := query.Get("sort") // "created", "accessed" (default)
	order := query.Get("order") // "asc", "desc" (default)
	if sortBy == "" {
		sortBy = "accessed"
	}
	if order == "" {
		order = "desc"
	}

	sort.SliceStable(sessions, func(i, j int) bool {
		var ti, tj time.Time
		if sortBy == "created" {
			ti, tj = sessions[i].CreatedAt, sessions[j].CreatedAt
		} else {
			ti, tj = sessions[i].LastAccessedAt, sessions[j].LastAccessedAt
		}
		if order == "asc" {
			return ti.Before(tj)
		}
		return ti.After(tj)
	})

	if limitStr := query.Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l < len(sessions) {
			sessions = sessions[:l]
		}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"count":    len(sessions),
		"total":    total,
		"sessions": sessions,
		"sort":     sortBy,
		"order":    order,
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	info, err := s.service.GetSession(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, info)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	if err := s.service.DeleteSession(r.Context(), sessionID); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Session %s deleted", sessionID),
	})
}

// Reservation Handlers

func (s *Server) handleGetView(w http.ResponseWriter, r *http.Request) {
	view, err := s.service.GetView(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleToggleSeat(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]
	seat, err := seatParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	view, err := s.service.SelectSeat(r.Context(), sessionID, seat)
	if err != nil {
		s.log.WithFields(logrus.Fields{"session": sessionID, "seat": seat}).WithError(err).Debug("toggle refused")
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleContinue(w http.ResponseWriter, r *http.Request) {
	view, err := s.service.ConfirmContinue(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	view, err := s.service.CancelSession(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	view, err := s.service.RestartSession(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleUpdatePassenger(w http.ResponseWriter, r *http.Request) {
	seat, err := seatParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var rec passenger.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	rec.Seat = seat

	view, err := s.service.UpdatePassenger(r.Context(), mux.Vars(r)["id"], rec)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleToggleForm(w http.ResponseWriter, r *http.Request) {
	seat, err := seatParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	view, err := s.service.ToggleForm(r.Context(), mux.Vars(r)["id"], seat)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Passengers []passenger.Record `json:"passengers"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	result, err := s.service.SubmitPassengers(r.Context(), mux.Vars(r)["id"], req.Passengers)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Venue Handlers

func (s *Server) handleListVenues(w http.ResponseWriter, r *http.Request) {
	venues, err := s.service.ListVenues(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if venues == nil {
		venues = []*config.VenueInfo{}
	}
	respondJSON(w, http.StatusOK, venues)
}

func (s *Server) handleGetVenue(w http.ResponseWriter, r *http.Request) {
	venue, err := s.service.GetVenue(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, venue)
}

// WebSocket Handler

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "session parameter required")
		return
	}
	if s.hub == nil {
		respondError(w, http.StatusServiceUnavailable, "websocket push is disabled")
		return
	}

	view, err := s.service.GetView(r.Context(), sessionID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	s.hub.ServeWS(w, r, view.SessionID, view)
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}
