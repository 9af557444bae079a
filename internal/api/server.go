// Package api exposes the diary over HTTP. Every route except health
// and the auth endpoints requires a bearer token; business-rule
// failures map to structured JSON errors so form pages can render
// field-level feedback.
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/mweber/meddiary/internal/auth"
	"github.com/mweber/meddiary/internal/dateutil"
	"github.com/mweber/meddiary/internal/domain"
	"github.com/mweber/meddiary/internal/monitor"
	"github.com/mweber/meddiary/internal/validate"
)

// Server handles HTTP requests for the diary API
type Server struct {
	monitor *monitor.Service
	auth    *auth.Service
	addr    string
}

// New creates a new API server
func New(m *monitor.Service, a *auth.Service, addr string) *Server {
	return &Server{monitor: m, auth: a, addr: addr}
}

// Handler builds the route table
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Auth
	mux.HandleFunc("POST /auth/register", s.register)
	mux.HandleFunc("POST /auth/login", s.login)
	mux.HandleFunc("POST /auth/logout", s.requireUser(s.logout))
	mux.HandleFunc("GET /me", s.requireUser(s.me))

	// Sessions
	mux.HandleFunc("GET /sessions", s.requireUser(s.listSessions))
	mux.HandleFunc("POST /sessions", s.requireUser(s.createSession))
	mux.HandleFunc("GET /sessions/active", s.requireUser(s.activeSession))
	mux.HandleFunc("GET /sessions/{id}", s.requireUser(s.getSession))
	mux.HandleFunc("POST /sessions/{id}/stop", s.requireUser(s.stopSession))
	mux.HandleFunc("GET /sessions/{id}/analytics", s.requireUser(s.analytics))
	mux.HandleFunc("GET /sessions/{id}/entries/workday", s.requireUser(s.getWorkdayEntry))
	mux.HandleFunc("GET /sessions/{id}/entries/weekend", s.requireUser(s.getWeekendEntry))

	// Entries
	mux.HandleFunc("POST /entries/workday", s.requireUser(s.saveWorkdayEntry))
	mux.HandleFunc("POST /entries/weekend", s.requireUser(s.saveWeekendEntry))

	// Health check
	mux.HandleFunc("GET /health", s.health)

	return withCORS(mux)
}

// Run starts the HTTP server
func (s *Server) Run() error {
	log.Printf("Starting server on %s", s.addr)
	return http.ListenAndServe(s.addr, s.Handler())
}

// withCORS adds CORS headers for frontend development
func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		h.ServeHTTP(w, r)
	})
}

type userHandler func(w http.ResponseWriter, r *http.Request, user *domain.User)

// requireUser resolves the bearer token before any business logic
// runs; no identity aborts the whole request.
func (s *Server) requireUser(h userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		user, err := s.auth.UserFromToken(token)
		if err != nil {
			s.writeFailure(w, err)
			return
		}
		h(w, r, user)
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- auth handlers ---

// RegisterRequest is the request body for creating an account
type RegisterRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := s.auth.Register(req.Email, req.Name, req.Password)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// LoginRequest is the request body for obtaining a token
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the issued bearer token
type LoginResponse struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, user, err := s.auth.Login(req.Email, req.Password)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{Token: token, User: user})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request, user *domain.User) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if err := s.auth.Logout(token); err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

func (s *Server) me(w http.ResponseWriter, r *http.Request, user *domain.User) {
	writeJSON(w, http.StatusOK, user)
}

// --- session handlers ---

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request, user *domain.User) {
	sessions, err := s.monitor.Sessions(user.ID)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": sessions})
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request, user *domain.User) {
	var in validate.SessionInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess, err := s.monitor.CreateAndStartSession(user.ID, in)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) activeSession(w http.ResponseWriter, r *http.Request, user *domain.User) {
	sess, err := s.monitor.ActiveSession(user.ID)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	if sess == nil {
		writeError(w, http.StatusNotFound, "no active monitoring session")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request, user *domain.User) {
	detail, err := s.monitor.SessionByID(user.ID, r.PathValue("id"))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	if detail == nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) stopSession(w http.ResponseWriter, r *http.Request, user *domain.User) {
	if err := s.monitor.StopSession(user.ID, r.PathValue("id")); err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func (s *Server) analytics(w http.ResponseWriter, r *http.Request, user *domain.User) {
	summary, err := s.monitor.Analytics(user.ID, r.PathValue("id"))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// --- entry handlers ---

func (s *Server) saveWorkdayEntry(w http.ResponseWriter, r *http.Request, user *domain.User) {
	var in validate.WorkdayInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	entry, err := s.monitor.SaveWorkdayEntry(user.ID, in)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) saveWeekendEntry(w http.ResponseWriter, r *http.Request, user *domain.User) {
	var in validate.WeekendInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	entry, err := s.monitor.SaveWeekendEntry(user.ID, in)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) getWorkdayEntry(w http.ResponseWriter, r *http.Request, user *domain.User) {
	date, err := dateutil.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "query parameter 'date' must be YYYY-MM-DD")
		return
	}

	entry, err := s.monitor.WorkdayEntry(user.ID, r.PathValue("id"), date)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	if entry == nil {
		writeError(w, http.StatusNotFound, "no entry for this day")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) getWeekendEntry(w http.ResponseWriter, r *http.Request, user *domain.User) {
	entry, err := s.monitor.WeekendEntry(user.ID, r.PathValue("id"))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	if entry == nil {
		writeError(w, http.StatusNotFound, "no entry for this weekend")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// --- response helpers ---

// writeFailure maps a business-rule failure to its HTTP shape
func (s *Server) writeFailure(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"code":   "VALIDATION",
			"errors": verr.Fields,
		})
		return
	}

	var dup *domain.DuplicateEntryError
	if errors.As(err, &dup) {
		writeCoded(w, http.StatusConflict, "DUPLICATE_ENTRY", dup.Error())
		return
	}

	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		writeCoded(w, http.StatusUnauthorized, "AUTH_REQUIRED", err.Error())
	case errors.Is(err, domain.ErrSessionConflict):
		writeCoded(w, http.StatusConflict, "CONFLICT", err.Error())
	case errors.Is(err, domain.ErrSessionNotFound):
		writeCoded(w, http.StatusNotFound, "NOT_FOUND_OR_ALREADY_STOPPED", err.Error())
	case errors.Is(err, domain.ErrNoActiveSession):
		writeCoded(w, http.StatusConflict, "NO_ACTIVE_SESSION", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeCoded(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"code": code, "error": message})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
