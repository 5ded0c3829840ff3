// internal/api/api.go
// HTTP surface: login and logout, the room page, the websocket endpoint, room and health status.
package api

import (
	"encoding/json"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/erilali/duet/internal/auth"
	"github.com/erilali/duet/internal/hub"
	"github.com/erilali/duet/internal/logger"
	"github.com/erilali/duet/internal/session"
	"github.com/erilali/duet/web"
	"github.com/go-playground/validator/v10"
)

const (
	sessionCookie = "duet_session"
	version       = "1.0.0"
)

var validate = validator.New()

type loginRequest struct {
	Username string `validate:"required,max=32"`
}

// StatusReporter reports the state of the optional NATS connection.
type StatusReporter interface {
	Connected() bool
}

// Server serves the HTTP endpoints of one room.
type Server struct {
	room       *session.Room
	hub        *hub.Hub
	tokens     *auth.Tokens
	sessionTTL time.Duration
	nats       StatusReporter
	templates  *template.Template
	logger     *logger.Logger
}

// Deps groups what NewServer needs.
type Deps struct {
	Room       *session.Room
	Hub        *hub.Hub
	Tokens     *auth.Tokens
	SessionTTL time.Duration
	NATS       StatusReporter
	Logger     *logger.Logger
}

func NewServer(deps Deps) (*Server, error) {
	templates, err := template.ParseFS(web.Templates, "templates/*.html")
	if err != nil {
		return nil, err
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewLogger("api")
	}
	return &Server{
		room:       deps.Room,
		hub:        deps.Hub,
		tokens:     deps.Tokens,
		sessionTTL: deps.SessionTTL,
		nats:       deps.NATS,
		templates:  templates,
		logger:     deps.Logger,
	}, nil
}

// Handler returns the routes of the server.
func (s *Server) Handler() http.Handler {
	static, _ := fs.Sub(web.Static, "static")

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("GET /logout", s.handleLogout)
	mux.HandleFunc("GET /ws", s.handleWs)
	mux.HandleFunc("GET /api/room", s.handleRoom)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(static))))
	return mux
}

type loginPage struct {
	Error    string
	Username string
	Snapshot session.Snapshot
}

type roomPage struct {
	Username string
	Capacity int
}

// handleIndex shows the room page to a session that still holds its seat, or
// whose seat is free to be claimed again by the websocket.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if sess, ok := s.session(r); ok && (s.room.Holds(sess.Username, sess.Generation) || !s.room.IsClaimed(sess.Username)) {
		s.render(w, http.StatusOK, "room.html", roomPage{Username: sess.Username, Capacity: session.Capacity})
		return
	}
	s.render(w, http.StatusOK, "login.html", loginPage{Snapshot: s.room.Snapshot()})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	// A browser keeps one seat. Logging in again while it is held would leave
	// the first name claimed with no cookie able to release it.
	if sess, ok := s.session(r); ok && s.room.Holds(sess.Username, sess.Generation) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	username := strings.TrimSpace(r.FormValue("username"))

	var generation string
	err := validate.Struct(loginRequest{Username: username})
	if err != nil {
		err = &session.RejectedError{Reason: session.ReasonInvalid, Name: username}
	} else {
		generation, err = s.room.Join(username)
	}
	if err != nil {
		status, text := rejection(err)
		s.render(w, status, "login.html", loginPage{
			Error:    text,
			Username: username,
			Snapshot: s.room.Snapshot(),
		})
		return
	}

	token, err := s.tokens.Issue(username, generation)
	if err != nil {
		s.room.Logout(username, generation)
		s.logger.Errorf("Error issuing session token: %v", err)
		http.Error(w, "could not start session", http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.sessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sess, ok := s.session(r); ok {
		s.room.Logout(sess.Username, sess.Generation)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleWs(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(r)
	if !ok {
		http.Error(w, "login required", http.StatusUnauthorized)
		return
	}
	s.hub.ServeWs(w, r, sess.Username, sess.Generation)
}

func (s *Server) handleRoom(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.room.Snapshot())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	natsStatus := "disabled"
	if s.nats != nil {
		natsStatus = "disconnected"
		if s.nats.Connected() {
			natsStatus = "connected"
		}
	}
	snapshot := s.room.Snapshot()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"nats":        natsStatus,
		"version":     version,
		"connections": s.hub.Connections(),
		"room": map[string]interface{}{
			"count":    snapshot.Count,
			"capacity": snapshot.Capacity,
			"policy":   snapshot.Policy,
		},
	})
}

// session returns the session carried by a valid cookie. The seat it was
// issued for may since have been released.
func (s *Server) session(r *http.Request) (auth.Session, bool) {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil || cookie.Value == "" {
		return auth.Session{}, false
	}
	sess, err := s.tokens.Parse(cookie.Value)
	if err != nil {
		s.logger.Debugf("Ignoring session cookie: %v", err)
		return auth.Session{}, false
	}
	return sess, true
}

func (s *Server) render(w http.ResponseWriter, status int, name string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		s.logger.Errorf("Error rendering %s: %v", name, err)
	}
}

// rejection maps a failed join to an HTTP status and the text shown to the user.
func rejection(err error) (int, string) {
	reason, ok := session.RejectionReason(err)
	if !ok {
		return http.StatusInternalServerError, "Something went wrong."
	}
	switch reason {
	case session.ReasonFull:
		return http.StatusForbidden, "Chat room is full!"
	case session.ReasonTaken:
		return http.StatusConflict, "That name is already taken."
	default:
		return http.StatusBadRequest, "Please enter a name of at most 32 characters."
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
