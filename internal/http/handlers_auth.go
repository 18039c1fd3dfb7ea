package http

import (
	"net/http"
	"time"

	"budget/internal/auth"
	"budget/internal/core"
	"budget/internal/log"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userResponse struct {
	Message string    `json:"message,omitempty"`
	User    core.User `json:"user"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      core.User `json:"user"`
}

// handleRegister creates a user. The response never carries the hash.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpRegister, err)
		return
	}

	user, err := s.auth.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, r, log.OpRegister, err)
		return
	}
	s.metrics.registrations.Add(1)
	writeJSON(w, http.StatusCreated, userResponse{Message: msgUserRegistered, User: user})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpLogin, err)
		return
	}

	session, err := s.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		s.metrics.failedLogins.Add(1)
		writeError(w, r, log.OpLogin, err)
		return
	}
	s.metrics.logins.Add(1)
	writeJSON(w, http.StatusOK, loginResponse{Token: session.Token, ExpiresAt: session.ExpiresAt.UTC(), User: session.User})
}

// handleUser echoes the identity carried by the token.
func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, r, log.OpAuthenticate, auth.ErrMissingToken)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{User: core.User{ID: claims.UserID, Username: claims.Username}})
}
