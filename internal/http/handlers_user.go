package http

import (
	"net/http"

	"fintrack/internal/log"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	account, err := s.accounts.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	log.FromContext(r.Context()).InfoContext(r.Context(), "Account registered",
		log.FieldUserID, string(account.ID))

	NewJSONResponse().
		Status(http.StatusCreated).
		Message("User registered successfully").
		Field("user", map[string]string{"id": string(account.ID), "email": account.Email}).
		Write(w)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	token, expiresAt, err := s.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().
		Field("token", token).
		Field("expiresAt", expiresAt.UTC()).
		Write(w)
}

func (s *Server) handleVerifyToken(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().
		Field("userId", identity(r)).
		Write(w)
}
