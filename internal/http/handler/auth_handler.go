package handler

import (
	"encoding/json"
	"net/http"

	"github.com/mirkodev/notes-service/internal/http/middleware"
	"github.com/mirkodev/notes-service/internal/http/response"
	"github.com/mirkodev/notes-service/internal/observability"
	"github.com/mirkodev/notes-service/internal/service"

	"github.com/go-chi/chi/v5"
)

type AuthHandler struct {
	auth *service.AuthService
}

func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// Login accepts form-encoded credentials and answers with the token pair.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		response.Detail(w, http.StatusBadRequest, detailBadParam)
		return
	}
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")
	if username == "" || password == "" {
		response.Detail(w, http.StatusBadRequest, detailBadParam)
		return
	}
	pair, err := h.auth.Login(r.Context(), username, password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	observability.Audit(r, "auth.login", "username", username)
	response.JSON(w, http.StatusOK, pair)
}

// Refresh rotates a refresh token presented either as a query parameter or
// in a JSON body.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("refresh_token")
	if token == "" {
		var body struct {
			RefreshToken string `json:"refresh_token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			token = body.RefreshToken
		}
	}
	if token == "" {
		response.Detail(w, http.StatusUnauthorized, detailBadRefresh)
		return
	}
	pair, err := h.auth.Refresh(r.Context(), token)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, pair)
}

// Logout ends the session named by the caller's access token. Idempotent:
// an already-ended session still gets the success shape.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Detail(w, http.StatusUnauthorized, "Credenciales de autenticación inválidas")
		return
	}
	if err := h.auth.Logout(r.Context(), user.ID, claims.ID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	observability.Audit(r, "auth.logout", "user_id", user.ID)
	response.Detail(w, http.StatusOK, "Sesion terminada")
}

type sessionView struct {
	SessionID string `json:"session_id"`
	UserID    uint   `json:"user_id"`
	IsActive  bool   `json:"is_active"`
	IsCurrent bool   `json:"is_current"`
}

// Sessions lists the caller's active sessions.
func (h *AuthHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())
	claims, _ := middleware.ClaimsFromContext(r.Context())
	sessions, err := h.auth.ListSessions(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	views := make([]sessionView, 0, len(sessions))
	for _, s := range sessions {
		views = append(views, sessionView{
			SessionID: s.SessionID,
			UserID:    s.UserID,
			IsActive:  s.IsActive,
			IsCurrent: claims != nil && s.SessionID == claims.ID,
		})
	}
	response.JSON(w, http.StatusOK, views)
}

// RevokeSession ends one of the caller's sessions by id.
func (h *AuthHandler) RevokeSession(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())
	sessionID := chi.URLParam(r, "session_id")
	changed, err := h.auth.RevokeSession(r.Context(), user.ID, sessionID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	status := "revoked"
	if !changed {
		status = "already_revoked"
	}
	observability.Audit(r, "auth.session_revoked", "user_id", user.ID, "session_id", sessionID)
	response.JSON(w, http.StatusOK, map[string]string{"status": status})
}

// RevokeAllSessions is "log out everywhere" for the caller.
func (h *AuthHandler) RevokeAllSessions(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())
	revoked, err := h.auth.RevokeAll(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	observability.Audit(r, "auth.sessions_revoked_all", "user_id", user.ID, "revoked", revoked)
	response.JSON(w, http.StatusOK, map[string]int64{"revoked": revoked})
}
