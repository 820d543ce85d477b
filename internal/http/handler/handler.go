package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/mirkodev/notes-service/internal/http/response"
	"github.com/mirkodev/notes-service/internal/service"
)

const (
	detailUserNotFound  = "Usuario no encontrado o no existe"
	detailWrongPassword = "Contraseña incorrecta"
	detailBadRefresh    = "Invalid Refresh Token"
	detailStorageError  = "Error al acceder a la base de datos."
	detailNoteNotFound  = "No se encontró la nota."
	detailBadParam      = "Parametro incorrecto"
)

// writeServiceError maps the service error taxonomy onto the HTTP contract.
// Unknown errors are storage failures: the detail goes to the log, the
// client gets a generic 503.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		response.Detail(w, http.StatusNotFound, detailUserNotFound)
	case errors.Is(err, service.ErrInvalidCredentials):
		response.Detail(w, http.StatusBadRequest, detailWrongPassword)
	case errors.Is(err, service.ErrInvalidRefreshToken):
		response.Detail(w, http.StatusUnauthorized, detailBadRefresh)
	case errors.Is(err, service.ErrUsernameTaken):
		response.Detail(w, http.StatusNotAcceptable, "Ya existe un usuario con este username")
	case errors.Is(err, service.ErrEmailTaken):
		response.Detail(w, http.StatusNotAcceptable, "Ya existe un usuario con este email")
	case errors.Is(err, service.ErrNoteNotFound):
		response.Detail(w, http.StatusNotFound, detailNoteNotFound)
	case errors.Is(err, service.ErrAlreadyShared):
		response.Detail(w, http.StatusBadRequest, "Ya se ha compartido esta nota")
	case errors.Is(err, service.ErrInvalidCategory):
		response.Detail(w, http.StatusBadRequest, detailBadParam)
	case errors.Is(err, service.ErrForbidden):
		response.Detail(w, http.StatusForbidden, "No estas autorizado para modificar esta nota")
	default:
		slog.ErrorContext(r.Context(), "storage failure", "error", err, "path", r.URL.Path)
		response.Detail(w, http.StatusServiceUnavailable, detailStorageError)
	}
}
