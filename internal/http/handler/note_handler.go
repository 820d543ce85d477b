package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/mirkodev/notes-service/internal/domain"
	"github.com/mirkodev/notes-service/internal/http/middleware"
	"github.com/mirkodev/notes-service/internal/http/response"
	"github.com/mirkodev/notes-service/internal/observability"
	"github.com/mirkodev/notes-service/internal/repository"
	"github.com/mirkodev/notes-service/internal/service"
)

type NoteHandler struct {
	notes *service.NoteService
}

func NewNoteHandler(notes *service.NoteService) *NoteHandler {
	return &NoteHandler{notes: notes}
}

type createNoteRequest struct {
	Text     string   `json:"text"`
	Category string   `json:"category"`
	Tags     []string `json:"tags"`
}

func (h *NoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())
	var req createNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
		response.Detail(w, http.StatusBadRequest, detailBadParam)
		return
	}
	note, err := h.notes.Create(r.Context(), user.ID, req.Text, req.Category, req.Tags)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	observability.Audit(r, "note.created", "user_id", user.ID, "note_id", note.ID)
	response.JSON(w, http.StatusCreated, map[string]any{"detail": "Se creó una nueva nota", "new_note": note})
}

func (h *NoteHandler) ListPersonal(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())
	filter, ok := noteFilterFromQuery(w, r)
	if !ok {
		return
	}
	notes, err := h.notes.ListPersonal(r.Context(), user.ID, filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, notes)
}

func (h *NoteHandler) ListShared(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())
	filter, ok := noteFilterFromQuery(w, r)
	if !ok {
		return
	}
	notes, err := h.notes.ListShared(r.Context(), user.ID, filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, notes)
}

func (h *NoteHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	var update service.NoteUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		response.Detail(w, http.StatusBadRequest, detailBadParam)
		return
	}
	note, err := h.notes.Update(r.Context(), user.ID, id, update)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, http.StatusAccepted, map[string]any{"detail": "Nota actualizada con éxito", "updated_note": note})
}

// UpdateShared edits a note shared with the caller; requires a write share.
func (h *NoteHandler) UpdateShared(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	var update service.NoteUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		response.Detail(w, http.StatusBadRequest, detailBadParam)
		return
	}
	if _, err := h.notes.UpdateShared(r.Context(), user.ID, id, update); err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.Detail(w, http.StatusOK, "La nota fue actualizada con exito")
}

func (h *NoteHandler) Share(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())
	noteID, ok := parseID(w, r, "note_id")
	if !ok {
		return
	}
	targetID, ok := parseID(w, r, "shared_user_id")
	if !ok {
		return
	}
	permission := r.URL.Query().Get("permission")
	if err := h.notes.Share(r.Context(), user.ID, noteID, targetID, permission); err != nil {
		writeServiceError(w, r, err)
		return
	}
	observability.Audit(r, "note.shared", "user_id", user.ID, "note_id", noteID, "target_user_id", targetID)
	response.Detail(w, http.StatusOK, "Se compartio la nota.")
}

func (h *NoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	if err := h.notes.Delete(r.Context(), user.ID, id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	observability.Audit(r, "note.deleted", "user_id", user.ID, "note_id", id)
	response.Detail(w, http.StatusAccepted, "Nota eliminada exitosamente")
}

func (h *NoteHandler) AdminList(w http.ResponseWriter, r *http.Request) {
	filter, ok := noteFilterFromQuery(w, r)
	if !ok {
		return
	}
	notes, err := h.notes.AdminList(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, notes)
}

func (h *NoteHandler) AdminGet(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	note, err := h.notes.AdminGet(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, note)
}

func (h *NoteHandler) AdminDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	if err := h.notes.AdminDelete(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	observability.Audit(r, "admin.note_deleted", "note_id", id)
	response.Detail(w, http.StatusAccepted, "Nota eliminada exitosamente")
}

func noteFilterFromQuery(w http.ResponseWriter, r *http.Request) (repository.NoteFilter, bool) {
	q := r.URL.Query()
	filter := repository.NoteFilter{
		Text:     q.Get("search_text"),
		Category: q.Get("category_searched"),
		Tags:     q["tags_searched"],
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			response.Detail(w, http.StatusBadRequest, detailBadParam)
			return filter, false
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			response.Detail(w, http.StatusBadRequest, detailBadParam)
			return filter, false
		}
		filter.Offset = n
	}
	var ok bool
	if filter.OrderByCategory, ok = orderParam(q.Get("order_by_category")); !ok {
		response.Detail(w, http.StatusBadRequest, detailBadParam)
		return filter, false
	}
	if filter.OrderByDate, ok = orderParam(q.Get("order_by_date")); !ok {
		response.Detail(w, http.StatusBadRequest, detailBadParam)
		return filter, false
	}
	if filter.Category != "" && !domain.ValidCategory(filter.Category) {
		response.Detail(w, http.StatusBadRequest, detailBadParam)
		return filter, false
	}
	return filter, true
}

func orderParam(v string) (string, bool) {
	if v == "" {
		return "", true
	}
	switch strings.ToUpper(v) {
	case "ASC", "DESC":
		return strings.ToUpper(v), true
	}
	return "", false
}
