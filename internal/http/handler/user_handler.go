package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/mirkodev/notes-service/internal/domain"
	"github.com/mirkodev/notes-service/internal/http/middleware"
	"github.com/mirkodev/notes-service/internal/http/response"
	"github.com/mirkodev/notes-service/internal/observability"
	"github.com/mirkodev/notes-service/internal/service"

	"github.com/go-chi/chi/v5"
)

type UserHandler struct {
	users *service.UserService
}

func NewUserHandler(users *service.UserService) *UserHandler {
	return &UserHandler{users: users}
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userView struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type adminUserView struct {
	userView
	Disabled bool   `json:"disabled"`
	Role     string `json:"role"`
}

func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Detail(w, http.StatusBadRequest, detailBadParam)
		return
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		response.Detail(w, http.StatusBadRequest, detailBadParam)
		return
	}
	if _, err := h.users.Register(r.Context(), req.Username, req.Email, req.Password); err != nil {
		writeServiceError(w, r, err)
		return
	}
	observability.Audit(r, "user.registered", "username", req.Username)
	response.Detail(w, http.StatusAccepted, "Se creo un nuevo usuario.")
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())
	response.JSON(w, http.StatusOK, userView{UserID: user.ID, Username: user.Username, Email: user.Email})
}

func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())
	var update service.UserUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		response.Detail(w, http.StatusBadRequest, detailBadParam)
		return
	}
	if _, err := h.users.Update(r.Context(), user.ID, update); err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.Detail(w, http.StatusAccepted, "El usuario fue actualizado")
}

func (h *UserHandler) AdminList(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	views := make([]adminUserView, 0, len(users))
	for _, u := range users {
		views = append(views, adminView(&u))
	}
	response.JSON(w, http.StatusOK, views)
}

func (h *UserHandler) AdminGet(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	user, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, adminView(user))
}

func (h *UserHandler) AdminUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	var update service.AdminUserUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		response.Detail(w, http.StatusBadRequest, detailBadParam)
		return
	}
	if _, err := h.users.AdminUpdate(r.Context(), id, update); err != nil {
		writeServiceError(w, r, err)
		return
	}
	observability.Audit(r, "admin.user_updated", "target_user_id", id)
	response.Detail(w, http.StatusAccepted, "El usuario fue actualizado")
}

// AdminDelete removes the user and cascades over sessions, notes and shares.
func (h *UserHandler) AdminDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	if err := h.users.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	observability.Audit(r, "admin.user_deleted", "target_user_id", id)
	response.Detail(w, http.StatusOK, "El usuario se ha eliminado con éxito")
}

func adminView(u *domain.User) adminUserView {
	return adminUserView{
		userView: userView{UserID: u.ID, Username: u.Username, Email: u.Email},
		Disabled: u.Disabled,
		Role:     u.Role,
	}
}

func parseID(w http.ResponseWriter, r *http.Request, name string) (uint, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, name), 10, 64)
	if err != nil {
		response.Detail(w, http.StatusBadRequest, detailBadParam)
		return 0, false
	}
	return uint(id), true
}
