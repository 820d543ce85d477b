package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/mirkodev/notes-service/internal/http/handler"
	"github.com/mirkodev/notes-service/internal/http/middleware"
	"github.com/mirkodev/notes-service/internal/http/response"
	"github.com/mirkodev/notes-service/internal/service"
)

type Dependencies struct {
	AuthHandler    *handler.AuthHandler
	UserHandler    *handler.UserHandler
	NoteHandler    *handler.NoteHandler
	AuthService    *service.AuthService
	EnableOTelHTTP bool
}

func New(dep Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestLogger)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.BodyLimit(1 << 20))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, http.StatusOK, map[string]string{"messaje": "Bienvenido! Mira todas las tareas pendientes."})
	})
	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/login", dep.AuthHandler.Login)
	r.Post("/refresh", dep.AuthHandler.Refresh)
	r.Post("/users/", dep.UserHandler.Register)

	// Every protected route composes resolve -> active-check; admin routes
	// add the role check after, never instead of, the active check.
	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(dep.AuthService))
		r.Use(middleware.RequireActive)

		r.Post("/logout", dep.AuthHandler.Logout)
		r.Get("/sessions/", dep.AuthHandler.Sessions)
		r.Delete("/sessions/{session_id}", dep.AuthHandler.RevokeSession)
		r.Delete("/sessions/", dep.AuthHandler.RevokeAllSessions)

		r.Get("/users/me", dep.UserHandler.Me)
		r.Patch("/users/me", dep.UserHandler.UpdateMe)

		r.Route("/notes", func(r chi.Router) {
			r.Get("/personal/", dep.NoteHandler.ListPersonal)
			r.Get("/shared/", dep.NoteHandler.ListShared)
			r.Post("/", dep.NoteHandler.Create)
			r.Post("/{note_id}/shared/{shared_user_id}", dep.NoteHandler.Share)
			r.Patch("/shared/{id}", dep.NoteHandler.UpdateShared)
			r.Patch("/{id}", dep.NoteHandler.Update)
			r.Delete("/{id}", dep.NoteHandler.Delete)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAdmin)
				r.Get("/admin/all/", dep.NoteHandler.AdminList)
				r.Get("/admin/{id}", dep.NoteHandler.AdminGet)
				r.Delete("/admin/{id}", dep.NoteHandler.AdminDelete)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin)
			r.Get("/users/", dep.UserHandler.AdminList)
			r.Get("/users/{id}", dep.UserHandler.AdminGet)
			r.Patch("/users/{id}", dep.UserHandler.AdminUpdate)
			r.Delete("/users/{id}", dep.UserHandler.AdminDelete)
		})
	})

	var h http.Handler = r
	if dep.EnableOTelHTTP {
		h = otelhttp.NewHandler(r, "http.server")
	}
	return h
}
