// Package admin serves the admin console. Every route here sits behind the
// gate's admin check.
package admin

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/devcampus/devcampus/internal/gate"
	"github.com/devcampus/devcampus/internal/platform/httpx"
	"github.com/devcampus/devcampus/internal/profiles"
	"github.com/devcampus/devcampus/internal/shared"
	"github.com/devcampus/devcampus/internal/view"
)

const usersPerPage = 25

// ProfileService is the part of profiles.Service the console needs.
type ProfileService interface {
	List(ctx context.Context, page, perPage int) ([]profiles.Profile, shared.Pagination, error)
	Overview(ctx context.Context) (profiles.Overview, error)
	SetRole(ctx context.Context, actorID, id string, role profiles.Role) (profiles.Profile, error)
	Emails(ctx context.Context) ([]string, error)
}

// Handler serves admin routes.
type Handler struct {
	logger      *slog.Logger
	profiles    ProfileService
	broadcaster *Broadcaster
	templates   *view.Engine
	csrfManager *shared.CSRFManager
	validator   *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, profiles ProfileService, broadcaster *Broadcaster, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:      logger,
		profiles:    profiles,
		broadcaster: broadcaster,
		templates:   templates,
		csrfManager: csrf,
		validator:   validator.New(),
	}
}

// MountRoutes registers admin routes; mount under /admin.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.overview)
	r.Get("/users", h.listUsers)
	r.Post("/users/{id}/role", h.setRole)
	r.Get("/emails", h.showEmails)
	r.Post("/emails", h.sendEmails)
	r.Get("/api/users", h.apiUsers)
}

func (h *Handler) templateData(r *http.Request, title string, data any) view.TemplateData {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrfManager.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	return view.TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Viewer:      gate.ViewerFromContext(r.Context()),
		Data:        data,
	}
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name string, data view.TemplateData) {
	if err := h.templates.RenderStatus(w, status, name, data); err != nil {
		h.logger.Error("render admin page", slog.String("template", name), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func flash(r *http.Request, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
}

func (h *Handler) overview(w http.ResponseWriter, r *http.Request) {
	ov, err := h.profiles.Overview(r.Context())
	if err != nil {
		h.logger.Error("admin overview", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.render(w, r, http.StatusOK, "pages/admin_overview.html", h.templateData(r, "Admin", map[string]any{"Overview": ov}))
}

type usersPageData struct {
	Users      []profiles.Profile
	Pagination shared.Pagination
	Roles      []profiles.Role
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	items, pg, err := h.profiles.List(r.Context(), page, usersPerPage)
	if err != nil {
		h.logger.Error("admin list users", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	data := usersPageData{Users: items, Pagination: pg, Roles: []profiles.Role{profiles.RoleUser, profiles.RoleAdmin}}
	h.render(w, r, http.StatusOK, "pages/admin_users.html", h.templateData(r, "Users", data))
}

func (h *Handler) setRole(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	actor := gate.ViewerFromContext(r.Context())
	if actor == nil {
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return
	}
	id := chi.URLParam(r, "id")
	role := profiles.Role(strings.TrimSpace(r.PostFormValue("role")))

	p, err := h.profiles.SetRole(r.Context(), actor.Identity.ID, id, role)
	switch {
	case err == nil:
		h.logger.Info("role updated",
			slog.String("actor", actor.Identity.ID),
			slog.String("profile", id),
			slog.String("role", string(role)))
		flash(r, "success", p.Email+" is now "+string(p.Role))
	case errors.Is(err, profiles.ErrInvalidRole):
		flash(r, "error", "Unknown role.")
	case errors.Is(err, shared.ErrNotFound):
		flash(r, "error", "That member no longer exists.")
	default:
		h.logger.Error("set role", slog.String("profile", id), slog.Any("error", err))
		flash(r, "error", "Could not update the role.")
	}
	http.Redirect(w, r, "/admin/users", http.StatusSeeOther)
}

type emailForm struct {
	Subject string `validate:"required,max=200"`
	Body    string `validate:"required,max=10000"`
}

type emailsPageData struct {
	Form       emailForm
	Errors     map[string]string
	Recipients int
}

func (h *Handler) recipientCount(ctx context.Context) int {
	ov, err := h.profiles.Overview(ctx)
	if err != nil {
		h.logger.Warn("count recipients", slog.Any("error", err))
		return 0
	}
	return ov.Total
}

func (h *Handler) showEmails(w http.ResponseWriter, r *http.Request) {
	data := emailsPageData{Errors: map[string]string{}, Recipients: h.recipientCount(r.Context())}
	h.render(w, r, http.StatusOK, "pages/admin_emails.html", h.templateData(r, "Email members", data))
}

func (h *Handler) sendEmails(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := emailForm{
		Subject: strings.TrimSpace(r.PostFormValue("subject")),
		Body:    strings.TrimSpace(r.PostFormValue("body")),
	}
	errs := map[string]string{}
	if err := h.validator.Struct(form); err != nil {
		errs = shared.FieldErrors(err)
	}
	if len(errs) == 0 {
		var queued int
		recipients, err := h.profiles.Emails(r.Context())
		if err == nil {
			queued, err = h.broadcaster.Broadcast(r.Context(), recipients, form.Subject, form.Body)
			h.logger.Info("broadcast queued", slog.Int("queued", queued), slog.Int("recipients", len(recipients)))
		}
		if err == nil {
			flash(r, "success", "Email queued for "+strconv.Itoa(queued)+" members")
			http.Redirect(w, r, "/admin/emails", http.StatusSeeOther)
			return
		}
		h.logger.Error("broadcast email", slog.Any("error", err))
		errs["general"] = "Could not queue the email. Please try again."
	}
	data := emailsPageData{Form: form, Errors: errs, Recipients: h.recipientCount(r.Context())}
	h.render(w, r, http.StatusBadRequest, "pages/admin_emails.html", h.templateData(r, "Email members", data))
}

type usersResponse struct {
	Items      []profiles.Profile `json:"items"`
	Page       int                `json:"page"`
	PerPage    int                `json:"per_page"`
	Total      int                `json:"total"`
	TotalPages int                `json:"total_pages"`
}

func (h *Handler) apiUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, perPage := 1, usersPerPage
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "page must be a positive integer")
			return
		}
		page = n
	}
	if v := q.Get("per_page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "per_page must be between 1 and 100")
			return
		}
		perPage = n
	}
	items, pg, err := h.profiles.List(r.Context(), page, perPage)
	if err != nil {
		h.logger.Error("api list users", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if items == nil {
		items = []profiles.Profile{}
	}
	httpx.JSON(w, http.StatusOK, usersResponse{
		Items:      items,
		Page:       pg.Page,
		PerPage:    pg.PerPage,
		Total:      pg.Total,
		TotalPages: pg.TotalPages,
	})
}
