// Package pages serves the member facing pages: home, dashboard and profile.
package pages

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/devcampus/devcampus/internal/auth"
	"github.com/devcampus/devcampus/internal/gate"
	"github.com/devcampus/devcampus/internal/platform/httpx"
	"github.com/devcampus/devcampus/internal/profiles"
	"github.com/devcampus/devcampus/internal/shared"
	"github.com/devcampus/devcampus/internal/view"
)

// ProfileService is the part of profiles.Service the pages need.
type ProfileService interface {
	Get(ctx context.Context, id string) (profiles.Profile, error)
	UpdateProfile(ctx context.Context, id string, in profiles.ProfileInput) (profiles.Profile, error)
}

// Handler serves member pages.
type Handler struct {
	logger      *slog.Logger
	profiles    ProfileService
	templates   *view.Engine
	csrfManager *shared.CSRFManager
	validator   *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, profiles ProfileService, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:      logger,
		profiles:    profiles,
		templates:   templates,
		csrfManager: csrf,
		validator:   validator.New(),
	}
}

// MountRoutes registers page routes on the root router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.home)
	r.Get("/dashboard", h.dashboard)
	r.Get("/profile", h.showProfile)
	r.Post("/profile", h.updateProfile)
	r.Get("/api/me", h.me)
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
		h.logger.Error("render page", slog.String("template", name), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

type homePageData struct {
	AuthRequired bool
	Next         string
}

func (h *Handler) home(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	data := homePageData{
		AuthRequired: q.Get("auth") == gate.ReasonAuthRequired,
		Next:         auth.SafeNext(q.Get("next")),
	}
	h.render(w, r, http.StatusOK, "pages/home.html", h.templateData(r, "Home", data))
}

type dashboardPageData struct {
	Name          string
	Email         string
	Role          profiles.Role
	IsAdmin       bool
	AdminRequired bool
	Profile       *profiles.Profile
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	viewer := gate.ViewerFromContext(r.Context())
	if viewer == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	data := dashboardPageData{
		Name:          displayName(viewer, nil),
		Email:         viewer.Identity.Email,
		Role:          viewer.Role,
		IsAdmin:       viewer.IsAdmin,
		AdminRequired: r.URL.Query().Get("error") == gate.ReasonAdminRequired,
	}
	if p, err := h.profiles.Get(r.Context(), viewer.Identity.ID); err == nil {
		data.Profile = &p
		data.Name = displayName(viewer, &p)
	} else if !errors.Is(err, shared.ErrNotFound) {
		h.logger.Warn("dashboard profile", slog.Any("error", err))
	}
	h.render(w, r, http.StatusOK, "pages/dashboard.html", h.templateData(r, "Dashboard", data))
}

type profilePageData struct {
	Email  string
	Form   profiles.ProfileInput
	Errors map[string]string
}

func (h *Handler) showProfile(w http.ResponseWriter, r *http.Request) {
	viewer := gate.ViewerFromContext(r.Context())
	if viewer == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	data := profilePageData{Email: viewer.Identity.Email, Errors: map[string]string{}}
	p, err := h.profiles.Get(r.Context(), viewer.Identity.ID)
	switch {
	case err == nil:
		data.Form = profiles.ProfileInput{FullName: p.FullName}
		if p.AvatarURL != nil {
			data.Form.AvatarURL = *p.AvatarURL
		}
	case errors.Is(err, shared.ErrNotFound):
		data.Form.FullName = displayName(viewer, nil)
	default:
		h.logger.Error("load profile", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.render(w, r, http.StatusOK, "pages/profile.html", h.templateData(r, "Profile", data))
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	viewer := gate.ViewerFromContext(r.Context())
	if viewer == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := profiles.ProfileInput{
		FullName:  strings.TrimSpace(r.PostFormValue("full_name")),
		AvatarURL: strings.TrimSpace(r.PostFormValue("avatar_url")),
	}
	errs := map[string]string{}
	if err := h.validator.Struct(form); err != nil {
		errs = shared.FieldErrors(err)
	}
	if len(errs) == 0 {
		_, err := h.profiles.UpdateProfile(r.Context(), viewer.Identity.ID, form)
		switch {
		case err == nil:
			if sess := shared.SessionFromContext(r.Context()); sess != nil {
				sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Profile updated"})
			}
			http.Redirect(w, r, "/profile", http.StatusSeeOther)
			return
		case errors.Is(err, shared.ErrNotFound):
			errs["general"] = "Your profile is still being set up. Please try again shortly."
		default:
			h.logger.Error("update profile", slog.Any("error", err))
			errs["general"] = "Could not save your profile."
		}
	}
	data := profilePageData{Email: viewer.Identity.Email, Form: form, Errors: errs}
	h.render(w, r, http.StatusBadRequest, "pages/profile.html", h.templateData(r, "Profile", data))
}

type meResponse struct {
	ID        string        `json:"id"`
	Email     string        `json:"email"`
	FullName  string        `json:"full_name"`
	AvatarURL *string       `json:"avatar_url"`
	Role      profiles.Role `json:"role"`
	IsAdmin   bool          `json:"is_admin"`
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	viewer := gate.ViewerFromContext(r.Context())
	if viewer == nil {
		httpx.JSON(w, http.StatusOK, nil)
		return
	}
	resp := meResponse{
		ID:       viewer.Identity.ID,
		Email:    viewer.Identity.Email,
		FullName: displayName(viewer, nil),
		Role:     viewer.Role,
		IsAdmin:  viewer.IsAdmin,
	}
	p, err := h.profiles.Get(r.Context(), viewer.Identity.ID)
	switch {
	case err == nil:
		resp.FullName = p.FullName
		resp.AvatarURL = p.AvatarURL
	case errors.Is(err, shared.ErrNotFound):
	default:
		h.logger.Warn("api me profile", slog.Any("error", err))
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func displayName(viewer *gate.Viewer, p *profiles.Profile) string {
	if p != nil && strings.TrimSpace(p.FullName) != "" {
		return p.FullName
	}
	for _, s := range []string{viewer.Identity.DisplayName, viewer.Identity.Name} {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	local, _, _ := strings.Cut(viewer.Identity.Email, "@")
	return local
}
