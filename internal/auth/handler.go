// Package auth serves the sign-in, sign-up, callback and sign-out flow
// against the external identity provider.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/devcampus/devcampus/internal/gate"
	"github.com/devcampus/devcampus/internal/identity"
	"github.com/devcampus/devcampus/internal/shared"
	"github.com/devcampus/devcampus/internal/view"
)

// StateCookieName carries the signed sign-in attempt between start and callback.
const StateCookieName = "__oauth_state"

// Bootstrapper creates the profile of first-time members.
type Bootstrapper interface {
	Bootstrap(ctx context.Context, ident *identity.Identity) bool
}

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	provider       identity.Provider
	states         *identity.StateSigner
	bootstrapper   Bootstrapper
	templates      *view.Engine
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	policy         gate.Policy
	secureCookies  bool
}

// HandlerConfig groups the dependencies of a Handler.
type HandlerConfig struct {
	Logger        *slog.Logger
	Provider      identity.Provider
	States        *identity.StateSigner
	Bootstrapper  Bootstrapper
	Templates     *view.Engine
	Sessions      *shared.SessionManager
	CSRF          *shared.CSRFManager
	Policy        gate.Policy
	SecureCookies bool
}

// NewHandler constructs a Handler instance.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		provider:       cfg.Provider,
		states:         cfg.States,
		bootstrapper:   cfg.Bootstrapper,
		templates:      cfg.Templates,
		sessionManager: cfg.Sessions,
		csrfManager:    cfg.CSRF,
		policy:         cfg.Policy,
		secureCookies:  cfg.SecureCookies,
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/login", h.showLogin)
	r.Get("/signup", h.showSignup)
	r.Get("/login/start", h.startLogin)
	r.Get("/callback", h.callback)
	r.Post("/logout", h.handleLogout)
}

type loginPageData struct {
	Mode     string
	Next     string
	StartURL string
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	h.renderLogin(w, r, "login", "Sign in")
}

func (h *Handler) showSignup(w http.ResponseWriter, r *http.Request) {
	h.renderLogin(w, r, "signup", "Join DevCampus")
}

func (h *Handler) renderLogin(w http.ResponseWriter, r *http.Request, mode, title string) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrfManager.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	next := SafeNext(r.URL.Query().Get("next"))
	start := "/auth/login/start"
	if next != "" {
		start += "?" + url.Values{"next": {next}}.Encode()
	}
	viewData := view.TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Data:        loginPageData{Mode: mode, Next: next, StartURL: start},
	}
	if err := h.templates.Render(w, "pages/login.html", viewData); err != nil {
		h.logger.Error("render login", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) startLogin(w http.ResponseWriter, r *http.Request) {
	value, st, err := h.states.Issue(SafeNext(r.URL.Query().Get("next")))
	if err != nil {
		h.logger.Error("issue oauth state", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     StateCookieName,
		Value:    value,
		Path:     "/auth",
		MaxAge:   int(identity.StateTTL / time.Second),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.provider.AuthCodeURL(st.Nonce, st.Challenge), http.StatusFound)
}

func (h *Handler) callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	h.clearStateCookie(w)
	q := r.URL.Query()

	if providerErr := q.Get("error"); providerErr != "" {
		h.logger.Info("provider rejected sign-in",
			slog.String("error", providerErr),
			slog.String("description", q.Get("error_description")))
		h.failSignIn(w, r, "Sign-in was cancelled. Please try again.")
		return
	}

	var cookieValue string
	if c, err := r.Cookie(StateCookieName); err == nil {
		cookieValue = c.Value
	}
	st, err := h.states.Verify(cookieValue, q.Get("state"))
	if err != nil {
		h.logger.Warn("oauth state rejected", slog.Any("error", err))
		h.failSignIn(w, r, "Your sign-in attempt expired. Please try again.")
		return
	}
	code := q.Get("code")
	if code == "" {
		h.failSignIn(w, r, "Sign-in failed. Please try again.")
		return
	}

	ident, tok, err := h.provider.ExchangeCode(ctx, code, st.Verifier)
	if err != nil {
		h.logger.Warn("exchange authorization code", slog.Any("error", err))
		h.failSignIn(w, r, "Sign-in failed. Please try again.")
		return
	}

	sess := shared.SessionFromContext(ctx)
	if sess == nil {
		h.logger.Error("session missing during callback")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.sessionManager.Renew(sess)
	if err := gate.SignIn(sess, ident, tok); err != nil {
		h.logger.Error("store sign-in", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	message := "Welcome back"
	if h.bootstrapper != nil && h.bootstrapper.Bootstrap(ctx, ident) {
		message = "Welcome to DevCampus"
	}
	sess.AddFlash(shared.FlashMessage{Kind: "success", Message: message})
	h.logger.Info("signed in", slog.String("identity", ident.ID))

	target := SafeNext(st.Next)
	if target == "" {
		target = h.policy.Landing()
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		gate.SignOut(sess)
		h.sessionManager.Destroy(sess)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) failSignIn(w http.ResponseWriter, r *http.Request, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: "error", Message: message})
	}
	http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
}

func (h *Handler) clearStateCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     StateCookieName,
		Value:    "",
		Path:     "/auth",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// ErrUnsafeRedirect marks a next parameter that leaves the site.
var ErrUnsafeRedirect = errors.New("auth: unsafe redirect target")

// ValidateNext accepts only same-site absolute paths.
func ValidateNext(next string) error {
	if next == "" || !strings.HasPrefix(next, "/") {
		return ErrUnsafeRedirect
	}
	if strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return ErrUnsafeRedirect
	}
	if strings.ContainsAny(next, "\r\n\t") {
		return ErrUnsafeRedirect
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return ErrUnsafeRedirect
	}
	return nil
}

// SafeNext returns next when it is a local path and "" otherwise.
func SafeNext(next string) string {
	if ValidateNext(next) != nil {
		return ""
	}
	return next
}
