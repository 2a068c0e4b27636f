package view

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devcampus/devcampus/internal/gate"
	"github.com/devcampus/devcampus/internal/identity"
	"github.com/devcampus/devcampus/internal/profiles"
	"github.com/devcampus/devcampus/internal/shared"
)

func TestNewEngine(t *testing.T) {
	engine, err := NewEngine()
	assert.NoError(t, err, "Templates should parse without error")
	assert.NotNil(t, engine)
}

func TestNavShowsAdminLinkOnlyToAdmins(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)

	data := TemplateData{
		Title: "Home",
		Flash: &shared.FlashMessage{Kind: "success", Message: "Welcome back"},
		Data:  struct{ AuthRequired bool }{},
	}
	rr := httptest.NewRecorder()
	require.NoError(t, engine.Render(rr, "pages/home.html", data))
	assert.Contains(t, rr.Body.String(), "Welcome back")
	assert.Contains(t, rr.Body.String(), `href="/auth/login"`)
	assert.NotContains(t, rr.Body.String(), `href="/admin"`)

	data.Viewer = &gate.Viewer{Identity: identity.Identity{ID: "a", Email: "a@x.com"}, Role: profiles.RoleAdmin, IsAdmin: true}
	rr = httptest.NewRecorder()
	require.NoError(t, engine.Render(rr, "pages/home.html", data))
	assert.Contains(t, rr.Body.String(), `href="/admin"`)
}

func TestRenderStatus(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	err = engine.RenderStatus(rr, http.StatusBadRequest, "pages/login.html", TemplateData{
		Data: struct{ Mode, Next, StartURL string }{Mode: "signup", StartURL: "/auth/login/start"},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "Create your account")

	rr = httptest.NewRecorder()
	assert.Error(t, engine.RenderStatus(rr, http.StatusOK, "pages/missing.html", TemplateData{}))
	assert.Equal(t, http.StatusOK, rr.Code)
}
