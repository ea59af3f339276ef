package view

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/grouprole-condition/internal/shared"
)

func TestNewEngine(t *testing.T) {
	engine, err := NewEngine()
	assert.NoError(t, err, "Templates should parse without error")
	assert.NotNil(t, engine)
}

func TestRenderUnknownTemplate(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)
	err = engine.Render(httptest.NewRecorder(), "pages/missing.html", TemplateData{})
	assert.Error(t, err)
}

func TestRenderNilEngine(t *testing.T) {
	var engine *Engine
	assert.Error(t, engine.Render(httptest.NewRecorder(), "pages/condition_form.html", TemplateData{}))
}

func TestRenderPagesKeepOwnContent(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	require.NoError(t, engine.Render(rec, "pages/login.html", TemplateData{
		Title:     "Sign in",
		CSRFToken: "tok",
		Data:      map[string]any{"Form": struct{ Email string }{}, "Errors": map[string]string(nil)},
	}))
	assert.Contains(t, rec.Body.String(), `action="/auth/login"`)
	assert.Contains(t, rec.Body.String(), `value="tok"`)
	assert.NotContains(t, rec.Body.String(), "group_roles[")

	rec = httptest.NewRecorder()
	require.NoError(t, engine.Render(rec, "pages/condition_form.html", TemplateData{
		Title: "Editors",
		Flash: &shared.FlashMessage{Kind: "success", Message: "Condition saved"},
		Data: map[string]any{
			"Form":   formStub{Title: "Group roles"},
			"Record": struct{ Label string }{"Editors"},
		},
	}))
	body := rec.Body.String()
	assert.Contains(t, body, "<legend>Group roles</legend>")
	assert.Contains(t, body, `class="flash flash-success"`)
	assert.NotContains(t, body, `action="/auth/login"`)
}

type formStub struct {
	Title       string
	Description string
	NegateLabel string
	Negate      bool
	Options     []struct {
		Key     string
		Label   string
		Checked bool
	}
}
