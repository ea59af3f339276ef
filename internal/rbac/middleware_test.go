package rbac

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/odyssey-erp/grouprole-condition/internal/grouprole"
	"github.com/odyssey-erp/grouprole-condition/internal/shared"
)

type stubSource struct {
	perms map[int64][]string
	err   error
}

func (s stubSource) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	return s.perms[userID], s.err
}

func serve(mw func(http.Handler) http.Handler, actor grouprole.Actor) int {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(shared.ContextWithActor(req.Context(), actor))
	rec := httptest.NewRecorder()
	mw(next).ServeHTTP(rec, req)
	return rec.Code
}

func TestRequireAny(t *testing.T) {
	m := Middleware{Service: stubSource{perms: map[int64][]string{
		1: {"Conditions.View"},
		2: {PermGroupRolesView},
	}}}
	mw := m.RequireAny(PermConditionsView, PermConditionsEdit)

	assert.Equal(t, http.StatusNoContent, serve(mw, grouprole.Actor{ID: 1}))
	assert.Equal(t, http.StatusForbidden, serve(mw, grouprole.Actor{ID: 2}))
	assert.Equal(t, http.StatusForbidden, serve(mw, grouprole.Actor{}))
}

func TestRequireAll(t *testing.T) {
	m := Middleware{Service: stubSource{perms: map[int64][]string{
		1: {PermConditionsView, PermConditionsEdit},
		2: {PermConditionsView},
	}}}
	mw := m.RequireAll(PermConditionsView, PermConditionsEdit)

	assert.Equal(t, http.StatusNoContent, serve(mw, grouprole.Actor{ID: 1}))
	assert.Equal(t, http.StatusForbidden, serve(mw, grouprole.Actor{ID: 2}))
}

func TestRequireWithoutPermissionsPassesThrough(t *testing.T) {
	m := Middleware{}
	assert.Equal(t, http.StatusNoContent, serve(m.RequireAny(" "), grouprole.Actor{}))
	assert.Equal(t, http.StatusNoContent, serve(m.RequireAll(), grouprole.Actor{}))
}

func TestRequireSourceError(t *testing.T) {
	m := Middleware{Service: stubSource{err: errors.New("pg down")}}
	assert.Equal(t, http.StatusInternalServerError, serve(m.RequireAny(PermCacheManage), grouprole.Actor{ID: 1}))
	assert.Equal(t, http.StatusInternalServerError, serve(m.RequireAll(PermCacheManage), grouprole.Actor{ID: 1}))
}

func TestScopesAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, scope := range Scopes() {
		assert.False(t, seen[scope], scope)
		seen[scope] = true
	}
	assert.Len(t, seen, 5)
}
