package grouprole

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type allowGuard struct {
	allowed map[string]bool
}

func (g allowGuard) RequireAny(perms ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, perm := range perms {
				if g.allowed[perm] {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, "forbidden", http.StatusForbidden)
		})
	}
}

type stubEnqueuer struct {
	reasons []string
	err     error
}

func (s *stubEnqueuer) EnqueueMembershipInvalidate(ctx context.Context, reason string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.reasons = append(s.reasons, reason)
	return "task-1", nil
}

func newTestRouter(enqueuer InvalidationEnqueuer, perms ...string) http.Handler {
	allowed := make(map[string]bool, len(perms))
	for _, p := range perms {
		allowed[p] = true
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewHandler(logger, NewService(newStubRepo(), nil), enqueuer, allowGuard{allowed: allowed}, "roles.view", "roles.cache")
	r := chi.NewRouter()
	handler.MountRoutes(r)
	return r
}

func TestHandlerListRolesByGroupType(t *testing.T) {
	router := newTestRouter(nil, "roles.view")
	req := httptest.NewRequest(http.MethodGet, "/?group_type=team", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var views []roleView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	require.Len(t, views, 1)
	assert.Equal(t, "team-member", views[0].ID)
	assert.Equal(t, "member", views[0].ShortID)
	assert.Equal(t, AudienceMember, views[0].Implied)
}

func TestHandlerRequiresViewPermission(t *testing.T) {
	router := newTestRouter(nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandlerInvalidateEnqueues(t *testing.T) {
	enqueuer := &stubEnqueuer{}
	router := newTestRouter(enqueuer, "roles.cache")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/cache/invalidate", nil))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"task_id":"task-1"}`, rec.Body.String())
	assert.Equal(t, []string{"manual"}, enqueuer.reasons)
}

func TestHandlerInvalidateQueueUnavailable(t *testing.T) {
	router := newTestRouter(&stubEnqueuer{err: errors.New("redis down")}, "roles.cache")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/cache/invalidate", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandlerInvalidateInline(t *testing.T) {
	router := newTestRouter(nil, "roles.cache")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/cache/invalidate", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"version":0}`, rec.Body.String())
}
