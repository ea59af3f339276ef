package auth_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/grouprole-condition/internal/auth"
	"github.com/odyssey-erp/grouprole-condition/internal/shared"
	"github.com/odyssey-erp/grouprole-condition/internal/view"
	_ "github.com/odyssey-erp/grouprole-condition/testing"
)

type stubRepo struct {
	user     *auth.User
	sessions map[string]int64
}

func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	if s.user == nil || !strings.EqualFold(s.user.Email, email) {
		return nil, auth.ErrUserNotFound
	}
	return s.user, nil
}

func (s *stubRepo) CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	if s.sessions == nil {
		s.sessions = make(map[string]int64)
	}
	s.sessions[id] = userID
	return nil
}

func (s *stubRepo) DeleteSession(ctx context.Context, id string) error {
	delete(s.sessions, id)
	return nil
}

func newAuthHandler(t *testing.T, repo auth.Repository) (*auth.Handler, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })
	sessionManager := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)
	templates, err := view.NewEngine()
	if err != nil {
		t.Fatalf("templates: %v", err)
	}
	handler := auth.NewHandler(nil, auth.NewService(repo), templates, sessionManager, shared.NewCSRFManager("csrfsecret"))
	return handler, sessionManager
}

func activeUser(t *testing.T) *auth.User {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte("correctpass"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return &auth.User{ID: 7, Email: "editor@test.local", PasswordHash: string(hashed), IsActive: true}
}

// primeSession renders the login page once so the session carries a CSRF token.
func primeSession(t *testing.T, handler *auth.Handler, sessionManager *shared.SessionManager) *shared.Session {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/auth/login", nil)
	sess, err := sessionManager.Load(context.Background(), req)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	ctx := shared.ContextWithSession(req.Context(), sess)
	req = req.WithContext(ctx)
	res := httptest.NewRecorder()
	handler.ShowLoginForTest(res, req)
	if err := sessionManager.Commit(ctx, res, sess); err != nil {
		t.Fatalf("commit session: %v", err)
	}
	if res.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "<form") {
		t.Fatalf("expected login form in body")
	}
	if sess.Get(shared.CSRFSessionKey) == "" {
		t.Fatalf("csrf token not set")
	}
	return sess
}

func postLogin(t *testing.T, handler *auth.Handler, sessionManager *shared.SessionManager, sess *shared.Session, email, password string) (*httptest.ResponseRecorder, *shared.Session) {
	t.Helper()
	form := url.Values{}
	form.Set("email", email)
	form.Set("password", password)
	form.Set("csrf_token", sess.Get(shared.CSRFSessionKey))

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(sessionManager.Cookie(sess))

	loaded, err := sessionManager.Load(context.Background(), req)
	if err != nil {
		t.Fatalf("load session for post: %v", err)
	}
	ctx := shared.ContextWithSession(req.Context(), loaded)
	req = req.WithContext(ctx)
	res := httptest.NewRecorder()
	handler.HandleLoginForTest(res, req)
	if err := sessionManager.Commit(ctx, res, loaded); err != nil {
		t.Fatalf("commit session post: %v", err)
	}
	return res, loaded
}

func TestLoginInvalidCredentials(t *testing.T) {
	handler, sessionManager := newAuthHandler(t, &stubRepo{user: activeUser(t)})
	sess := primeSession(t, handler, sessionManager)

	res, loaded := postLogin(t, handler, sessionManager, sess, "editor@test.local", "wrongpass")
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "Invalid email or password") {
		t.Fatalf("expected error message in response")
	}
	if !loaded.Actor().IsAnonymous() {
		t.Fatalf("expected anonymous actor after failed login")
	}
}

func TestLoginValidation(t *testing.T) {
	handler, sessionManager := newAuthHandler(t, &stubRepo{user: activeUser(t)})
	sess := primeSession(t, handler, sessionManager)

	res, _ := postLogin(t, handler, sessionManager, sess, "not-an-email", "short")
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "&#39;email&#39; tag") {
		t.Fatalf("expected email validation message, got %s", res.Body.String())
	}
}

func TestLoginBindsActor(t *testing.T) {
	repo := &stubRepo{user: activeUser(t)}
	handler, sessionManager := newAuthHandler(t, repo)
	sess := primeSession(t, handler, sessionManager)

	res, loaded := postLogin(t, handler, sessionManager, sess, "Editor@test.local", "correctpass")
	if res.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", res.Code)
	}
	if got := res.Header().Get("Location"); got != "/conditions/" {
		t.Fatalf("unexpected redirect %q", got)
	}
	if loaded.Actor().ID != 7 {
		t.Fatalf("expected actor 7, got %d", loaded.Actor().ID)
	}
	if repo.sessions[loaded.ID] != 7 {
		t.Fatalf("expected session to be registered")
	}
	if loaded.ID == sess.ID {
		t.Fatalf("expected session id to change on login")
	}
	if loaded.Get(shared.CSRFSessionKey) == sess.Get(shared.CSRFSessionKey) {
		t.Fatalf("expected csrf token to rotate on login")
	}
}

func TestAuthenticateRejectsInactiveUsers(t *testing.T) {
	user := activeUser(t)
	user.IsActive = false
	_, err := auth.NewService(&stubRepo{user: user}).Authenticate(context.Background(), user.Email, "correctpass")
	if !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
}
