package shared

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/grouprole-condition/internal/grouprole"
)

// FlashMessage is shown once on the next rendered page.
type FlashMessage struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// SessionManager keeps sessions in Redis behind a signed cookie. The cookie
// carries the session ID and an HMAC of it, so guessed or tampered IDs load
// as fresh anonymous sessions.
type SessionManager struct {
	client     *redis.Client
	cookieName string
	ttl        time.Duration
	secure     bool
	secret     []byte
}

// Session holds the acting user, form tokens and pending flashes of one browser.
type Session struct {
	ID        string
	values    map[string]string
	actorID   int64
	flashes   []FlashMessage
	replaced  string
	dirty     bool
	destroyed bool
}

type sessionPayload struct {
	Values  map[string]string `json:"values,omitempty"`
	ActorID int64             `json:"actor_id,omitempty"`
	Flashes []FlashMessage    `json:"flashes,omitempty"`
}

// NewSessionManager constructs a SessionManager.
func NewSessionManager(client *redis.Client, cookieName string, secret string, ttl time.Duration, secure bool) *SessionManager {
	return &SessionManager{
		client:     client,
		cookieName: cookieName,
		ttl:        ttl,
		secure:     secure,
		secret:     []byte(secret),
	}
}

// Load restores the session named by the request cookie or starts a new one.
// Expired or unsigned IDs are never reused.
func (sm *SessionManager) Load(ctx context.Context, r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(sm.cookieName)
	if errors.Is(err, http.ErrNoCookie) {
		return sm.newSession(), nil
	}
	if err != nil {
		return nil, err
	}
	id, ok := sm.verifyCookie(cookie.Value)
	if !ok {
		return sm.newSession(), nil
	}

	payload, err := sm.client.Get(ctx, sm.redisKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return sm.newSession(), nil
	}
	if err != nil {
		return nil, err
	}
	var stored sessionPayload
	if err := json.Unmarshal(payload, &stored); err != nil {
		return nil, err
	}
	return &Session{
		ID:      id,
		values:  stored.Values,
		actorID: stored.ActorID,
		flashes: stored.Flashes,
	}, nil
}

// Commit persists pending changes and refreshes the cookie.
func (sm *SessionManager) Commit(ctx context.Context, w http.ResponseWriter, sess *Session) error {
	if sess == nil {
		return nil
	}
	if sess.replaced != "" {
		if err := sm.client.Del(ctx, sm.redisKey(sess.replaced)).Err(); err != nil {
			return err
		}
		sess.replaced = ""
	}

	if sess.destroyed {
		if err := sm.client.Del(ctx, sm.redisKey(sess.ID)).Err(); err != nil {
			return err
		}
		expired := sm.Cookie(sess)
		expired.Value = ""
		expired.MaxAge = -1
		expired.Expires = time.Time{}
		http.SetCookie(w, expired)
		return nil
	}

	if sess.dirty {
		data, err := json.Marshal(sessionPayload{Values: sess.values, ActorID: sess.actorID, Flashes: sess.flashes})
		if err != nil {
			return err
		}
		if err := sm.client.Set(ctx, sm.redisKey(sess.ID), data, sm.ttl).Err(); err != nil {
			return err
		}
		sess.dirty = false
	}
	http.SetCookie(w, sm.Cookie(sess))
	return nil
}

// Cookie returns the signed cookie naming sess.
func (sm *SessionManager) Cookie(sess *Session) *http.Cookie {
	return &http.Cookie{
		Name:     sm.cookieName,
		Value:    sess.ID + "." + sm.sign(sess.ID),
		Path:     "/",
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteStrictMode,
		Expires:  time.Now().Add(sm.ttl),
	}
}

// Renew moves the session to a new ID. The old Redis key is removed on
// commit, so an ID planted before login cannot follow the user in.
func (sm *SessionManager) Renew(sess *Session) {
	if sess == nil {
		return
	}
	if sess.replaced == "" {
		sess.replaced = sess.ID
	}
	sess.ID = uuid.NewString()
	sess.dirty = true
}

// Destroy marks the session for deletion.
func (sm *SessionManager) Destroy(sess *Session) {
	if sess == nil {
		return
	}
	sess.destroyed = true
}

// TTL exposes the configured session lifetime.
func (sm *SessionManager) TTL() time.Duration {
	return sm.ttl
}

// Set stores a key-value pair.
func (s *Session) Set(key, value string) {
	if s.values == nil {
		s.values = make(map[string]string)
	}
	s.values[key] = value
	s.dirty = true
}

// Get retrieves a value.
func (s *Session) Get(key string) string {
	return s.values[key]
}

// SetActor binds the logged-in user to the session.
func (s *Session) SetActor(actor grouprole.Actor) {
	s.actorID = actor.ID
	s.dirty = true
}

// Actor resolves the acting user. Sessions without a user belong to the
// anonymous actor.
func (s *Session) Actor() grouprole.Actor {
	if s == nil || s.actorID <= 0 {
		return grouprole.Actor{}
	}
	return grouprole.Actor{ID: s.actorID}
}

// AddFlash queues a message for the next rendered page.
func (s *Session) AddFlash(msg FlashMessage) {
	s.flashes = append(s.flashes, msg)
	s.dirty = true
}

// PopFlash removes and returns the oldest queued message.
func (s *Session) PopFlash() *FlashMessage {
	if len(s.flashes) == 0 {
		return nil
	}
	msg := s.flashes[0]
	s.flashes = s.flashes[1:]
	s.dirty = true
	return &msg
}

func (sm *SessionManager) newSession() *Session {
	return &Session{
		ID:     uuid.NewString(),
		values: make(map[string]string),
		dirty:  true,
	}
}

func (sm *SessionManager) redisKey(id string) string {
	return "grouprole:session:" + id
}

func (sm *SessionManager) sign(id string) string {
	mac := hmac.New(sha256.New, sm.secret)
	_, _ = mac.Write([]byte(id))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func (sm *SessionManager) verifyCookie(value string) (string, bool) {
	id, sig, ok := strings.Cut(value, ".")
	if !ok || id == "" {
		return "", false
	}
	return id, hmac.Equal([]byte(sig), []byte(sm.sign(id)))
}
