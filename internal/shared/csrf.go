package shared

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"
)

const (
	// CSRFSessionKey is the session value holding the issued token.
	CSRFSessionKey = "csrf_token"
	// CSRFFormField carries the token on the login and condition edit forms.
	CSRFFormField = "csrf_token"
	// CSRFHeader carries the token on JSON API calls.
	CSRFHeader = "X-CSRF-Token"
)

// CSRFManager issues tokens bound to a session. A token is a random nonce and
// an HMAC over the session ID and nonce; it is valid only for the session it
// was issued to and only while that session still stores it.
type CSRFManager struct {
	secret []byte
}

// NewCSRFManager returns a CSRFManager using the provided secret key.
func NewCSRFManager(secret string) *CSRFManager {
	return &CSRFManager{secret: []byte(secret)}
}

// Token returns the session token, issuing one when none is stored or the
// stored one belongs to a previous session ID.
func (m *CSRFManager) Token(sess *Session) (string, error) {
	if sess == nil {
		return "", ErrCSRFTokenMissing
	}
	if token := sess.Get(CSRFSessionKey); token != "" && m.signedFor(sess.ID, token) {
		return token, nil
	}
	return m.Rotate(sess)
}

// Rotate replaces the session token, invalidating forms rendered earlier.
func (m *CSRFManager) Rotate(sess *Session) (string, error) {
	if sess == nil {
		return "", ErrCSRFTokenMissing
	}
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	nonce := base64.RawURLEncoding.EncodeToString(raw)
	token := nonce + "." + m.sign(sess.ID, nonce)
	sess.Set(CSRFSessionKey, token)
	return token, nil
}

// Exempt reports whether r is a read-only request that skips verification.
func (m *CSRFManager) Exempt(r *http.Request) bool {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// Verify checks the token presented on r. JSON clients send it in the
// X-CSRF-Token header; HTML forms post it as a field.
func (m *CSRFManager) Verify(r *http.Request, sess *Session) error {
	if sess == nil {
		return ErrCSRFTokenMissing
	}
	presented := r.Header.Get(CSRFHeader)
	if presented == "" {
		presented = r.PostFormValue(CSRFFormField)
	}
	expected := sess.Get(CSRFSessionKey)
	if expected == "" || presented == "" {
		return ErrCSRFTokenMissing
	}
	if !hmac.Equal([]byte(expected), []byte(presented)) || !m.signedFor(sess.ID, presented) {
		return ErrCSRFTokenMismatch
	}
	return nil
}

func (m *CSRFManager) sign(sessionID, nonce string) string {
	mac := hmac.New(sha256.New, m.secret)
	_, _ = mac.Write([]byte(sessionID))
	_, _ = mac.Write([]byte{'|'})
	_, _ = mac.Write([]byte(nonce))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func (m *CSRFManager) signedFor(sessionID, token string) bool {
	nonce, sig, ok := strings.Cut(token, ".")
	if !ok || nonce == "" {
		return false
	}
	return hmac.Equal([]byte(sig), []byte(m.sign(sessionID, nonce)))
}
