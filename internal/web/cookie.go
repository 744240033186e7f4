package web

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

const (
	visitorCookieName = "KTP_VISITOR"
	visitorCookieTTL  = 30 * 24 * time.Hour
)

// visitorState is the signed payload carried in the visitor cookie.
type visitorState struct {
	ID        string    `json:"id"`
	CSRFToken string    `json:"csrf"`
	CreatedAt time.Time `json:"createdAt"`
}

func newVisitorState(now time.Time) visitorState {
	return visitorState{
		ID:        NewVisitorID(),
		CSRFToken: newCSRFToken(),
		CreatedAt: now.UTC(),
	}
}

func (s visitorState) valid() bool {
	if s.CSRFToken == "" {
		return false
	}
	_, err := ulid.ParseStrict(s.ID)
	return err == nil
}

// NewVisitorID returns a fresh, time-sortable visitor identifier.
func NewVisitorID() string {
	return ulid.Make().String()
}

// CookieCodec signs and verifies visitor cookies with HMAC-SHA256.
type CookieCodec struct {
	key    []byte
	secure bool
}

// NewCookieCodec builds a codec. An empty key yields a process-ephemeral one, so visitors are
// forgotten on restart.
func NewCookieCodec(signingKey string, secure bool, logger *zap.Logger) *CookieCodec {
	if logger == nil {
		logger = zap.NewNop()
	}
	key := []byte(signingKey)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			logger.Error("visitor cookie: generate signing key", zap.Error(err))
			key = []byte("insecure-dev-key-set-STOREFRONT_SESSION_SIGNING_KEY")
		}
		logger.Warn("visitor cookie: using ephemeral signing key; set STOREFRONT_SESSION_SIGNING_KEY to keep visitors across restarts")
	}
	return &CookieCodec{key: key, secure: secure}
}

func (c *CookieCodec) read(r *http.Request) (visitorState, bool) {
	cookie, err := r.Cookie(visitorCookieName)
	if err != nil || cookie.Value == "" {
		return visitorState{}, false
	}
	payloadPart, sigPart, ok := strings.Cut(cookie.Value, ".")
	if !ok {
		return visitorState{}, false
	}
	payload, err := base64.RawURLEncoding.DecodeString(payloadPart)
	if err != nil {
		return visitorState{}, false
	}
	sig, err := base64.RawURLEncoding.DecodeString(sigPart)
	if err != nil {
		return visitorState{}, false
	}
	if !hmac.Equal(sig, c.sign(payload)) {
		return visitorState{}, false
	}
	var state visitorState
	if err := json.Unmarshal(payload, &state); err != nil {
		return visitorState{}, false
	}
	if !state.valid() {
		return visitorState{}, false
	}
	return state, true
}

func (c *CookieCodec) write(w http.ResponseWriter, state visitorState) {
	http.SetCookie(w, c.cookie(state))
}

func (c *CookieCodec) cookie(state visitorState) *http.Cookie {
	payload, _ := json.Marshal(state)
	value := base64.RawURLEncoding.EncodeToString(payload) + "." + base64.RawURLEncoding.EncodeToString(c.sign(payload))
	return &http.Cookie{
		Name:     visitorCookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(visitorCookieTTL),
	}
}

func (c *CookieCodec) sign(payload []byte) []byte {
	mac := hmac.New(sha256.New, c.key)
	mac.Write(payload)
	return mac.Sum(nil)
}

func newCSRFToken() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
