package supabase

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// User is the authenticated identity attached to a session.
type User struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	Role         string         `json:"role,omitempty"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
	CreatedAt    *time.Time     `json:"created_at,omitempty"`
}

// FullName returns the full_name metadata captured at sign-up, if any.
func (u User) FullName() string {
	if name, ok := u.UserMetadata["full_name"].(string); ok {
		return name
	}
	return ""
}

// Session is an opaque token bundle. Outside this package only its presence and User matter.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	User         User   `json:"user"`
}

// Expiry returns the session expiry, or the zero time when it cannot be determined.
func (s *Session) Expiry() time.Time {
	if s == nil || s.ExpiresAt <= 0 {
		return time.Time{}
	}
	return time.Unix(s.ExpiresAt, 0)
}

// clone returns a copy callers may keep without racing the owner.
func (s *Session) clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	if s.User.UserMetadata != nil {
		cp.User.UserMetadata = make(map[string]any, len(s.User.UserMetadata))
		for k, v := range s.User.UserMetadata {
			cp.User.UserMetadata[k] = v
		}
	}
	return &cp
}

// normalizeExpiry fills ExpiresAt from the access token's exp claim, or from ExpiresIn.
func normalizeExpiry(s *Session, now time.Time) {
	if s == nil || s.ExpiresAt > 0 {
		return
	}
	if exp, ok := tokenExpiry(s.AccessToken); ok {
		s.ExpiresAt = exp.Unix()
		return
	}
	if s.ExpiresIn > 0 {
		s.ExpiresAt = now.Add(time.Duration(s.ExpiresIn) * time.Second).Unix()
	}
}

// tokenExpiry reads the exp claim without verifying the signature; the backend verifies tokens.
func tokenExpiry(token string) (time.Time, bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return time.Time{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	switch exp := claims["exp"].(type) {
	case float64:
		return time.Unix(int64(exp), 0), true
	default:
		return time.Time{}, false
	}
}
