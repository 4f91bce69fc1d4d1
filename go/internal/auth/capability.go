package auth

import (
	"net/http"
	"strings"
)

// Role is the capability level granted upstream
type Role string

const (
	RoleViewer Role = "viewer"
	RoleAdmin  Role = "admin"
)

// CookieName carries the session token for browser websocket upgrades.
const CookieName = "fanzone_token"

// Capability is what the caller is allowed to do. The zero value is an
// anonymous viewer.
type Capability struct {
	UserID   string
	Username string
	Role     Role
}

// Anonymous is a read-only viewer
func Anonymous() Capability {
	return Capability{}
}

func (c Capability) IsAuthenticated() bool {
	return c.UserID != ""
}

func (c Capability) IsAdmin() bool {
	return c.IsAuthenticated() && c.Role == RoleAdmin
}

// TokenFromRequest looks for a bearer token, then a token query parameter,
// then the session cookie.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return c.Value
	}
	return ""
}
