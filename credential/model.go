package credential

import "strings"

// Persisted key names shared by every store backend.
const (
	KeyAccessToken  = "ACCESS_TOKEN"
	KeyRefreshToken = "REFRESH_TOKEN"
	KeyUserRole     = "USER_ROLE"
)

// Role is the account grade reported by the API.
type Role string

const (
	RoleNone    Role = ""
	RoleCommon  Role = "COMMON"
	RolePremium Role = "PREMIUM"
	RoleAdmin   Role = "ADMIN"
)

// ParseRole normalizes a role string. Unknown values are kept verbatim so a
// newer server can introduce grades without breaking older clients.
func ParseRole(s string) Role {
	s = strings.TrimSpace(s)
	switch strings.ToUpper(s) {
	case "":
		return RoleNone
	case string(RoleCommon):
		return RoleCommon
	case string(RolePremium):
		return RolePremium
	case string(RoleAdmin):
		return RoleAdmin
	default:
		return Role(s)
	}
}

// Known reports whether r is one of the grades this client understands.
func (r Role) Known() bool {
	switch r {
	case RoleCommon, RolePremium, RoleAdmin:
		return true
	default:
		return false
	}
}

// Credential is the persisted authentication state. An empty AccessToken
// means the client is unauthenticated.
type Credential struct {
	AccessToken  string
	RefreshToken string
	Role         Role
}

// Authenticated reports whether an access token is present.
func (c Credential) Authenticated() bool {
	return c.AccessToken != ""
}

// Empty reports whether no value at all is stored.
func (c Credential) Empty() bool {
	return c.AccessToken == "" && c.RefreshToken == "" && c.Role == RoleNone
}

func (c Credential) toMap() map[string]string {
	out := make(map[string]string, 3)
	if c.AccessToken != "" {
		out[KeyAccessToken] = c.AccessToken
	}
	if c.RefreshToken != "" {
		out[KeyRefreshToken] = c.RefreshToken
	}
	if c.Role != RoleNone {
		out[KeyUserRole] = string(c.Role)
	}
	return out
}

func fromMap(m map[string]string) Credential {
	return Credential{
		AccessToken:  m[KeyAccessToken],
		RefreshToken: m[KeyRefreshToken],
		Role:         ParseRole(m[KeyUserRole]),
	}
}

// merge overlays the non-empty fields of patch onto c.
func (c Credential) merge(patch Credential) Credential {
	if patch.AccessToken != "" {
		c.AccessToken = patch.AccessToken
	}
	if patch.RefreshToken != "" {
		c.RefreshToken = patch.RefreshToken
	}
	if patch.Role != RoleNone {
		c.Role = patch.Role
	}
	return c
}
