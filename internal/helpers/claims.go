package helpers

import (
	"github.com/golang-jwt/jwt/v5"
)

// Claims are the fields read from a Supabase access token.
type Claims struct {
	Role        string `json:"role"`
	Email       string `json:"email"`
	AppMetadata struct {
		Provider  string   `json:"provider"`
		Providers []string `json:"providers"`
		Roles     []string `json:"roles,omitempty"`
	} `json:"app_metadata"`
	UserMetadata map[string]interface{} `json:"user_metadata"`
	jwt.RegisteredClaims
}

// UserID is the token subject.
func (c *Claims) UserID() string {
	return c.Subject
}

// AppRole returns the first application role granted in app_metadata. The
// top-level "role" claim is the database role ("authenticated") and is not
// an application role.
func (c *Claims) AppRole() string {
	if len(c.AppMetadata.Roles) > 0 {
		return c.AppMetadata.Roles[0]
	}
	return ""
}

// DeclaredCity reads the city the user picked at sign-up, if any.
func (c *Claims) DeclaredCity() string {
	for _, key := range []string{"city", "location"} {
		if s, ok := c.UserMetadata[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
