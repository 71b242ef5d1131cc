package introspection

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const ProjectRolesClaim = "urn:zitadel:iam:org:project:roles"

// Response is an RFC 7662 introspection response with the profile claims the IdP adds.
type Response struct {
	Active            bool             `json:"active"`
	Scope             string           `json:"scope,omitempty"`
	ClientID          string           `json:"client_id,omitempty"`
	TokenType         string           `json:"token_type,omitempty"`
	Username          string           `json:"username,omitempty"`
	Subject           string           `json:"sub,omitempty"`
	Issuer            string           `json:"iss,omitempty"`
	Audience          jwt.ClaimStrings `json:"aud,omitempty"`
	ExpiresAt         *jwt.NumericDate `json:"exp,omitempty"`
	IssuedAt          *jwt.NumericDate `json:"iat,omitempty"`
	NotBefore         *jwt.NumericDate `json:"nbf,omitempty"`
	JTI               string           `json:"jti,omitempty"`
	Name              string           `json:"name,omitempty"`
	GivenName         string           `json:"given_name,omitempty"`
	FamilyName        string           `json:"family_name,omitempty"`
	PreferredUsername string           `json:"preferred_username,omitempty"`
	Email             string           `json:"email,omitempty"`
	EmailVerified     bool             `json:"email_verified,omitempty"`
	Locale            string           `json:"locale,omitempty"`
	ProjectRoles      []string         `json:"project_roles,omitempty"`

	// Claims holds every member of the response, including the ones mapped above.
	Claims map[string]interface{} `json:"-"`
}

func (r *Response) UnmarshalJSON(data []byte) error {
	type response Response
	decoded := response{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}

	claims := map[string]interface{}{}
	if err := json.Unmarshal(data, &claims); err != nil {
		return err
	}

	*r = Response(decoded)
	r.Claims = claims
	if len(r.ProjectRoles) == 0 {
		r.ProjectRoles = projectRoles(claims[ProjectRolesClaim])
	}

	return nil
}

// project roles are keyed by role name, the values describe the granting organisations
func projectRoles(claim interface{}) []string {
	grants, ok := claim.(map[string]interface{})
	if !ok {
		return nil
	}

	roles := make([]string, 0, len(grants))
	for role := range grants {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	return roles
}

func (r *Response) Scopes() []string {
	return strings.Fields(r.Scope)
}

func (r *Response) HasScope(scope string) bool {
	for _, candidate := range r.Scopes() {
		if candidate == scope {
			return true
		}
	}
	return false
}

func (r *Response) HasRole(role string) bool {
	for _, candidate := range r.ProjectRoles {
		if candidate == role {
			return true
		}
	}
	return false
}

// Expiry returns the token expiry, zero when the response has none.
func (r *Response) Expiry() time.Time {
	if r.ExpiresAt == nil {
		return time.Time{}
	}
	return r.ExpiresAt.Time
}

// AuthorizerContext is the claim set handed to backends through the authorizer context.
func (r *Response) AuthorizerContext() map[string]interface{} {
	values := make(map[string]interface{}, len(r.Claims)+1)
	for key, value := range r.Claims {
		values[key] = value
	}

	roles := make([]interface{}, 0, len(r.ProjectRoles))
	for _, role := range r.ProjectRoles {
		roles = append(roles, role)
	}
	values["project_roles"] = roles

	return values
}
