package authorizer

import (
	"errors"
	"fmt"

	"github.com/cloudentity/awshttpapiauthorizer/pkg/introspection"
)

var (
	ErrInactiveToken  = errors.New("token is not active")
	ErrMissingScope   = errors.New("token is missing a required scope")
	ErrMissingRole    = errors.New("token is missing a required project role")
	ErrClientMismatch = errors.New("token was not issued for this client")
)

// Rules are the requirements an introspected token has to meet.
type Rules struct {
	ClientID       string
	RequiredScopes []string
	RequiredRoles  []string
}

// Check returns nil only for active tokens meeting every rule.
func (r Rules) Check(response *introspection.Response) error {
	if response == nil || !response.Active {
		return ErrInactiveToken
	}

	for _, scope := range r.RequiredScopes {
		if !response.HasScope(scope) {
			return fmt.Errorf("%w: %s", ErrMissingScope, scope)
		}
	}

	for _, role := range r.RequiredRoles {
		if !response.HasRole(role) {
			return fmt.Errorf("%w: %s", ErrMissingRole, role)
		}
	}

	if r.ClientID != "" && !issuedFor(response, r.ClientID) {
		return ErrClientMismatch
	}

	return nil
}

func issuedFor(response *introspection.Response, clientID string) bool {
	if response.ClientID == clientID {
		return true
	}

	for _, audience := range response.Audience {
		if audience == clientID {
			return true
		}
	}

	return false
}
