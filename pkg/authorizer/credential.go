package authorizer

import (
	"errors"
	"strings"
)

const bearerScheme = "Bearer"

var (
	ErrMissingCredential   = errors.New("no Authorization header found")
	ErrMalformedCredential = errors.New("authorization header does not carry a bearer token")
)

// Credential is the bearer token presented by the caller.
type Credential string

func ParseBearer(value string) (Credential, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", ErrMissingCredential
	}

	scheme, token, found := strings.Cut(value, " ")
	if !found || !strings.EqualFold(scheme, bearerScheme) {
		return "", ErrMalformedCredential
	}

	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", ErrMalformedCredential
	}

	return Credential(token), nil
}

// IsJWT is a cheap shape check, JWTs start with a base64url encoded '{"'.
func (c Credential) IsJWT() bool {
	return strings.HasPrefix(string(c), "ey")
}

func (c Credential) IsOpaque() bool {
	return !c.IsJWT()
}

// Redacted is safe to log.
func (c Credential) Redacted() string {
	if len(c) <= 8 {
		return "***"
	}
	return string(c[:4]) + "***" + string(c[len(c)-4:])
}
