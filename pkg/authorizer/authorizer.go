package authorizer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cloudentity/awshttpapiauthorizer/pkg/introspection"
)

var ErrDecisionUnavailable = errors.New("authorization decision unavailable")

type (
	// Request is what the gateway knows about a call when it asks for a decision.
	Request struct {
		IdentitySource        []string
		RouteArn              string
		RouteKey              string
		RawPath               string
		Headers               map[string]string
		QueryStringParameters map[string]string
	}

	Decision struct {
		Allowed     bool
		PrincipalID string
		// Context is shared with every holder of the decision and must be treated as read only.
		Context map[string]interface{}
		// ExpiresAt is the token expiry, zero when unknown.
		ExpiresAt time.Time
		// Transient marks denials caused by failures rather than by the credential itself.
		Transient bool
	}

	Decider interface {
		Decide(ctx context.Context, request *Request) (*Decision, error)
	}

	Introspector interface {
		Introspect(ctx context.Context, token string) (*introspection.Response, error)
	}

	Authorizer struct {
		introspector Introspector
		rules        Rules
		logger       *logrus.Entry
	}
)

func Deny() *Decision {
	return &Decision{}
}

func TransientDeny() *Decision {
	return &Decision{Transient: true}
}

// Credential extracts the bearer token from the first identity source value.
func (r *Request) Credential() (Credential, error) {
	if len(r.IdentitySource) == 0 {
		return "", ErrMissingCredential
	}
	return ParseBearer(r.IdentitySource[0])
}

func New(introspector Introspector, rules Rules, logger *logrus.Entry) *Authorizer {
	return &Authorizer{introspector: introspector, rules: rules, logger: logger}
}

// Decide never returns a nil decision; every error comes with a denial.
func (a *Authorizer) Decide(ctx context.Context, request *Request) (*Decision, error) {
	credential, err := request.Credential()
	if err != nil {
		return Deny(), err
	}

	logger := a.logger.WithFields(logrus.Fields{"routeKey": request.RouteKey, "token": credential.Redacted(), "jwt": credential.IsJWT()})
	logger.Debug("introspecting token")

	response, err := a.introspector.Introspect(ctx, string(credential))
	if err != nil {
		return TransientDeny(), fmt.Errorf("%w: %w", ErrDecisionUnavailable, err)
	}

	if err = a.rules.Check(response); err != nil {
		logger.WithError(err).Info("token rejected")
		decision := Deny()
		decision.ExpiresAt = response.Expiry()
		return decision, err
	}

	logger.WithField("sub", response.Subject).Debug("token accepted")
	return &Decision{
		Allowed:     true,
		PrincipalID: response.Subject,
		Context:     response.AuthorizerContext(),
		ExpiresAt:   response.Expiry(),
	}, nil
}
