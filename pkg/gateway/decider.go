package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"github.com/cloudentity/awshttpapiauthorizer/pkg/authorizer"
	"github.com/cloudentity/awshttpapiauthorizer/pkg/topology"
)

type (
	// FunctionDecider asks an authorizer function for the decision.
	FunctionDecider struct {
		invoker      FunctionInvoker
		function     string
		responseType topology.ResponseType
	}

	authorizerOutput struct {
		IsAuthorized   *bool                                   `json:"isAuthorized"`
		PrincipalID    string                                  `json:"principalId"`
		PolicyDocument *events.APIGatewayCustomAuthorizerPolicy `json:"policyDocument"`
		Context        map[string]interface{}                  `json:"context"`
	}
)

func NewFunctionDecider(invoker FunctionInvoker, function string, responseType topology.ResponseType) *FunctionDecider {
	return &FunctionDecider{invoker: invoker, function: function, responseType: responseType}
}

func (d *FunctionDecider) Decide(ctx context.Context, request *authorizer.Request) (*authorizer.Decision, error) {
	payload, err := json.Marshal(events.APIGatewayV2CustomAuthorizerV2Request{
		Version:               payloadVersion,
		Type:                  "REQUEST",
		RouteArn:              request.RouteArn,
		IdentitySource:        request.IdentitySource,
		RouteKey:              request.RouteKey,
		RawPath:               request.RawPath,
		Headers:               request.Headers,
		QueryStringParameters: request.QueryStringParameters,
	})
	if err != nil {
		return authorizer.TransientDeny(), err
	}

	output, err := d.invoker.Invoke(ctx, d.function, payload)
	if err != nil {
		return authorizer.TransientDeny(), fmt.Errorf("%w: %w", authorizer.ErrDecisionUnavailable, err)
	}

	result := authorizerOutput{}
	if err = json.Unmarshal(output, &result); err != nil {
		return authorizer.TransientDeny(), fmt.Errorf("%w: invalid authorizer response: %w", authorizer.ErrDecisionUnavailable, err)
	}

	allowed, err := result.allowed(d.responseType)
	if err != nil {
		return authorizer.TransientDeny(), err
	}

	if !allowed {
		return authorizer.Deny(), fmt.Errorf("authorizer %v denied the request", d.function)
	}

	return &authorizer.Decision{Allowed: true, PrincipalID: result.PrincipalID, Context: result.Context}, nil
}

func (o *authorizerOutput) allowed(responseType topology.ResponseType) (bool, error) {
	if responseType == topology.ResponseIAM {
		if o.PolicyDocument == nil {
			return false, fmt.Errorf("%w: authorizer response has no policy document", authorizer.ErrDecisionUnavailable)
		}
		return policyAllows(o.PolicyDocument), nil
	}

	if o.IsAuthorized == nil {
		return false, fmt.Errorf("%w: authorizer response has no isAuthorized", authorizer.ErrDecisionUnavailable)
	}
	return *o.IsAuthorized, nil
}

// policyAllows requires an Allow for execute-api:Invoke and no Deny at all.
func policyAllows(policy *events.APIGatewayCustomAuthorizerPolicy) bool {
	allowed := false
	for _, statement := range policy.Statement {
		switch {
		case strings.EqualFold(statement.Effect, "Deny"):
			return false
		case strings.EqualFold(statement.Effect, "Allow") && invokes(statement.Action):
			allowed = true
		}
	}
	return allowed
}

func invokes(actions []string) bool {
	for _, action := range actions {
		if action == "execute-api:Invoke" || action == "execute-api:*" || action == "*" {
			return true
		}
	}
	return false
}
