package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudentity/awshttpapiauthorizer/pkg/authorizer"
	"github.com/cloudentity/awshttpapiauthorizer/pkg/topology"
)

func TestFunctionDecider_Simple(t *testing.T) {
	var received events.APIGatewayV2CustomAuthorizerV2Request
	invoker := NewLocalInvoker().Register(topology.AuthorizerFunctionID, func(ctx context.Context, request events.APIGatewayV2CustomAuthorizerV2Request) (events.APIGatewayV2CustomAuthorizerSimpleResponse, error) {
		received = request
		if request.IdentitySource[0] != "Bearer valid" {
			return events.APIGatewayV2CustomAuthorizerSimpleResponse{}, nil
		}
		return events.APIGatewayV2CustomAuthorizerSimpleResponse{
			IsAuthorized: true,
			Context:      map[string]interface{}{"sub": "user-1"},
		}, nil
	})
	decider := NewFunctionDecider(invoker, topology.AuthorizerFunctionID, topology.ResponseSimple)

	decision, err := decider.Decide(context.Background(), &authorizer.Request{
		IdentitySource: []string{"Bearer valid"},
		RouteArn:       routeArn("GET", "/private"),
		RouteKey:       "GET /private",
		RawPath:        "/private",
	})
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, "user-1", decision.Context["sub"])
	assert.Equal(t, "2.0", received.Version)
	assert.Equal(t, "REQUEST", received.Type)
	assert.Equal(t, "GET /private", received.RouteKey)

	decision, err = decider.Decide(context.Background(), &authorizer.Request{IdentitySource: []string{"Bearer other"}})
	assert.Error(t, err)
	assert.False(t, decision.Allowed)
	assert.False(t, decision.Transient)
}

func TestFunctionDecider_IAM(t *testing.T) {
	policy := func(effect string) events.APIGatewayV2CustomAuthorizerIAMPolicyResponse {
		return events.APIGatewayV2CustomAuthorizerIAMPolicyResponse{
			PrincipalID: "user-1",
			PolicyDocument: events.APIGatewayCustomAuthorizerPolicy{
				Version: "2012-10-17",
				Statement: []events.IAMPolicyStatement{
					{Action: []string{"execute-api:Invoke"}, Effect: effect, Resource: []string{"*"}},
				},
			},
		}
	}

	invoker := NewLocalInvoker().
		Register("allow", func() (events.APIGatewayV2CustomAuthorizerIAMPolicyResponse, error) { return policy("Allow"), nil }).
		Register("deny", func() (events.APIGatewayV2CustomAuthorizerIAMPolicyResponse, error) { return policy("Deny"), nil })

	decision, err := NewFunctionDecider(invoker, "allow", topology.ResponseIAM).Decide(context.Background(), &authorizer.Request{})
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, "user-1", decision.PrincipalID)

	decision, err = NewFunctionDecider(invoker, "deny", topology.ResponseIAM).Decide(context.Background(), &authorizer.Request{})
	assert.Error(t, err)
	assert.False(t, decision.Allowed)
}

func TestFunctionDecider_FailsClosed(t *testing.T) {
	invoker := NewLocalInvoker().
		Register("broken", func() (string, error) { return "", errors.New("boom") }).
		Register("garbage", func() (string, error) { return "not a decision", nil }).
		Register("shapeless", func() (map[string]interface{}, error) { return map[string]interface{}{}, nil })

	var testCases = []struct {
		description  string
		function     string
		responseType topology.ResponseType
	}{
		{description: "function error", function: "broken", responseType: topology.ResponseSimple},
		{description: "unknown function", function: "missing", responseType: topology.ResponseSimple},
		{description: "response of the wrong type", function: "garbage", responseType: topology.ResponseSimple},
		{description: "simple response without isAuthorized", function: "shapeless", responseType: topology.ResponseSimple},
		{description: "iam response without policy", function: "shapeless", responseType: topology.ResponseIAM},
	}

	for _, testCase := range testCases {
		decision, err := NewFunctionDecider(invoker, testCase.function, testCase.responseType).Decide(context.Background(), &authorizer.Request{})
		assert.Error(t, err, testCase.description)
		assert.False(t, decision.Allowed, testCase.description)
		assert.True(t, decision.Transient, testCase.description)
	}
}

func TestPolicyAllows(t *testing.T) {
	var testCases = []struct {
		description string
		policy      string
		expect      bool
	}{
		{
			description: "allow invoke",
			policy:      `{"Version":"2012-10-17","Statement":[{"Action":["execute-api:Invoke"],"Effect":"Allow","Resource":["*"]}]}`,
			expect:      true,
		},
		{
			description: "explicit deny wins",
			policy:      `{"Statement":[{"Action":["execute-api:Invoke"],"Effect":"Allow","Resource":["*"]},{"Action":["*"],"Effect":"Deny","Resource":["*"]}]}`,
		},
		{
			description: "allow of another action",
			policy:      `{"Statement":[{"Action":["s3:GetObject"],"Effect":"Allow","Resource":["*"]}]}`,
		},
		{
			description: "no statements",
			policy:      `{"Statement":[]}`,
		},
	}

	for _, testCase := range testCases {
		policy := events.APIGatewayCustomAuthorizerPolicy{}
		require.NoError(t, json.Unmarshal([]byte(testCase.policy), &policy), testCase.description)
		assert.Equal(t, testCase.expect, policyAllows(&policy), testCase.description)
	}
}
