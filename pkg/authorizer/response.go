package authorizer

import (
	"github.com/aws/aws-lambda-go/events"

	"github.com/cloudentity/awshttpapiauthorizer/pkg/topology"
)

const (
	policyVersion      = "2012-10-17"
	invokeAction       = "execute-api:Invoke"
	anonymousPrincipal = "anonymous"
)

func (d *Decision) SimpleResponse() events.APIGatewayV2CustomAuthorizerSimpleResponse {
	response := events.APIGatewayV2CustomAuthorizerSimpleResponse{IsAuthorized: d.Allowed}
	if d.Allowed {
		response.Context = d.Context
	}
	return response
}

func (d *Decision) IAMResponse(routeArn string) events.APIGatewayV2CustomAuthorizerIAMPolicyResponse {
	effect := "Deny"
	principalID := anonymousPrincipal
	var context map[string]interface{}
	if d.Allowed {
		effect = "Allow"
		context = d.Context
		if d.PrincipalID != "" {
			principalID = d.PrincipalID
		}
	}

	return events.APIGatewayV2CustomAuthorizerIAMPolicyResponse{
		PrincipalID: principalID,
		PolicyDocument: events.APIGatewayCustomAuthorizerPolicy{
			Version: policyVersion,
			Statement: []events.IAMPolicyStatement{
				{
					Action:   []string{invokeAction},
					Effect:   effect,
					Resource: []string{routeArn},
				},
			},
		},
		Context: context,
	}
}

// Response renders the decision in the shape the authorizer was configured with.
func (d *Decision) Response(responseType topology.ResponseType, routeArn string) interface{} {
	if responseType == topology.ResponseIAM {
		return d.IAMResponse(routeArn)
	}
	return d.SimpleResponse()
}
