package service

import (
	"context"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
)

const ProjectRolesKey = "project_roles"

// IsAuthenticated rejects events that did not pass through an authorizer.
func IsAuthenticated() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, event *events.APIGatewayV2HTTPRequest) events.APIGatewayV2HTTPResponse {
			if len(authorizerContext(event)) == 0 {
				return Text(http.StatusUnauthorized, "Unauthorized")
			}
			return next(ctx, event)
		}
	}
}

// RequireAnyProjectRole passes events whose caller holds at least one of roles.
func RequireAnyProjectRole(roles ...string) Middleware {
	allowed := make(map[string]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}

	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, event *events.APIGatewayV2HTTPRequest) events.APIGatewayV2HTTPResponse {
			for _, role := range ProjectRoles(event) {
				if allowed[role] {
					return next(ctx, event)
				}
			}
			return Text(http.StatusForbidden, "Forbidden")
		}
	}
}

func ProjectRoles(event *events.APIGatewayV2HTTPRequest) []string {
	switch roles := authorizerContext(event)[ProjectRolesKey].(type) {
	case []string:
		return roles
	case []interface{}:
		result := make([]string, 0, len(roles))
		for _, role := range roles {
			if name, ok := role.(string); ok {
				result = append(result, name)
			}
		}
		return result
	}
	return nil
}

func authorizerContext(event *events.APIGatewayV2HTTPRequest) map[string]interface{} {
	if event.RequestContext.Authorizer == nil {
		return nil
	}
	return event.RequestContext.Authorizer.Lambda
}
