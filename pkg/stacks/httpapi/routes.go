package httpapi

import (
	"fmt"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsapigatewayv2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsapigatewayv2authorizers"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsapigatewayv2integrations"
	"github.com/aws/aws-cdk-go/awscdk/v2/awslambda"
	"github.com/aws/jsii-runtime-go"

	"github.com/cloudentity/awshttpapiauthorizer/pkg/topology"
)

func createAPI(stack awscdk.Stack, props StackProps) awsapigatewayv2.HttpApi {
	return awsapigatewayv2.NewHttpApi(stack, jsii.String("HttpApi"), &awsapigatewayv2.HttpApiProps{
		ApiName:     jsii.String(props.ApiName),
		Description: jsii.String("HTTP API with public and token protected routes"),
	})
}

func createAuthorizers(t *topology.Topology, functions map[string]awslambda.Function) map[string]awsapigatewayv2.IHttpRouteAuthorizer {
	authorizers := make(map[string]awsapigatewayv2.IHttpRouteAuthorizer, len(t.Authorizers))
	for _, id := range sortedIDs(t.Authorizers) {
		definition := t.Authorizers[id]
		authorizers[id] = awsapigatewayv2authorizers.NewHttpLambdaAuthorizer(jsii.String(constructID(id)+"Authorizer"), functions[definition.Function], &awsapigatewayv2authorizers.HttpLambdaAuthorizerProps{
			AuthorizerName:  jsii.String(constructID(id)),
			IdentitySource:  jsii.Strings(definition.IdentitySource...),
			ResponseTypes:   &[]awsapigatewayv2authorizers.HttpLambdaResponseType{responseType(definition.EffectiveResponseType())},
			ResultsCacheTtl: awscdk.Duration_Seconds(jsii.Number(definition.ResultsCacheTTL.Seconds())),
		})
	}
	return authorizers
}

// addRoutes binds every route to its integration, integrations are shared between routes with the same target.
func addRoutes(api awsapigatewayv2.HttpApi, t *topology.Topology, functions map[string]awslambda.Function, authorizers map[string]awsapigatewayv2.IHttpRouteAuthorizer) error {
	integrations := map[topology.Target]awsapigatewayv2.HttpRouteIntegration{}

	for _, route := range t.Routes {
		integration, ok := integrations[route.Target]
		if !ok {
			integration = createIntegration(len(integrations), route.Target, functions)
			if integration == nil {
				return fmt.Errorf("route %v: unsupported target %v", route.Path, route.Target.Kind)
			}
			integrations[route.Target] = integration
		}

		methods := make([]awsapigatewayv2.HttpMethod, 0, len(route.Methods))
		for _, method := range route.Methods {
			methods = append(methods, awsapigatewayv2.HttpMethod(method))
		}

		options := &awsapigatewayv2.AddRoutesOptions{
			Path:        jsii.String(route.Path),
			Methods:     &methods,
			Integration: integration,
		}
		if route.IsPrivate() {
			options.Authorizer = authorizers[route.Authorizer]
		}
		api.AddRoutes(options)
	}
	return nil
}

func createIntegration(index int, target topology.Target, functions map[string]awslambda.Function) awsapigatewayv2.HttpRouteIntegration {
	switch target.Kind {
	case topology.TargetURL:
		return awsapigatewayv2integrations.NewHttpUrlIntegration(jsii.String(fmt.Sprintf("UrlIntegration%d", index)), jsii.String(target.URL), &awsapigatewayv2integrations.HttpUrlIntegrationProps{})
	case topology.TargetFunction:
		return awsapigatewayv2integrations.NewHttpLambdaIntegration(jsii.String(constructID(target.Function)+"Integration"), functions[target.Function], &awsapigatewayv2integrations.HttpLambdaIntegrationProps{})
	}
	return nil
}

func responseType(value topology.ResponseType) awsapigatewayv2authorizers.HttpLambdaResponseType {
	if value == topology.ResponseIAM {
		return awsapigatewayv2authorizers.HttpLambdaResponseType_IAM
	}
	return awsapigatewayv2authorizers.HttpLambdaResponseType_SIMPLE
}
