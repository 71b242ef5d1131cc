package demo

import (
	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsapigatewayv2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsapigatewayv2authorizers"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsapigatewayv2integrations"
	"github.com/aws/aws-cdk-go/awscdk/v2/awslambda"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"

	"github.com/cloudentity/awshttpapiauthorizer/pkg/topology"
)

// NewStack creates a sample API protected by an authorizer lambda deployed elsewhere.
func NewStack(scope constructs.Construct, id string, authorizerLambdaArn string, backendURL string, props awscdk.StackProps) (awscdk.Stack, error) {
	stack := awscdk.NewStack(scope, &id, &props)

	if backendURL == "" {
		backendURL = topology.DefaultBackendURL
	}
	createAPI(stack, authorizerLambdaArn, backendURL)
	return stack, nil
}

func createAPI(stack awscdk.Stack, authorizerLambdaArn string, backendURL string) {
	api := awsapigatewayv2.NewHttpApi(stack, jsii.String("SampleAPI"), &awsapigatewayv2.HttpApiProps{
		ApiName:     jsii.String("SampleAPI"),
		Description: jsii.String("Sample API"),
	})

	authorizer := awsapigatewayv2authorizers.NewHttpLambdaAuthorizer(jsii.String("SampleAuthorizer"),
		awslambda.Function_FromFunctionArn(stack, jsii.String("SampleAuthorizerHandler"), jsii.String(authorizerLambdaArn)),
		&awsapigatewayv2authorizers.HttpLambdaAuthorizerProps{
			AuthorizerName: jsii.String("IntrospectionAuthorizer"),
			IdentitySource: &[]*string{
				jsii.String(topology.DefaultIdentitySource),
			},
			ResponseTypes:   &[]awsapigatewayv2authorizers.HttpLambdaResponseType{awsapigatewayv2authorizers.HttpLambdaResponseType_SIMPLE},
			ResultsCacheTtl: awscdk.Duration_Minutes(jsii.Number(5)),
		})

	api.AddRoutes(&awsapigatewayv2.AddRoutesOptions{
		Path:        jsii.String(topology.PrivatePath),
		Methods:     &[]awsapigatewayv2.HttpMethod{awsapigatewayv2.HttpMethod_GET},
		Integration: awsapigatewayv2integrations.NewHttpUrlIntegration(jsii.String("SampleBackend"), jsii.String(backendURL), &awsapigatewayv2integrations.HttpUrlIntegrationProps{}),
		Authorizer:  authorizer,
	})

	awscdk.NewCfnOutput(stack, jsii.String("SampleApiUrl"), &awscdk.CfnOutputProps{
		Value: api.Url(),
	})
}
