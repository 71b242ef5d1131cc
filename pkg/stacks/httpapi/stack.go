package httpapi

import (
	"fmt"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsapigatewayv2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsec2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awslambda"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"

	"github.com/cloudentity/awshttpapiauthorizer/pkg/topology"
)

const ApiUrlOutput = "ApiUrl"

type Stack struct {
	Stack awscdk.Stack
	API   awsapigatewayv2.HttpApi
	// AuthorizerLambda backs the first authorizer by ID, nil when every route is public
	AuthorizerLambda awslambda.Function
	// ServiceLambda is nil unless the service routes are enabled
	ServiceLambda awslambda.Function
	Functions     map[string]awslambda.Function
}

func NewStack(scope constructs.Construct, id string, props StackProps) (Stack, error) {
	var (
		err       error
		sprops    awscdk.StackProps
		stack     awscdk.Stack
		vpc       awsec2.IVpc
		aTopology *topology.Topology
		functions map[string]awslambda.Function
		api       awsapigatewayv2.HttpApi
	)
	setDefaultStackProps(&props)
	sprops = props.StackProps

	if err = validateStackProps(props); err != nil {
		return Stack{}, fmt.Errorf("invalid stack props %w", err)
	}

	if aTopology, err = stackTopology(props); err != nil {
		return Stack{}, fmt.Errorf("invalid stack topology %w", err)
	}
	stack = awscdk.NewStack(scope, &id, &sprops)

	vpc = getVpc(stack, props.VpcID)
	functions = createFunctions(stack, vpc, aTopology, props)
	authorizerIDs := authorizerFunctionIDs(aTopology)
	for _, functionID := range authorizerIDs {
		grantApplicationKey(stack, functionID, functions[functionID], props)
	}
	var authorizerLambda awslambda.Function
	if len(authorizerIDs) > 0 {
		authorizerLambda = functions[authorizerIDs[0]]
		keepWarm(stack, authorizerLambda, props)
	}

	api = createAPI(stack, props)
	if err = addRoutes(api, aTopology, functions, createAuthorizers(aTopology, functions)); err != nil {
		return Stack{}, err
	}

	awscdk.NewCfnOutput(stack, jsii.String(ApiUrlOutput), &awscdk.CfnOutputProps{
		Value:       api.Url(),
		Description: jsii.String("HTTP API invocation base URL"),
	})

	return Stack{
		Stack:            stack,
		API:              api,
		AuthorizerLambda: authorizerLambda,
		ServiceLambda:    functions[topology.ServiceFunctionID],
		Functions:        functions,
	}, nil
}

// stackTopology is the standard public/private layout unless props carry a topology of their own.
func stackTopology(props StackProps) (*topology.Topology, error) {
	if props.Topology != nil {
		return topology.New(props.Topology)
	}

	options := topology.StandardOptions{
		Name:       props.ApiName,
		BackendURL: props.BackendURL,
		Authorizer: &topology.Function{
			Environment: authorizerEnvironment(props),
			Code:        functionCode(props.AuthorizerZip, props.S3AuthorizerPrefix, props),
		},
		ResponseType:    topology.ResponseType(props.ResponseType),
		ResultsCacheTTL: props.ResultsCacheTTL,
		IdentitySource:  props.IdentitySource,
	}
	if props.WithService {
		options.Service = &topology.Function{
			Environment: serviceEnvironment(props),
			Code:        functionCode(props.ServiceZip, props.S3ServicePrefix, props),
		}
	}
	return topology.Standard(options)
}

// authorizerFunctionIDs lists the functions backing authorizers, ordered by authorizer ID.
func authorizerFunctionIDs(t *topology.Topology) []string {
	var (
		ids  []string
		seen = map[string]bool{}
	)
	for _, id := range sortedIDs(t.Authorizers) {
		functionID := t.Authorizers[id].Function
		if !seen[functionID] {
			seen[functionID] = true
			ids = append(ids, functionID)
		}
	}
	return ids
}

func getVpc(stack awscdk.Stack, vpcID string) awsec2.IVpc {
	if vpcID == "" {
		return nil
	}
	return awsec2.Vpc_FromLookup(stack, jsii.String("VPC"), &awsec2.VpcLookupOptions{
		VpcId: jsii.String(vpcID),
	})
}
