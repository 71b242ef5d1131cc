package httpapi

import (
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsec2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsiam"
	"github.com/aws/aws-cdk-go/awscdk/v2/awslambda"
	"github.com/aws/jsii-runtime-go"

	"github.com/cloudentity/awshttpapiauthorizer/pkg/config"
	"github.com/cloudentity/awshttpapiauthorizer/pkg/logging"
	"github.com/cloudentity/awshttpapiauthorizer/pkg/topology"
)

const defaultHandler = "bootstrap"

func authorizerEnvironment(props StackProps) map[string]string {
	return map[string]string{
		config.IssuerURLEnv:             props.IssuerURL,
		config.IntrospectionEndpointEnv: props.IntrospectionEndpoint,
		config.ApplicationKeyArnEnv:     props.ApplicationKeyArn,
		config.ClientIDEnv:              props.ClientID,
		config.RequiredScopesEnv:        config.FormatList(props.RequiredScopes),
		config.RequiredRolesEnv:         config.FormatList(props.RequiredRoles),
		config.ResponseTypeEnv:          props.ResponseType,
		config.CacheTTLEnv:              props.FunctionCacheTTL.String(),
		config.CacheDenialsEnv:          strconv.FormatBool(props.CacheDenials),
		logging.LevelEnv:                props.LoggingLevel,
		logging.ServiceNameEnv:          props.ServiceName,
	}
}

func serviceEnvironment(props StackProps) map[string]string {
	return map[string]string{
		logging.LevelEnv:       props.LoggingLevel,
		logging.ServiceNameEnv: "service",
	}
}

// createFunctions renders every function of the topology, keyed by function ID.
func createFunctions(stack awscdk.Stack, vpc awsec2.IVpc, t *topology.Topology, props StackProps) map[string]awslambda.Function {
	functions := make(map[string]awslambda.Function, len(t.Functions))
	for _, id := range sortedIDs(t.Functions) {
		functions[id] = createFunction(stack, vpc, t.Functions[id], props)
	}
	return functions
}

func createFunction(stack awscdk.Stack, vpc awsec2.IVpc, function *topology.Function, props StackProps) awslambda.Function {
	var (
		env     = map[string]*string{}
		timeout = function.Timeout
		memSize = function.MemorySize
		handler = function.Handler
		runtime = awslambda.Runtime_PROVIDED_AL2023()
	)

	for name, value := range function.Environment {
		env[name] = jsii.String(value)
	}
	if timeout == 0 {
		timeout = props.Timeout
	}
	if memSize == 0 {
		memSize = props.MemorySize
	}
	if handler == "" {
		handler = defaultHandler
	}
	if function.Runtime != "" {
		runtime = awslambda.NewRuntime(jsii.String(function.Runtime), awslambda.RuntimeFamily_OTHER, nil)
	}

	return awslambda.NewFunction(stack, jsii.String(constructID(function.ID)+"Lambda"), &awslambda.FunctionProps{
		Code:         getCode(stack, props, function.Code),
		Handler:      jsii.String(handler),
		Runtime:      runtime,
		Architecture: architecture(function.Architecture, props),
		MemorySize:   jsii.Number(memSize),
		Timeout:      awscdk.Duration_Seconds(jsii.Number(timeout.Seconds())),
		Environment:  &env,
		Vpc:          vpc,
	})
}

// grantApplicationKey lets an authorizer function read the SecureString parameter with its application key.
func grantApplicationKey(stack awscdk.Stack, functionID string, lambda awslambda.Function, props StackProps) {
	statements := []awsiam.PolicyStatement{
		awsiam.NewPolicyStatement(&awsiam.PolicyStatementProps{
			Actions: &[]*string{
				jsii.String("ssm:GetParameter"),
			},
			Resources: &[]*string{
				parameterArn(stack, props.ApplicationKeyArn),
			},
		}),
	}

	lambda.Role().AttachInlinePolicy(awsiam.NewPolicy(stack, jsii.String(constructID(functionID)+"LambdaPolicy"), &awsiam.PolicyProps{
		Statements: &statements,
	}))
}

func parameterArn(stack awscdk.Stack, parameter string) *string {
	if strings.HasPrefix(parameter, "arn:") {
		return jsii.String(parameter)
	}
	return stack.FormatArn(&awscdk.ArnComponents{
		Service:      jsii.String("ssm"),
		Resource:     jsii.String("parameter"),
		ResourceName: jsii.String(strings.TrimPrefix(parameter, "/")),
	})
}

func architecture(value topology.Architecture, props StackProps) awslambda.Architecture {
	if value == "" {
		value = topology.Architecture(props.Architecture)
	}
	if value == topology.ArchitectureX86_64 {
		return awslambda.Architecture_X86_64()
	}
	return awslambda.Architecture_ARM_64()
}

// constructID turns IDs such as "order-service" into "OrderService".
func constructID(id string) string {
	var builder strings.Builder
	upper := true
	for _, r := range id {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		builder.WriteRune(r)
	}
	return builder.String()
}

func sortedIDs[T any](m map[string]T) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
