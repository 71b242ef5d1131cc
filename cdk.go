package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/jsii-runtime-go"

	"github.com/cloudentity/awshttpapiauthorizer/pkg/stacks/demo"
	"github.com/cloudentity/awshttpapiauthorizer/pkg/stacks/httpapi"
	"github.com/cloudentity/awshttpapiauthorizer/pkg/topology"
)

func main() {
	defer jsii.Close()

	app := awscdk.NewApp(nil)
	props := httpapi.StackProps{
		StackProps: awscdk.StackProps{
			Env: env(),
		},
	}

	if err := readStackProps(app, &props); err != nil {
		fmt.Printf("could not read context values %s", err)
		return
	}

	stack, err := httpapi.NewStack(app, "IntrospectionHttpApi", props)
	if err != nil {
		fmt.Printf("could not create stack %s", err)
		return
	}

	if readCtxParam[bool](app, "demo") {
		if err = createDemoStack(app, stack, props.BackendURL); err != nil {
			fmt.Printf("could not create demo stack %s", err)
			return
		}
	}

	app.Synth(nil)
}

func createDemoStack(app awscdk.App, stack httpapi.Stack, backendURL string) error {
	if stack.AuthorizerLambda == nil {
		return errors.New("the api has no authorizer function to reuse")
	}
	_, err := demo.NewStack(app, "IntrospectionHttpApiDemo", *stack.AuthorizerLambda.FunctionArn(), backendURL, awscdk.StackProps{Env: env()})
	return err
}

func readStackProps(app awscdk.App, props *httpapi.StackProps) error {
	var err error
	props.ApiName = readCtxParam[string](app, "apiName")
	props.AuthorizerZip = readCtxParam[string](app, "authorizerZip")
	props.ServiceZip = readCtxParam[string](app, "serviceZip")
	props.WithService = readBoolParam(app, "withService", false)
	props.IssuerURL = readCtxParam[string](app, "issuerURL")
	props.IntrospectionEndpoint = readCtxParam[string](app, "introspectionEndpoint")
	props.ApplicationKeyArn = readCtxParam[string](app, "applicationKeyArn")
	if props.ApplicationKeyArn == "" {
		// read parameter name from env var
		props.ApplicationKeyArn = getEnvFromVars("APPLICATION_KEY_ARN")
	}
	props.ClientID = readCtxParam[string](app, "clientID")
	props.RequiredScopes = readListParam(app, "requiredScopes")
	props.RequiredRoles = readListParam(app, "requiredRoles")
	props.BackendURL = readCtxParam[string](app, "backendURL")
	props.ResponseType = readCtxParam[string](app, "responseType")
	props.IdentitySource = readListParam(app, "identitySource")
	props.CacheDenials = readBoolParam(app, "cacheDenials", httpapi.DefaultStackProps.CacheDenials)
	props.VpcID = readCtxParam[string](app, "vpcID")
	props.Version = readCtxParam[string](app, "version")
	props.LoggingLevel = readCtxParam[string](app, "loggingLevel")
	props.ServiceName = readCtxParam[string](app, "serviceName")
	props.Architecture = readCtxParam[string](app, "architecture")
	props.S3BucketName = readCtxParam[string](app, "s3BucketName")

	props.ResultsCacheTTL = httpapi.DefaultStackProps.ResultsCacheTTL
	durations := map[string]*time.Duration{
		"cacheTTL":         &props.ResultsCacheTTL,
		"functionCacheTTL": &props.FunctionCacheTTL,
		"timeout":          &props.Timeout,
		"warmInterval":     &props.WarmInterval,
	}
	for key, target := range durations {
		value := readCtxParam[string](app, key)
		if value == "" {
			continue
		}
		if *target, err = time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s duration %w", key, err)
		}
	}

	if memorySize := readCtxParam[string](app, "memorySize"); memorySize != "" {
		if props.MemorySize, err = strconv.Atoi(memorySize); err != nil {
			return fmt.Errorf("invalid memorySize %w", err)
		}
	}

	if location := readCtxParam[string](app, "topology"); location != "" {
		if props.Topology, err = topology.Load(context.Background(), location); err != nil {
			return err
		}
	}

	if stackName := readCtxParam[string](app, "stackName"); stackName != "" {
		props.StackName = jsii.String(stackName)
	}
	return nil
}

func readCtxParam[T any](app awscdk.App, key string) T {
	var t T
	val, ok := app.Node().TryGetContext(jsii.String(key)).(T)
	if !ok {
		return t
	}
	return val
}

// readBoolParam accepts booleans from cdk.json and "true"/"false" strings from the command line.
func readBoolParam(app awscdk.App, key string, defaultValue bool) bool {
	switch value := app.Node().TryGetContext(jsii.String(key)).(type) {
	case bool:
		return value
	case string:
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func readListParam(app awscdk.App, key string) []string {
	switch value := app.Node().TryGetContext(jsii.String(key)).(type) {
	case []interface{}:
		list := make([]string, 0, len(value))
		for _, item := range value {
			if text, ok := item.(string); ok {
				list = append(list, text)
			}
		}
		return list
	case string:
		var list []string
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				list = append(list, item)
			}
		}
		return list
	}
	return nil
}

func env() *awscdk.Environment {
	return &awscdk.Environment{
		Account: jsii.String(getEnvFromVars("CDK_DEPLOY_ACCOUNT", "CDK_DEFAULT_ACCOUNT")),
		Region:  jsii.String(getEnvFromVars("CDK_DEPLOY_REGION", "CDK_DEFAULT_REGION")),
	}
}

func getEnvFromVars(vars ...string) string {
	for _, v := range vars {
		if value := os.Getenv(v); value != "" {
			return value
		}
	}
	return ""
}
