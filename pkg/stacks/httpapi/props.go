package httpapi

import (
	"fmt"
	"time"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/go-playground/validator/v10"

	"github.com/cloudentity/awshttpapiauthorizer/pkg/topology"
)

type StackProps struct {
	awscdk.StackProps
	// ApiName is the name of the HTTP API
	ApiName string
	// AuthorizerZip is a path to zip file or directory with the authorizer lambda function
	AuthorizerZip string
	// ServiceZip is a path to zip file or directory with the service lambda function
	ServiceZip string
	// WithService adds the /public/{proxy+} and /private/{proxy+} routes served by the service lambda function
	WithService bool
	// IssuerURL is the issuer url of the identity provider
	IssuerURL string `validate:"required,url"`
	// IntrospectionEndpoint is the token introspection endpoint of the identity provider
	IntrospectionEndpoint string `validate:"required,url"`
	// ApplicationKeyArn is a name or ARN of the SSM parameter with the application key
	ApplicationKeyArn string `validate:"required"`
	// ClientID, when set, has to be the token client id or one of its audiences
	ClientID string
	// RequiredScopes are scopes every authorized token must have
	RequiredScopes []string
	// RequiredRoles are project roles every authorized token must have
	RequiredRoles []string
	// BackendURL is the target of the /public and /private routes
	BackendURL string `validate:"omitempty,url"`
	// ResponseType is the authorizer response format
	ResponseType string `validate:"omitempty,oneof=simple iam"`
	// IdentitySource lists the request values the authorizer needs
	IdentitySource []string
	// ResultsCacheTTL is how long API Gateway caches authorizer results, 0 disables caching
	ResultsCacheTTL time.Duration `validate:"min=0,max=1h"`
	// FunctionCacheTTL is how long the authorizer function caches decisions itself, 0 disables caching
	FunctionCacheTTL time.Duration `validate:"min=0,max=1h"`
	// CacheDenials makes the authorizer function cache denials as well
	CacheDenials bool
	// VpcID is an id of VPC the lambda functions run in, none when empty
	VpcID string
	// Version is a version of lambda functions
	Version string `validate:"omitempty,semver"`
	// LoggingLevel is a logging level of lambda functions
	LoggingLevel string `validate:"omitempty,oneof=debug info warn error"`
	// ServiceName is reported by the authorizer logs
	ServiceName string
	// Timeout is the authorizer lambda function timeout
	Timeout time.Duration `validate:"omitempty,min=1s,max=15m"`
	// MemorySize is the memory of lambda functions in MB
	MemorySize int `validate:"omitempty,min=128,max=10240"`
	// Architecture is the instruction set of lambda functions
	Architecture string `validate:"omitempty,oneof=arm64 x86_64"`
	// WarmInterval schedules keep-warm invocations of the authorizer, 0 disables them.
	// It is either whole minutes or a number of seconds dividing a minute.
	WarmInterval time.Duration `validate:"omitempty,min=1s"`
	// S3BucketName is a name of S3 bucket, the region is appended
	S3BucketName string
	// S3AuthorizerPrefix is the file name prefix for authorizer lambda
	S3AuthorizerPrefix string
	// S3ServicePrefix is the file name prefix for service lambda
	S3ServicePrefix string
	// Topology replaces the standard route layout when set
	Topology *topology.Topology
}

var DefaultStackProps = StackProps{
	ApiName:            "IntrospectionHttpApi",
	ResponseType:       string(topology.ResponseSimple),
	ResultsCacheTTL:    5 * time.Minute,
	CacheDenials:       true,
	LoggingLevel:       "info",
	ServiceName:        "introspection-authorizer",
	Timeout:            15 * time.Second,
	MemorySize:         128,
	Architecture:       string(topology.ArchitectureARM64),
	S3BucketName:       "cloudentity-aws-http-api-authorizer",
	S3AuthorizerPrefix: "http-api-authorizer-",
	S3ServicePrefix:    "http-api-service-",
}

func setDefaultStackProps(props *StackProps) {
	if props.ApiName == "" {
		props.ApiName = DefaultStackProps.ApiName
	}
	if props.ResponseType == "" {
		props.ResponseType = DefaultStackProps.ResponseType
	}
	if props.LoggingLevel == "" {
		props.LoggingLevel = DefaultStackProps.LoggingLevel
	}
	if props.ServiceName == "" {
		props.ServiceName = DefaultStackProps.ServiceName
	}
	if props.Timeout == 0 {
		props.Timeout = DefaultStackProps.Timeout
	}
	if props.MemorySize == 0 {
		props.MemorySize = DefaultStackProps.MemorySize
	}
	if props.Architecture == "" {
		props.Architecture = DefaultStackProps.Architecture
	}
	if props.S3BucketName == "" {
		props.S3BucketName = DefaultStackProps.S3BucketName
	}
	if props.S3AuthorizerPrefix == "" {
		props.S3AuthorizerPrefix = DefaultStackProps.S3AuthorizerPrefix
	}
	if props.S3ServicePrefix == "" {
		props.S3ServicePrefix = DefaultStackProps.S3ServicePrefix
	}
}

func validateStackProps(props StackProps) error {
	validate := validator.New()
	if err := validate.Struct(props); err != nil {
		return err
	}
	return validateWarmInterval(props.WarmInterval)
}

// validateWarmInterval accepts whole minutes for the EventBridge rate, or whole seconds dividing a minute for the SQS fan-out.
func validateWarmInterval(interval time.Duration) error {
	switch {
	case interval == 0:
		return nil
	case interval >= time.Minute && interval%time.Minute != 0:
		return fmt.Errorf("warm interval %v is not a whole number of minutes", interval)
	case interval < time.Minute && (interval%time.Second != 0 || time.Minute%interval != 0):
		return fmt.Errorf("warm interval %v does not split a minute into whole seconds", interval)
	}
	return nil
}
