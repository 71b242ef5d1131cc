package topology

import (
	"net/http"
	"time"
)

const (
	AuthorizerFunctionID = "authorizer"
	ServiceFunctionID    = "service"
	IntrospectionID      = "introspection"

	PublicPath  = "/public"
	PrivatePath = "/private"

	DefaultBackendURL     = "https://httpbin.org/anything"
	DefaultIdentitySource = HeaderSourcePrefix + "Authorization"
)

type StandardOptions struct {
	Name string
	// BackendURL is the target of the plain /public and /private routes.
	BackendURL string
	// Authorizer is the function running the introspection authorizer.
	Authorizer *Function
	// Service enables the {proxy+} routes handled by the service function.
	Service         *Function
	ResponseType    ResponseType
	ResultsCacheTTL time.Duration
	CacheDenials    bool
	IdentitySource  []string
}

// Standard builds the public/private route layout backed by a URL and, optionally, a service function.
func Standard(options StandardOptions) (*Topology, error) {
	if options.Name == "" {
		options.Name = "http-api"
	}

	if options.BackendURL == "" {
		options.BackendURL = DefaultBackendURL
	}

	if len(options.IdentitySource) == 0 {
		options.IdentitySource = []string{DefaultIdentitySource}
	}

	authorizerFunction := options.Authorizer
	if authorizerFunction == nil {
		authorizerFunction = &Function{}
	}

	t := &Topology{
		Name:      options.Name,
		Functions: map[string]*Function{AuthorizerFunctionID: authorizerFunction},
		Authorizers: map[string]*Authorizer{
			IntrospectionID: {
				Function:        AuthorizerFunctionID,
				IdentitySource:  options.IdentitySource,
				ResponseType:    options.ResponseType,
				ResultsCacheTTL: options.ResultsCacheTTL,
				CacheDenials:    options.CacheDenials,
			},
		},
		Routes: []*Route{
			{
				Path:    PublicPath,
				Methods: []string{http.MethodGet},
				Target:  Target{Kind: TargetURL, URL: options.BackendURL},
			},
			{
				Path:       PrivatePath,
				Methods:    []string{http.MethodGet},
				Target:     Target{Kind: TargetURL, URL: options.BackendURL},
				Authorizer: IntrospectionID,
			},
		},
	}

	if options.Service != nil {
		t.Functions[ServiceFunctionID] = options.Service
		t.Routes = append(t.Routes,
			&Route{
				Path:    PublicPath + "/{proxy+}",
				Methods: []string{http.MethodGet},
				Target:  Target{Kind: TargetFunction, Function: ServiceFunctionID},
			},
			&Route{
				Path:       PrivatePath + "/{proxy+}",
				Methods:    []string{http.MethodGet},
				Target:     Target{Kind: TargetFunction, Function: ServiceFunctionID},
				Authorizer: IntrospectionID,
			},
		)
	}

	return New(t)
}
