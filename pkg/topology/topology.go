package topology

import (
	"fmt"
	"time"
)

type TargetKind string

const (
	TargetURL      TargetKind = "url"
	TargetFunction TargetKind = "function"
)

type ResponseType string

const (
	ResponseSimple ResponseType = "simple"
	ResponseIAM    ResponseType = "iam"
)

type Architecture string

const (
	ArchitectureARM64  Architecture = "arm64"
	ArchitectureX86_64 Architecture = "x86_64"
)

// MethodAny matches every HTTP method not claimed by a method specific route.
const MethodAny = "ANY"

const (
	HeaderSourcePrefix      = "$request.header."
	QueryStringSourcePrefix = "$request.querystring."
)

type (
	Topology struct {
		Name        string                 `yaml:"name" validate:"required"`
		Functions   map[string]*Function   `yaml:"functions,omitempty" validate:"dive"`
		Authorizers map[string]*Authorizer `yaml:"authorizers,omitempty" validate:"dive"`
		Routes      []*Route               `yaml:"routes" validate:"required,min=1,dive"`
	}

	Route struct {
		Path       string   `yaml:"path" validate:"required,startswith=/"`
		Methods    []string `yaml:"methods" validate:"required,min=1,dive,oneof=GET POST PUT PATCH DELETE HEAD OPTIONS ANY"`
		Target     Target   `yaml:"target"`
		Authorizer string   `yaml:"authorizer,omitempty"`
	}

	// Target is either a URL or a function reference, never both.
	Target struct {
		Kind     TargetKind `yaml:"kind" validate:"oneof=url function"`
		URL      string     `yaml:"url,omitempty"`
		Function string     `yaml:"function,omitempty"`
	}

	Authorizer struct {
		ID              string        `yaml:"-"`
		Function        string        `yaml:"function" validate:"required"`
		IdentitySource  []string      `yaml:"identitySource" validate:"required,min=1"`
		ResponseType    ResponseType  `yaml:"responseType,omitempty" validate:"omitempty,oneof=simple iam"`
		ResultsCacheTTL time.Duration `yaml:"resultsCacheTTL,omitempty" validate:"min=0,max=1h"`
		CacheDenials    bool          `yaml:"cacheDenials,omitempty"`
	}

	Function struct {
		ID           string            `yaml:"-"`
		Runtime      string            `yaml:"runtime,omitempty"`
		Handler      string            `yaml:"handler,omitempty"`
		Architecture Architecture      `yaml:"architecture,omitempty" validate:"omitempty,oneof=arm64 x86_64"`
		Timeout      time.Duration     `yaml:"timeout,omitempty" validate:"omitempty,min=1s,max=15m"`
		MemorySize   int               `yaml:"memorySize,omitempty" validate:"omitempty,min=128,max=10240"`
		Environment  map[string]string `yaml:"environment,omitempty"`
		Code         Code              `yaml:"code,omitempty"`
	}

	Code struct {
		LocalPath string `yaml:"localPath,omitempty"`
		S3Key     string `yaml:"s3Key,omitempty"`
	}
)

func (r *Route) IsPrivate() bool {
	return r.Authorizer != ""
}

// Keys returns route keys in the "METHOD /path" form used by API Gateway.
func (r *Route) Keys() []string {
	keys := make([]string, 0, len(r.Methods))
	for _, method := range r.Methods {
		keys = append(keys, RouteKey(method, r.Path))
	}
	return keys
}

func RouteKey(method, path string) string {
	return fmt.Sprintf("%s %s", method, path)
}

func (a *Authorizer) EffectiveResponseType() ResponseType {
	if a.ResponseType == "" {
		return ResponseSimple
	}
	return a.ResponseType
}

func (t *Topology) Authorizer(id string) (*Authorizer, bool) {
	authorizer, ok := t.Authorizers[id]
	return authorizer, ok
}

func (t *Topology) Function(id string) (*Function, bool) {
	function, ok := t.Functions[id]
	return function, ok
}

// New validates the topology and assigns definition IDs from their map keys.
func New(t *Topology) (*Topology, error) {
	for id, function := range t.Functions {
		if function != nil {
			function.ID = id
		}
	}

	for id, authorizer := range t.Authorizers {
		if authorizer != nil {
			authorizer.ID = id
		}
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}

	return t, nil
}
