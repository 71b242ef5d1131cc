package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/cloudentity/awshttpapiauthorizer/pkg/topology"
)

const (
	IssuerURLEnv             = "ISSUER_URL"
	IntrospectionEndpointEnv = "INTROSPECTION_ENDPOINT"
	ApplicationKeyArnEnv     = "APPLICATION_KEY_ARN"
	ClientIDEnv              = "CLIENT_ID"
	RequiredScopesEnv        = "REQUIRED_SCOPES"
	RequiredRolesEnv         = "REQUIRED_ROLES"
	ResponseTypeEnv          = "RESPONSE_TYPE"
	CacheTTLEnv              = "CACHE_TTL"
	CacheDenialsEnv          = "CACHE_DENIALS"
)

type Lookup func(key string) (string, bool)

type IntrospectorSettings struct {
	IssuerURL             string `validate:"required,url"`
	IntrospectionEndpoint string `validate:"required,url"`
	// ApplicationKeyArn is the name or ARN of the SSM parameter holding the application key
	ApplicationKeyArn string `validate:"required"`
}

type AuthorizerSettings struct {
	ClientID       string
	RequiredScopes []string
	RequiredRoles  []string
	ResponseType   topology.ResponseType `validate:"oneof=simple iam"`
	// CacheTTL enables the in-function decision cache, 0 disables it
	CacheTTL     time.Duration `validate:"min=0,max=1h"`
	CacheDenials bool
}

var DefaultAuthorizerSettings = AuthorizerSettings{
	ResponseType: topology.ResponseSimple,
	CacheDenials: true,
}

func LoadIntrospectorSettings(lookup Lookup) (IntrospectorSettings, error) {
	settings := IntrospectorSettings{
		IssuerURL:             getEnvFromVars(lookup, IssuerURLEnv),
		IntrospectionEndpoint: getEnvFromVars(lookup, IntrospectionEndpointEnv),
		ApplicationKeyArn:     getEnvFromVars(lookup, ApplicationKeyArnEnv),
	}

	if err := validator.New().Struct(settings); err != nil {
		return settings, fmt.Errorf("invalid introspector settings %w", err)
	}

	return settings, nil
}

func LoadAuthorizerSettings(lookup Lookup) (AuthorizerSettings, error) {
	var (
		settings = DefaultAuthorizerSettings
		err      error
		errs     []error
	)

	settings.ClientID = getEnvFromVars(lookup, ClientIDEnv)

	if settings.RequiredScopes, err = parseList(getEnvFromVars(lookup, RequiredScopesEnv)); err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", RequiredScopesEnv, err))
	}

	if settings.RequiredRoles, err = parseList(getEnvFromVars(lookup, RequiredRolesEnv)); err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", RequiredRolesEnv, err))
	}

	if value := getEnvFromVars(lookup, ResponseTypeEnv); value != "" {
		settings.ResponseType = topology.ResponseType(strings.ToLower(value))
	}

	if value := getEnvFromVars(lookup, CacheTTLEnv); value != "" {
		if settings.CacheTTL, err = time.ParseDuration(value); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", CacheTTLEnv, err))
		}
	}

	if value := getEnvFromVars(lookup, CacheDenialsEnv); value != "" {
		if settings.CacheDenials, err = strconv.ParseBool(value); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", CacheDenialsEnv, err))
		}
	}

	if err = validator.New().Struct(settings); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return settings, fmt.Errorf("invalid authorizer settings %w", errors.Join(errs...))
	}

	return settings, nil
}

func EnvLookup() Lookup {
	return os.LookupEnv
}

func getEnvFromVars(lookup Lookup, vars ...string) string {
	for _, v := range vars {
		if value, ok := lookup(v); ok && value != "" {
			return value
		}
	}
	return ""
}

// parseList accepts a JSON array or a comma separated list.
func parseList(value string) ([]string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}

	if strings.HasPrefix(value, "[") {
		var list []string
		if err := json.Unmarshal([]byte(value), &list); err != nil {
			return nil, err
		}
		return list, nil
	}

	var list []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			list = append(list, item)
		}
	}
	return list, nil
}

// FormatList renders a list the way parseList reads it back.
func FormatList(list []string) string {
	if len(list) == 0 {
		return "[]"
	}
	data, _ := json.Marshal(list)
	return string(data)
}
