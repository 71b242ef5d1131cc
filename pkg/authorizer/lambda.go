package authorizer

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/cloudentity/awshttpapiauthorizer/pkg/config"
	"github.com/cloudentity/awshttpapiauthorizer/pkg/introspection"
)

type KeyLoader interface {
	Load(ctx context.Context, parameter string) (*introspection.ApplicationKey, error)
}

// NewLambdaHandler builds the handler from environment settings once per cold start.
func NewLambdaHandler(ctx context.Context, lookup config.Lookup, keyLoader KeyLoader, logger *logrus.Entry) (*Handler, error) {
	introspectorSettings, err := config.LoadIntrospectorSettings(lookup)
	if err != nil {
		return nil, err
	}

	authorizerSettings, err := config.LoadAuthorizerSettings(lookup)
	if err != nil {
		return nil, err
	}

	logger.WithField("parameter", introspectorSettings.ApplicationKeyArn).Info("loading application key")
	key, err := keyLoader.Load(ctx, introspectorSettings.ApplicationKeyArn)
	if err != nil {
		return nil, err
	}

	introspector, err := introspection.New(key, introspectorSettings.IssuerURL, introspectorSettings.IntrospectionEndpoint)
	if err != nil {
		return nil, err
	}

	rules := Rules{
		ClientID:       authorizerSettings.ClientID,
		RequiredScopes: authorizerSettings.RequiredScopes,
		RequiredRoles:  authorizerSettings.RequiredRoles,
	}

	var decider Decider = New(introspector, rules, logger)
	if authorizerSettings.CacheTTL > 0 {
		decider = NewCachingDecider(decider, NewCache(authorizerSettings.CacheTTL), authorizerSettings.CacheDenials)
	}

	return NewHandler(decider, authorizerSettings.ResponseType, logger), nil
}
