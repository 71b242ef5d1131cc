package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/cloudentity/awshttpapiauthorizer/pkg/authorizer"
	"github.com/cloudentity/awshttpapiauthorizer/pkg/config"
	"github.com/cloudentity/awshttpapiauthorizer/pkg/introspection"
	"github.com/cloudentity/awshttpapiauthorizer/pkg/logging"
)

func main() {
	ctx := context.Background()
	logger := logging.FromEnv("introspection-authorizer")

	keyLoader, err := introspection.NewDefaultKeyLoader(ctx)
	if err != nil {
		logger.WithError(err).Fatal("failed to create key loader")
	}

	handler, err := authorizer.NewLambdaHandler(ctx, config.EnvLookup(), keyLoader, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to configure authorizer")
	}

	lambda.Start(handler.Handle)
}
