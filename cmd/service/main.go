package main

import (
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/cloudentity/awshttpapiauthorizer/pkg/logging"
	"github.com/cloudentity/awshttpapiauthorizer/pkg/service"
)

func main() {
	app := service.Default(logging.FromEnv("service"))
	lambda.Start(app.Resolve)
}
