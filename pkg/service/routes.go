package service

import (
	"context"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/sirupsen/logrus"

	"github.com/cloudentity/awshttpapiauthorizer/pkg/topology"
)

const DemoRole = "demo"

// Default serves /anyone, /authenticated and /demo below both route prefixes.
func Default(logger *logrus.Entry) *App {
	app := New(logger, topology.PublicPath, topology.PrivatePath)

	app.GET("/anyone", message("Anyone can access this endpoint"))
	app.GET("/authenticated", message("Authenticated users can access this endpoint"), IsAuthenticated())
	app.GET("/demo", message("Users with the project role 'demo' can access this endpoint"), RequireAnyProjectRole(DemoRole))

	return app
}

func message(text string) HandlerFunc {
	return func(ctx context.Context, event *events.APIGatewayV2HTTPRequest) events.APIGatewayV2HTTPResponse {
		return JSON(http.StatusOK, Message{Message: text})
	}
}
