package service

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/sirupsen/logrus"
)

type (
	HandlerFunc func(ctx context.Context, event *events.APIGatewayV2HTTPRequest) events.APIGatewayV2HTTPResponse

	Middleware func(next HandlerFunc) HandlerFunc

	// App resolves HTTP API proxy events to handlers after stripping configured path prefixes.
	App struct {
		routes        map[string]HandlerFunc
		stripPrefixes []string
		logger        *logrus.Entry
	}

	Message struct {
		Message string `json:"message"`
	}
)

func New(logger *logrus.Entry, stripPrefixes ...string) *App {
	return &App{routes: map[string]HandlerFunc{}, stripPrefixes: stripPrefixes, logger: logger}
}

func (a *App) Handle(method, path string, handler HandlerFunc, middlewares ...Middleware) {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	a.routes[routeKey(method, path)] = handler
}

func (a *App) GET(path string, handler HandlerFunc, middlewares ...Middleware) {
	a.Handle(http.MethodGet, path, handler, middlewares...)
}

func (a *App) Resolve(ctx context.Context, event events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	method := event.RequestContext.HTTP.Method
	path := a.strip(event.RawPath)

	logger := a.logger.WithFields(logrus.Fields{"method": method, "path": path, "requestId": event.RequestContext.RequestID})
	handler, ok := a.routes[routeKey(method, path)]
	if !ok {
		logger.Debug("route not found")
		return JSON(http.StatusNotFound, Message{Message: "Not found"}), nil
	}

	logger.Debug("resolving route")
	return handler(ctx, &event), nil
}

func (a *App) strip(path string) string {
	for _, prefix := range a.stripPrefixes {
		if path == prefix {
			return "/"
		}
		if rest, found := strings.CutPrefix(path, prefix+"/"); found {
			return "/" + rest
		}
	}
	return path
}

func routeKey(method, path string) string {
	return method + " " + path
}

func JSON(status int, body interface{}) events.APIGatewayV2HTTPResponse {
	data, err := json.Marshal(body)
	if err != nil {
		return Text(http.StatusInternalServerError, "Internal Server Error")
	}

	return events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(data),
	}
}

func Text(status int, body string) events.APIGatewayV2HTTPResponse {
	return events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "text/plain"},
		Body:       body,
	}
}
