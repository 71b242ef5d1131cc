package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cloudentity/awshttpapiauthorizer/pkg/authorizer"
	"github.com/cloudentity/awshttpapiauthorizer/pkg/topology"
)

type (
	// Gateway routes requests through the topology: match, authorize, dispatch.
	Gateway struct {
		topology *topology.Topology
		router   *Router
		deciders map[string]authorizer.Decider
		invoker  FunctionInvoker
		client   *http.Client
		metrics  *Metrics
		logger   *logrus.Entry
		now      func() time.Time
	}

	Option func(g *Gateway)

	message struct {
		Message string `json:"message"`
	}
)

func WithInvoker(invoker FunctionInvoker) Option {
	return func(g *Gateway) {
		g.invoker = invoker
	}
}

// WithDecider replaces the function call for the authorizer with the given ID.
func WithDecider(authorizerID string, decider authorizer.Decider) Option {
	return func(g *Gateway) {
		g.deciders[authorizerID] = decider
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(g *Gateway) {
		g.client = client
	}
}

func WithMetrics(metrics *Metrics) Option {
	return func(g *Gateway) {
		g.metrics = metrics
	}
}

func WithLogger(logger *logrus.Entry) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

func WithClock(now func() time.Time) Option {
	return func(g *Gateway) {
		g.now = now
	}
}

func New(t *topology.Topology, options ...Option) (*Gateway, error) {
	t, err := topology.New(t)
	if err != nil {
		return nil, err
	}

	router, err := NewRouter(t.Routes)
	if err != nil {
		return nil, err
	}

	g := &Gateway{
		topology: t,
		router:   router,
		deciders: map[string]authorizer.Decider{},
		client:   NewHTTPClient(30 * time.Second),
		logger:   logrus.NewEntry(logrus.StandardLogger()),
		now:      time.Now,
	}

	for _, option := range options {
		option(g)
	}

	for id, definition := range t.Authorizers {
		decider, ok := g.deciders[id]
		if !ok {
			if g.invoker == nil {
				return nil, fmt.Errorf("authorizer %v: no decider and no function invoker", id)
			}
			decider = NewFunctionDecider(g.invoker, definition.Function, definition.EffectiveResponseType())
		}

		if definition.ResultsCacheTTL > 0 {
			decider = authorizer.NewCachingDecider(decider, authorizer.NewCache(definition.ResultsCacheTTL), definition.CacheDenials)
		}
		g.deciders[id] = decider
	}

	for _, route := range t.Routes {
		if route.Target.Kind == topology.TargetFunction && g.invoker == nil {
			return nil, fmt.Errorf("route %v targets function %v but no function invoker is configured", route.Path, route.Target.Function)
		}
	}

	return g, nil
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, request *http.Request) {
	onDone := g.metrics.beginDispatch()

	match, err := g.router.FindRoute(request.Method, request.URL.Path)
	if err != nil {
		onDone(NotFoundKey)
		writeMessage(w, http.StatusNotFound, "Not Found")
		return
	}

	logger := g.logger.WithFields(logrus.Fields{"routeKey": match.RouteKey(), "path": request.URL.Path})

	var authorizerContext map[string]interface{}
	if match.Route.IsPrivate() {
		decision, status := g.authorize(request, match, logger)
		if status != http.StatusOK {
			onDone(ErrorKey)
			writeMessage(w, status, http.StatusText(status))
			return
		}
		authorizerContext = decision.Context
	}

	switch match.Route.Target.Kind {
	case topology.TargetURL:
		err = g.forward(w, request, match, logger)
		onDone(URLKey, err)
	case topology.TargetFunction:
		err = g.invoke(w, request, match, authorizerContext, logger)
		onDone(FunctionKey, err)
	}

	if err != nil {
		logger.WithError(err).Error("dispatch failed")
	}
}

// authorize returns http.StatusOK with an allowing decision, the rejection status otherwise.
func (g *Gateway) authorize(request *http.Request, match *RouteMatch, logger *logrus.Entry) (*authorizer.Decision, int) {
	onDone := g.metrics.beginAuthorization()
	definition, ok := g.topology.Authorizer(match.Route.Authorizer)
	if !ok {
		onDone(ErrorKey)
		return nil, http.StatusInternalServerError
	}

	values, err := identitySource(request, definition.IdentitySource)
	if err != nil {
		onDone(UnauthorizedKey)
		logger.WithError(err).Debug("request unauthorized")
		return nil, http.StatusUnauthorized
	}

	headers, _ := flattenHeaders(request)
	decision, err := g.deciders[match.Route.Authorizer].Decide(request.Context(), &authorizer.Request{
		IdentitySource:        values,
		RouteArn:              routeArn(request.Method, request.URL.Path),
		RouteKey:              match.RouteKey(),
		RawPath:               request.URL.Path,
		Headers:               headers,
		QueryStringParameters: flattenQuery(request),
	})
	if err != nil || decision == nil || !decision.Allowed {
		if decision != nil && decision.Transient {
			onDone(ErrorKey)
		} else {
			onDone(DenyKey)
		}
		logger.WithError(err).Info("request forbidden")
		return nil, http.StatusForbidden
	}

	onDone(AllowKey)
	return decision, http.StatusOK
}

func writeMessage(w http.ResponseWriter, status int, text string) {
	data, _ := json.Marshal(message{Message: text})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func (g *Gateway) String() string {
	var keys []string
	for _, route := range g.topology.Routes {
		keys = append(keys, route.Keys()...)
	}
	return fmt.Sprintf("%v: %v", g.topology.Name, strings.Join(keys, ", "))
}
