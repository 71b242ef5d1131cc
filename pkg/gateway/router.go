package gateway

import (
	"errors"

	"github.com/cloudentity/awshttpapiauthorizer/pkg/gateway/matcher"
	"github.com/cloudentity/awshttpapiauthorizer/pkg/topology"
)

var ErrRouteNotFound = errors.New("route not found")

type (
	Router struct {
		matcher *matcher.Matcher
	}

	// RouteMatch is the route selected for a request and its path parameters.
	RouteMatch struct {
		Route  *topology.Route
		Method string
		Params map[string]string
	}

	matchable struct {
		route  *topology.Route
		method string
	}
)

func NewRouter(routes []*topology.Route) (*Router, error) {
	matchables := make([]matcher.Matchable, 0, len(routes))
	for _, route := range routes {
		for _, method := range route.Methods {
			matchables = append(matchables, &matchable{route: route, method: method})
		}
	}

	aMatcher, err := matcher.NewMatcher(matchables)
	if err != nil {
		return nil, err
	}
	return &Router{matcher: aMatcher}, nil
}

// FindRoute prefers routes declared for the method over ANY routes.
func (r *Router) FindRoute(method, URI string) (*RouteMatch, error) {
	match, err := r.matcher.MatchOne(URI, method, topology.MethodAny)
	if err != nil {
		return nil, errors.Join(ErrRouteNotFound, err)
	}

	aMatchable := match.Matchable.(*matchable)
	return &RouteMatch{Route: aMatchable.route, Method: aMatchable.method, Params: match.Params}, nil
}

// RouteKey is the key of the declared route, e.g. "GET /private/{proxy+}".
func (m *RouteMatch) RouteKey() string {
	return topology.RouteKey(m.Method, m.Route.Path)
}

func (m *matchable) URI() string {
	return m.route.Path
}

func (m *matchable) Namespaces() []string {
	return []string{m.method}
}
