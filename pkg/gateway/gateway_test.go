package gateway

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudentity/awshttpapiauthorizer/pkg/authorizer"
	"github.com/cloudentity/awshttpapiauthorizer/pkg/service"
	"github.com/cloudentity/awshttpapiauthorizer/pkg/topology"
)

type fakeDecider struct {
	calls atomic.Int32
	// allowed maps identity values to the decision context; anything else is denied.
	allowed map[string]map[string]interface{}
	err     error
}

func (d *fakeDecider) Decide(ctx context.Context, request *authorizer.Request) (*authorizer.Decision, error) {
	d.calls.Add(1)
	if d.err != nil {
		return authorizer.TransientDeny(), d.err
	}
	if values, ok := d.allowed[strings.Join(request.IdentitySource, ",")]; ok {
		return &authorizer.Decision{Allowed: true, PrincipalID: "user-1", Context: values}, nil
	}
	return authorizer.Deny(), authorizer.ErrInactiveToken
}

func testLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

func newBackend(t *testing.T) *httptest.Server {
	t.Helper()
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Backend-Path", r.URL.Path)
		w.Header().Set("X-Backend-Query", r.URL.RawQuery)
		w.Header().Set("X-Backend-Authorization", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusTeapot)
		_, _ = io.WriteString(w, "short and stout")
	}))
	t.Cleanup(backend.Close)
	return backend
}

func standardTopology(t *testing.T, backendURL string, withService bool, ttl time.Duration) *topology.Topology {
	t.Helper()
	options := topology.StandardOptions{
		BackendURL:      backendURL,
		ResultsCacheTTL: ttl,
		CacheDenials:    true,
	}
	if withService {
		options.Service = &topology.Function{}
	}
	aTopology, err := topology.Standard(options)
	require.NoError(t, err)
	return aTopology
}

func serve(handler http.Handler, method, target string, header http.Header) *httptest.ResponseRecorder {
	request := httptest.NewRequest(method, target, nil)
	for name, values := range header {
		request.Header[name] = values
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	return recorder
}

func bearer(token string) http.Header {
	return http.Header{"Authorization": []string{"Bearer " + token}}
}

func TestGateway_URLTargets(t *testing.T) {
	backend := newBackend(t)
	decider := &fakeDecider{allowed: map[string]map[string]interface{}{"Bearer valid": {"sub": "user-1"}}}
	gateway, err := New(standardTopology(t, backend.URL+"/anything", false, 0), WithDecider(topology.IntrospectionID, decider), WithLogger(testLogger()))
	require.NoError(t, err)

	var testCases = []struct {
		description string
		method      string
		target      string
		header      http.Header
		expectCode  int
		expectBody  string
	}{
		{
			description: "public route reaches the backend without credentials",
			method:      http.MethodGet,
			target:      "/public?a=1",
			expectCode:  http.StatusTeapot,
			expectBody:  "short and stout",
		},
		{
			description: "private route without identity",
			method:      http.MethodGet,
			target:      "/private",
			expectCode:  http.StatusUnauthorized,
			expectBody:  `{"message":"Unauthorized"}`,
		},
		{
			description: "private route with rejected credential",
			method:      http.MethodGet,
			target:      "/private",
			header:      bearer("revoked"),
			expectCode:  http.StatusForbidden,
			expectBody:  `{"message":"Forbidden"}`,
		},
		{
			description: "private route with accepted credential",
			method:      http.MethodGet,
			target:      "/private",
			header:      bearer("valid"),
			expectCode:  http.StatusTeapot,
			expectBody:  "short and stout",
		},
		{
			description: "unknown path",
			method:      http.MethodGet,
			target:      "/elsewhere",
			expectCode:  http.StatusNotFound,
			expectBody:  `{"message":"Not Found"}`,
		},
		{
			description: "method without a route",
			method:      http.MethodPost,
			target:      "/public",
			expectCode:  http.StatusNotFound,
			expectBody:  `{"message":"Not Found"}`,
		},
	}

	for _, testCase := range testCases {
		recorder := serve(gateway, testCase.method, testCase.target, testCase.header)
		assert.Equal(t, testCase.expectCode, recorder.Code, testCase.description)
		assert.Equal(t, testCase.expectBody, recorder.Body.String(), testCase.description)
	}
}

func TestGateway_ForwardsRequestDetails(t *testing.T) {
	backend := newBackend(t)
	decider := &fakeDecider{allowed: map[string]map[string]interface{}{"Bearer valid": nil}}
	gateway, err := New(standardTopology(t, backend.URL+"/anything", false, 0), WithDecider(topology.IntrospectionID, decider), WithLogger(testLogger()))
	require.NoError(t, err)

	recorder := serve(gateway, http.MethodGet, "/private?page=2", bearer("valid"))
	assert.Equal(t, http.StatusTeapot, recorder.Code)
	assert.Equal(t, "/anything", recorder.Header().Get("X-Backend-Path"))
	assert.Equal(t, "page=2", recorder.Header().Get("X-Backend-Query"))
	assert.Equal(t, "Bearer valid", recorder.Header().Get("X-Backend-Authorization"))
}

func TestGateway_BackendCalls(t *testing.T) {
	var backendCalls atomic.Int32
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		backendCalls.Add(1)
		_, _ = io.WriteString(w, "proxied")
	}))
	defer backend.Close()

	decider := &fakeDecider{allowed: map[string]map[string]interface{}{"Bearer valid": nil}}
	gateway, err := New(standardTopology(t, backend.URL, false, 0), WithDecider(topology.IntrospectionID, decider), WithLogger(testLogger()))
	require.NoError(t, err)

	recorder := serve(gateway, http.MethodGet, "/public", bearer("valid"))
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.EqualValues(t, 0, decider.calls.Load(), "public routes never ask the authorizer")
	assert.EqualValues(t, 1, backendCalls.Load())

	recorder = serve(gateway, http.MethodGet, "/private", bearer("valid"))
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "proxied", recorder.Body.String())
	assert.EqualValues(t, 1, decider.calls.Load())
	assert.EqualValues(t, 2, backendCalls.Load())

	for _, header := range []http.Header{nil, bearer("expired"), {"Authorization": []string{"Basic abc"}}} {
		recorder = serve(gateway, http.MethodGet, "/private", header)
		assert.Contains(t, []int{http.StatusUnauthorized, http.StatusForbidden}, recorder.Code)
	}
	assert.EqualValues(t, 2, backendCalls.Load())
}

func TestGateway_UnauthorizedSkipsDecider(t *testing.T) {
	decider := &fakeDecider{}
	gateway, err := New(standardTopology(t, topology.DefaultBackendURL, false, 0), WithDecider(topology.IntrospectionID, decider), WithLogger(testLogger()))
	require.NoError(t, err)

	recorder := serve(gateway, http.MethodGet, "/private", http.Header{"Authorization": []string{""}})
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	assert.EqualValues(t, 0, decider.calls.Load())
}

func TestGateway_DeciderFailureIsForbidden(t *testing.T) {
	var backendCalls atomic.Int32
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		backendCalls.Add(1)
	}))
	defer backend.Close()

	decider := &fakeDecider{err: errors.New("introspection endpoint down")}
	gateway, err := New(standardTopology(t, backend.URL, false, 0), WithDecider(topology.IntrospectionID, decider), WithLogger(testLogger()))
	require.NoError(t, err)

	recorder := serve(gateway, http.MethodGet, "/private", bearer("valid"))
	assert.Equal(t, http.StatusForbidden, recorder.Code)
	assert.EqualValues(t, 0, backendCalls.Load())
}

func TestGateway_UnreachableBackend(t *testing.T) {
	backend := httptest.NewServer(http.NotFoundHandler())
	backendURL := backend.URL
	backend.Close()

	gateway, err := New(standardTopology(t, backendURL, false, 0), WithDecider(topology.IntrospectionID, &fakeDecider{}), WithLogger(testLogger()))
	require.NoError(t, err)

	recorder := serve(gateway, http.MethodGet, "/public", nil)
	assert.Equal(t, http.StatusBadGateway, recorder.Code)
	assert.Equal(t, `{"message":"Bad Gateway"}`, recorder.Body.String())
}

func TestGateway_CachesDecisions(t *testing.T) {
	backend := newBackend(t)
	decider := &fakeDecider{allowed: map[string]map[string]interface{}{"Bearer valid": nil}}
	gateway, err := New(standardTopology(t, backend.URL, false, time.Minute), WithDecider(topology.IntrospectionID, decider), WithLogger(testLogger()))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusTeapot, serve(gateway, http.MethodGet, "/private", bearer("valid")).Code)
		assert.Equal(t, http.StatusForbidden, serve(gateway, http.MethodGet, "/private", bearer("revoked")).Code)
	}
	assert.EqualValues(t, 2, decider.calls.Load())
}

func TestGateway_FunctionTargets(t *testing.T) {
	decider := &fakeDecider{allowed: map[string]map[string]interface{}{
		"Bearer valid": {"sub": "user-1", service.ProjectRolesKey: []interface{}{"viewer"}},
		"Bearer demo":  {"sub": "user-2", service.ProjectRolesKey: []interface{}{service.DemoRole}},
	}}
	invoker := NewLocalInvoker().Register(topology.ServiceFunctionID, service.Default(testLogger()).Resolve)
	gateway, err := New(standardTopology(t, topology.DefaultBackendURL, true, 0),
		WithDecider(topology.IntrospectionID, decider),
		WithInvoker(invoker),
		WithLogger(testLogger()),
	)
	require.NoError(t, err)

	var testCases = []struct {
		description string
		target      string
		header      http.Header
		expectCode  int
		expectBody  string
	}{
		{
			description: "public open endpoint",
			target:      "/public/anyone",
			expectCode:  http.StatusOK,
			expectBody:  `{"message":"Anyone can access this endpoint"}`,
		},
		{
			description: "public route carries no authorizer context",
			target:      "/public/authenticated",
			expectCode:  http.StatusUnauthorized,
			expectBody:  "Unauthorized",
		},
		{
			description: "private route carries the authorizer context",
			target:      "/private/authenticated",
			header:      bearer("valid"),
			expectCode:  http.StatusOK,
			expectBody:  `{"message":"Authenticated users can access this endpoint"}`,
		},
		{
			description: "role check without the role",
			target:      "/private/demo",
			header:      bearer("valid"),
			expectCode:  http.StatusForbidden,
			expectBody:  "Forbidden",
		},
		{
			description: "role check with the role",
			target:      "/private/demo",
			header:      bearer("demo"),
			expectCode:  http.StatusOK,
			expectBody:  `{"message":"Users with the project role 'demo' can access this endpoint"}`,
		},
		{
			description: "unknown service path",
			target:      "/public/nowhere",
			expectCode:  http.StatusNotFound,
			expectBody:  `{"message":"Not found"}`,
		},
		{
			description: "private service route without identity",
			target:      "/private/anyone",
			expectCode:  http.StatusUnauthorized,
			expectBody:  `{"message":"Unauthorized"}`,
		},
	}

	for _, testCase := range testCases {
		recorder := serve(gateway, http.MethodGet, testCase.target, testCase.header)
		assert.Equal(t, testCase.expectCode, recorder.Code, testCase.description)
		assert.Equal(t, testCase.expectBody, recorder.Body.String(), testCase.description)
	}
}

func TestGateway_FunctionFailures(t *testing.T) {
	invoker := NewLocalInvoker().Register(topology.ServiceFunctionID, func(ctx context.Context) (string, error) {
		return "", errors.New("boom")
	})
	gateway, err := New(standardTopology(t, topology.DefaultBackendURL, true, 0),
		WithDecider(topology.IntrospectionID, &fakeDecider{}),
		WithInvoker(invoker),
		WithLogger(testLogger()),
	)
	require.NoError(t, err)

	recorder := serve(gateway, http.MethodGet, "/public/anyone", nil)
	assert.Equal(t, http.StatusInternalServerError, recorder.Code)

	gateway, err = New(standardTopology(t, topology.DefaultBackendURL, true, 0),
		WithDecider(topology.IntrospectionID, &fakeDecider{}),
		WithInvoker(NewLocalInvoker()),
		WithLogger(testLogger()),
	)
	require.NoError(t, err)

	recorder = serve(gateway, http.MethodGet, "/public/anyone", nil)
	assert.Equal(t, http.StatusBadGateway, recorder.Code)
}

func TestNew_RequiresInvoker(t *testing.T) {
	_, err := New(standardTopology(t, topology.DefaultBackendURL, false, 0))
	assert.Error(t, err, "authorizer function without an invoker")

	_, err = New(standardTopology(t, topology.DefaultBackendURL, true, 0), WithDecider(topology.IntrospectionID, &fakeDecider{}))
	assert.Error(t, err, "function target without an invoker")

	gateway, err := New(standardTopology(t, topology.DefaultBackendURL, false, 0), WithDecider(topology.IntrospectionID, &fakeDecider{}))
	require.NoError(t, err)
	assert.Contains(t, gateway.String(), "GET /private")
}

func TestNew_ValidatesTopology(t *testing.T) {
	backend := newBackend(t)
	decider := &fakeDecider{allowed: map[string]map[string]interface{}{"Bearer valid": nil}}
	literal := &topology.Topology{
		Name:      "literal",
		Functions: map[string]*topology.Function{"auth-fn": {}},
		Authorizers: map[string]*topology.Authorizer{
			"auth": {Function: "auth-fn", IdentitySource: []string{topology.DefaultIdentitySource}},
		},
		Routes: []*topology.Route{
			{Path: "/p", Methods: []string{http.MethodGet}, Authorizer: "auth", Target: topology.Target{Kind: topology.TargetURL, URL: backend.URL}},
		},
	}

	gateway, err := New(literal, WithDecider("auth", decider), WithLogger(testLogger()))
	require.NoError(t, err)

	recorder := serve(gateway, http.MethodGet, "/p", bearer("valid"))
	assert.Equal(t, http.StatusTeapot, recorder.Code)
	assert.EqualValues(t, 1, decider.calls.Load())

	literal.Routes = append(literal.Routes, &topology.Route{Path: "/p", Methods: []string{http.MethodGet}, Authorizer: "missing", Target: literal.Routes[0].Target})
	_, err = New(literal, WithDecider("auth", decider))
	assert.ErrorIs(t, err, topology.ErrInvalidTopology)
}
