package matcher

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type route struct {
	uri    string
	method string
}

func (r *route) URI() string {
	return r.uri
}

func (r *route) Namespaces() []string {
	return []string{r.method}
}

func TestMatcher(t *testing.T) {
	testCases := []struct {
		description  string
		routes       []Matchable
		route        string
		method       string
		matchedRoute string
		params       map[string]string
		expectError  bool
	}{
		{
			description:  "basic match",
			routes:       []Matchable{&route{uri: "/public", method: http.MethodGet}},
			route:        "/public",
			method:       http.MethodGet,
			matchedRoute: "/public",
		},
		{
			description:  "query string is ignored",
			routes:       []Matchable{&route{uri: "/public", method: http.MethodGet}},
			route:        "/public?page=2",
			method:       http.MethodGet,
			matchedRoute: "/public",
		},
		{
			description:  "root route",
			routes:       []Matchable{&route{uri: "/", method: http.MethodGet}, &route{uri: "/public", method: http.MethodGet}},
			route:        "/",
			method:       http.MethodGet,
			matchedRoute: "/",
		},
		{
			description:  "nested route",
			routes:       []Matchable{&route{uri: "/events/seg1/seg2/seg3", method: http.MethodGet}, &route{uri: "/events/seg1/seg2", method: http.MethodGet}},
			route:        "/events/seg1/seg2",
			method:       http.MethodGet,
			matchedRoute: "/events/seg1/seg2",
		},
		{
			description:  "wildcard route",
			routes:       []Matchable{&route{uri: "/events/seg1/{segID}/seg3", method: http.MethodGet}, &route{uri: "/events/seg1/seg2", method: http.MethodGet}},
			route:        "/events/seg1/1/seg3",
			method:       http.MethodGet,
			matchedRoute: "/events/seg1/{segID}/seg3",
			params:       map[string]string{"segID": "1"},
		},
		{
			description:  "exact segment beats parameter",
			routes:       []Matchable{&route{uri: "/items/{id}", method: http.MethodGet}, &route{uri: "/items/latest", method: http.MethodGet}},
			route:        "/items/latest",
			method:       http.MethodGet,
			matchedRoute: "/items/latest",
		},
		{
			description:  "greedy route captures the remainder",
			routes:       []Matchable{&route{uri: "/public/{proxy+}", method: http.MethodGet}, &route{uri: "/public", method: http.MethodGet}},
			route:        "/public/users/42/orders",
			method:       http.MethodGet,
			matchedRoute: "/public/{proxy+}",
			params:       map[string]string{"proxy": "users/42/orders"},
		},
		{
			description: "greedy route does not match its own prefix",
			routes:      []Matchable{&route{uri: "/public/{proxy+}", method: http.MethodGet}},
			route:       "/public",
			method:      http.MethodGet,
			expectError: true,
		},
		{
			description:  "plain route beats greedy sibling",
			routes:       []Matchable{&route{uri: "/public/{proxy+}", method: http.MethodGet}, &route{uri: "/public/anyone", method: http.MethodGet}},
			route:        "/public/anyone",
			method:       http.MethodGet,
			matchedRoute: "/public/anyone",
		},
		{
			description:  "dead end on exact branch falls back to greedy",
			routes:       []Matchable{&route{uri: "/private/{proxy+}", method: http.MethodGet}, &route{uri: "/private/demo/x", method: http.MethodGet}},
			route:        "/private/demo",
			method:       http.MethodGet,
			matchedRoute: "/private/{proxy+}",
			params:       map[string]string{"proxy": "demo"},
		},
		{
			description: "method mismatch",
			routes:      []Matchable{&route{uri: "/public", method: http.MethodGet}},
			route:       "/public",
			method:      http.MethodPost,
			expectError: true,
		},
		{
			description: "unknown route",
			routes:      []Matchable{&route{uri: "/public", method: http.MethodGet}},
			route:       "/nowhere",
			method:      http.MethodGet,
			expectError: true,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			m, err := NewMatcher(testCase.routes)
			require.NoError(t, err)

			match, err := m.MatchOne(testCase.route, testCase.method)
			if testCase.expectError {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, testCase.matchedRoute, match.Matchable.URI())
			if testCase.params != nil {
				assert.Equal(t, testCase.params, match.Params)
			}
		})
	}
}

func TestMatcherNamespaceOrder(t *testing.T) {
	m, err := NewMatcher([]Matchable{
		&route{uri: "/items/{id}", method: "ANY"},
		&route{uri: "/items/{id}", method: http.MethodGet},
	})
	require.NoError(t, err)

	match, err := m.MatchOne("/items/1", http.MethodGet, "ANY")
	require.NoError(t, err)
	assert.Equal(t, http.MethodGet, match.Matchable.Namespaces()[0])

	match, err = m.MatchOne("/items/1", http.MethodDelete, "ANY")
	require.NoError(t, err)
	assert.Equal(t, "ANY", match.Matchable.Namespaces()[0])
}

func TestParseTemplate(t *testing.T) {
	testCases := []struct {
		uri         string
		expect      []Segment
		expectError bool
	}{
		{uri: "/", expect: nil},
		{uri: "/public", expect: []Segment{{Kind: Static, Value: "public"}}},
		{uri: "/items/{id}", expect: []Segment{{Kind: Static, Value: "items"}, {Kind: Param, Value: "id"}}},
		{uri: "/private/{proxy+}", expect: []Segment{{Kind: Static, Value: "private"}, {Kind: Greedy, Value: "proxy"}}},
		{uri: "public", expectError: true},
		{uri: "/a//b", expectError: true},
		{uri: "/{proxy+}/tail", expectError: true},
		{uri: "/items/{id", expectError: true},
		{uri: "/items/x{id}", expectError: true},
		{uri: "/{id}/{id}", expectError: true},
		{uri: "/{}", expectError: true},
	}

	for _, testCase := range testCases {
		t.Run(testCase.uri, func(t *testing.T) {
			segments, err := ParseTemplate(testCase.uri)
			if testCase.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, testCase.expect, segments)
		})
	}
}
