package matcher

import (
	"fmt"
	"strings"
)

type SegmentKind int

const (
	Static SegmentKind = iota
	Param
	Greedy
)

type Segment struct {
	Kind  SegmentKind
	Value string
}

// ParseTemplate parses route paths like /public, /items/{id} or /private/{proxy+}.
func ParseTemplate(uri string) ([]Segment, error) {
	if !strings.HasPrefix(uri, "/") {
		return nil, fmt.Errorf("route path %q has to start with /", uri)
	}

	relative := strings.TrimPrefix(uri, "/")
	if relative == "" {
		return nil, nil
	}

	parts := strings.Split(relative, "/")
	segments := make([]Segment, 0, len(parts))
	names := map[string]bool{}
	for i, part := range parts {
		if part == "" {
			return nil, fmt.Errorf("route path %q has an empty segment", uri)
		}

		if !strings.HasPrefix(part, "{") {
			if strings.ContainsAny(part, "{}") {
				return nil, fmt.Errorf("route path %q: invalid segment %q", uri, part)
			}
			segments = append(segments, Segment{Kind: Static, Value: part})
			continue
		}

		if !strings.HasSuffix(part, "}") {
			return nil, fmt.Errorf("route path %q: unterminated parameter %q", uri, part)
		}

		name := part[1 : len(part)-1]
		kind := Param
		if strings.HasSuffix(name, "+") {
			if i != len(parts)-1 {
				return nil, fmt.Errorf("route path %q: greedy parameter %q has to be the last segment", uri, part)
			}
			kind = Greedy
			name = strings.TrimSuffix(name, "+")
		}

		if name == "" || strings.ContainsAny(name, "{}+") {
			return nil, fmt.Errorf("route path %q: invalid parameter %q", uri, part)
		}

		if names[name] {
			return nil, fmt.Errorf("route path %q: parameter %q is used more than once", uri, name)
		}
		names[name] = true

		segments = append(segments, Segment{Kind: kind, Value: name})
	}

	return segments, nil
}

// Split turns a request path into segments; the query string and a trailing slash are ignored.
func Split(route string) []string {
	if index := strings.IndexByte(route, '?'); index != -1 {
		route = route[:index]
	}

	route = strings.Trim(route, "/")
	if route == "" {
		return nil
	}

	return strings.Split(route, "/")
}
