package topology

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/cloudentity/awshttpapiauthorizer/pkg/gateway/matcher"
)

var ErrInvalidTopology = errors.New("invalid topology")

// Validate reports every problem found, joined into one error wrapping ErrInvalidTopology.
func (t *Topology) Validate() error {
	var errs []error

	if err := validator.New().Struct(t); err != nil {
		errs = append(errs, err)
	}

	for _, id := range sortedKeys(t.Functions) {
		if t.Functions[id] == nil {
			errs = append(errs, fmt.Errorf("function %q has no definition", id))
			continue
		}
		if err := t.Functions[id].Code.validate(); err != nil {
			errs = append(errs, fmt.Errorf("function %q: %w", id, err))
		}
	}

	for _, id := range sortedKeys(t.Authorizers) {
		authorizer := t.Authorizers[id]
		if authorizer == nil {
			errs = append(errs, fmt.Errorf("authorizer %q has no definition", id))
			continue
		}
		if _, ok := t.Functions[authorizer.Function]; !ok {
			errs = append(errs, fmt.Errorf("authorizer %q references unknown function %q", id, authorizer.Function))
		}
		for _, source := range authorizer.IdentitySource {
			if _, _, err := ParseIdentitySource(source); err != nil {
				errs = append(errs, fmt.Errorf("authorizer %q: %w", id, err))
			}
		}
	}

	keys := map[string]bool{}
	shapes := map[string]string{}
	for i, route := range t.Routes {
		if route == nil {
			errs = append(errs, fmt.Errorf("route #%d has no definition", i))
			continue
		}

		segments, err := matcher.ParseTemplate(route.Path)
		if err != nil {
			errs = append(errs, err)
		}

		for _, method := range route.Methods {
			key := RouteKey(method, route.Path)
			if keys[key] {
				errs = append(errs, fmt.Errorf("route %q is defined more than once", key))
				continue
			}
			keys[key] = true

			if err != nil {
				continue
			}
			// routes differing only in parameter names end on the same matcher node
			shape := RouteKey(method, templateShape(segments))
			if other, ok := shapes[shape]; ok {
				errs = append(errs, fmt.Errorf("route %q conflicts with %q", key, other))
				continue
			}
			shapes[shape] = key
		}

		if route.Authorizer != "" {
			if _, ok := t.Authorizers[route.Authorizer]; !ok {
				errs = append(errs, fmt.Errorf("route %q references unknown authorizer %q", route.Path, route.Authorizer))
			}
		}

		if err := t.validateTarget(&route.Target); err != nil {
			errs = append(errs, fmt.Errorf("route %q: %w", route.Path, err))
		}
	}

	if len(errs) == 0 {
		return nil
	}

	return fmt.Errorf("%w: %w", ErrInvalidTopology, errors.Join(errs...))
}

func (t *Topology) validateTarget(target *Target) error {
	switch target.Kind {
	case TargetURL:
		if target.Function != "" {
			return errors.New("url target must not reference a function")
		}
		parsed, err := url.Parse(target.URL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("invalid target url %q", target.URL)
		}
	case TargetFunction:
		if target.URL != "" {
			return errors.New("function target must not have a url")
		}
		if _, ok := t.Functions[target.Function]; !ok {
			return fmt.Errorf("unknown target function %q", target.Function)
		}
	}
	return nil
}

func templateShape(segments []matcher.Segment) string {
	if len(segments) == 0 {
		return "/"
	}

	var builder strings.Builder
	for _, segment := range segments {
		builder.WriteByte('/')
		switch segment.Kind {
		case matcher.Param:
			builder.WriteString("{}")
		case matcher.Greedy:
			builder.WriteString("{+}")
		default:
			builder.WriteString(segment.Value)
		}
	}
	return builder.String()
}

func (c Code) validate() error {
	if c.LocalPath != "" && c.S3Key != "" {
		return errors.New("code has to come either from a local path or from s3")
	}
	return nil
}

// ParseIdentitySource splits $request.header.Authorization style expressions into a prefix and a name.
func ParseIdentitySource(source string) (prefix string, name string, err error) {
	for _, prefix = range []string{HeaderSourcePrefix, QueryStringSourcePrefix} {
		if name, found := strings.CutPrefix(source, prefix); found && name != "" {
			return prefix, name, nil
		}
	}
	return "", "", fmt.Errorf("unsupported identity source %q", source)
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
