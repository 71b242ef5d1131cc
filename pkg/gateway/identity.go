package gateway

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/cloudentity/awshttpapiauthorizer/pkg/topology"
)

var ErrMissingIdentity = errors.New("missing identity source")

// identitySource evaluates each expression against the request, every value has to be present and non empty.
func identitySource(request *http.Request, expressions []string) ([]string, error) {
	values := make([]string, 0, len(expressions))
	for _, expression := range expressions {
		prefix, name, err := topology.ParseIdentitySource(expression)
		if err != nil {
			return nil, err
		}

		var value string
		switch prefix {
		case topology.HeaderSourcePrefix:
			value = request.Header.Get(name)
		case topology.QueryStringSourcePrefix:
			value = request.URL.Query().Get(name)
		}

		if value == "" {
			return nil, fmt.Errorf("%w: %s", ErrMissingIdentity, expression)
		}
		values = append(values, value)
	}
	return values, nil
}
