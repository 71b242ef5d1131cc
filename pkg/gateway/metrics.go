package gateway

import (
	"reflect"
	"time"

	"github.com/viant/gmetric"
	"github.com/viant/gmetric/counter"
)

const (
	MetricURI = "/v1/api/metric/"

	AuthorizationMetricName = "authorization"
	DispatchMetricName      = "dispatch"

	ErrorKey        = "error"
	AllowKey        = "allow"
	DenyKey         = "deny"
	UnauthorizedKey = "unauthorized"
	NotFoundKey     = "notFound"
	URLKey          = "url"
	FunctionKey     = "function"
)

type (
	Metrics struct {
		authorization *gmetric.Operation
		dispatch      *gmetric.Operation
	}

	authorizationProvider struct{}

	dispatchProvider struct{}
)

func NewMetrics(service *gmetric.Service) *Metrics {
	location := reflect.TypeOf(Metrics{}).PkgPath()
	return &Metrics{
		authorization: service.MultiOperationCounter(location, AuthorizationMetricName, "gateway authorization decisions", time.Microsecond, time.Minute, 2, authorizationProvider{}),
		dispatch:      service.MultiOperationCounter(location, DispatchMetricName, "gateway dispatch to targets", time.Microsecond, time.Minute, 2, dispatchProvider{}),
	}
}

func (m *Metrics) beginAuthorization() func(values ...interface{}) {
	if m == nil {
		return func(values ...interface{}) {}
	}
	return begin(m.authorization)
}

func (m *Metrics) beginDispatch() func(values ...interface{}) {
	if m == nil {
		return func(values ...interface{}) {}
	}
	return begin(m.dispatch)
}

func begin(operation *gmetric.Operation) func(values ...interface{}) {
	onDone := operation.Begin(time.Now())
	return func(values ...interface{}) {
		onDone(time.Now(), values...)
	}
}

func (p authorizationProvider) Keys() []string {
	return []string{
		ErrorKey,
		AllowKey,
		DenyKey,
		UnauthorizedKey,
	}
}

func (p authorizationProvider) Map(value interface{}) int {
	if value == nil {
		return -1
	}
	if _, ok := value.(error); ok {
		return 0
	}
	switch value {
	case ErrorKey:
		return 0
	case AllowKey:
		return 1
	case DenyKey:
		return 2
	case UnauthorizedKey:
		return 3
	}
	return -1
}

func (p dispatchProvider) Keys() []string {
	return []string{
		ErrorKey,
		NotFoundKey,
		URLKey,
		FunctionKey,
	}
}

func (p dispatchProvider) Map(value interface{}) int {
	if value == nil {
		return -1
	}
	if _, ok := value.(error); ok {
		return 0
	}
	switch value {
	case ErrorKey:
		return 0
	case NotFoundKey:
		return 1
	case URLKey:
		return 2
	case FunctionKey:
		return 3
	}
	return -1
}

var (
	_ counter.Provider = authorizationProvider{}
	_ counter.Provider = dispatchProvider{}
)
