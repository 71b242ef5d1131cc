package authorizer

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/sirupsen/logrus"

	"github.com/cloudentity/awshttpapiauthorizer/pkg/topology"
)

const authorizationHeader = "authorization"

type (
	// Handler adapts a Decider to the HTTP API Lambda authorizer contract.
	Handler struct {
		decider      Decider
		responseType topology.ResponseType
		logger       *logrus.Entry
	}

	keepWarmProbe struct {
		Warmup  bool              `json:"warmup"`
		Records []json.RawMessage `json:"Records"`
	}

	KeepWarmResponse struct {
		Warm bool `json:"warm"`
	}
)

func NewHandler(decider Decider, responseType topology.ResponseType, logger *logrus.Entry) *Handler {
	return &Handler{decider: decider, responseType: responseType, logger: logger}
}

// Handle never fails, anything it cannot decide on is denied.
func (h *Handler) Handle(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	probe := keepWarmProbe{}
	if err := json.Unmarshal(payload, &probe); err == nil && (probe.Warmup || len(probe.Records) > 0) {
		h.logger.Debug("keep warm ping")
		return KeepWarmResponse{Warm: true}, nil
	}

	event := events.APIGatewayV2CustomAuthorizerV2Request{}
	if err := json.Unmarshal(payload, &event); err != nil {
		h.logger.WithError(err).Error("invalid authorizer event")
		return Deny().Response(h.responseType, ""), nil
	}

	decision, err := h.decider.Decide(ctx, RequestFromEvent(&event))
	if decision == nil {
		decision = TransientDeny()
	}

	logger := h.logger.WithFields(logrus.Fields{"routeKey": event.RouteKey, "allowed": decision.Allowed})
	if err != nil {
		logger.WithError(err).Info("request denied")
	} else {
		logger.Info("request authorized")
	}

	return decision.Response(h.responseType, event.RouteArn), nil
}

func RequestFromEvent(event *events.APIGatewayV2CustomAuthorizerV2Request) *Request {
	headers := make(map[string]string, len(event.Headers))
	for name, value := range event.Headers {
		headers[strings.ToLower(name)] = value
	}

	identitySource := event.IdentitySource
	if len(identitySource) == 0 {
		if value, ok := headers[authorizationHeader]; ok {
			identitySource = []string{value}
		}
	}

	return &Request{
		IdentitySource:        identitySource,
		RouteArn:              event.RouteArn,
		RouteKey:              event.RouteKey,
		RawPath:               event.RawPath,
		Headers:               headers,
		QueryStringParameters: event.QueryStringParameters,
	}
}
