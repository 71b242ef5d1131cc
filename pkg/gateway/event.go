package gateway

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aws/aws-lambda-go/events"
)

const (
	payloadVersion    = "2.0"
	defaultStage      = "$default"
	localRegion       = "local"
	localAccountID    = "000000000000"
	localAPIID        = "local"
	requestTimeLayout = "02/Jan/2006:15:04:05 -0700"
)

var ErrInvalidFunctionResponse = errors.New("invalid function response")

type proxyRequest struct {
	request           *http.Request
	match             *RouteMatch
	body              []byte
	requestID         string
	authorizerContext map[string]interface{}
	now               time.Time
}

// event renders the request as an HTTP API payload format 2.0 event.
func (p *proxyRequest) event() events.APIGatewayV2HTTPRequest {
	headers, cookies := flattenHeaders(p.request)
	event := events.APIGatewayV2HTTPRequest{
		Version:               payloadVersion,
		RouteKey:              p.match.RouteKey(),
		RawPath:               p.request.URL.Path,
		RawQueryString:        p.request.URL.RawQuery,
		Cookies:               cookies,
		Headers:               headers,
		QueryStringParameters: flattenQuery(p.request),
		PathParameters:        p.match.Params,
		RequestContext: events.APIGatewayV2HTTPRequestContext{
			RouteKey:     p.match.RouteKey(),
			AccountID:    localAccountID,
			Stage:        defaultStage,
			RequestID:    p.requestID,
			APIID:        localAPIID,
			DomainName:   p.request.Host,
			DomainPrefix: strings.Split(p.request.Host, ".")[0],
			Time:         p.now.Format(requestTimeLayout),
			TimeEpoch:    p.now.UnixMilli(),
			HTTP: events.APIGatewayV2HTTPRequestContextHTTPDescription{
				Method:    p.request.Method,
				Path:      p.request.URL.Path,
				Protocol:  p.request.Proto,
				SourceIP:  sourceIP(p.request),
				UserAgent: p.request.UserAgent(),
			},
		},
	}

	if len(event.PathParameters) == 0 {
		event.PathParameters = nil
	}

	if p.authorizerContext != nil {
		event.RequestContext.Authorizer = &events.APIGatewayV2HTTPRequestContextAuthorizerDescription{Lambda: p.authorizerContext}
	}

	if len(p.body) > 0 {
		if utf8.Valid(p.body) {
			event.Body = string(p.body)
		} else {
			event.Body = base64.StdEncoding.EncodeToString(p.body)
			event.IsBase64Encoded = true
		}
	}

	return event
}

func routeArn(method, path string) string {
	return fmt.Sprintf("arn:aws:execute-api:%s:%s:%s/%s/%s%s", localRegion, localAccountID, localAPIID, defaultStage, method, path)
}

// flattenHeaders lower cases names and joins repeated values with a comma, cookies are reported separately.
func flattenHeaders(request *http.Request) (map[string]string, []string) {
	headers := make(map[string]string, len(request.Header)+1)
	var cookies []string
	for name, values := range request.Header {
		lower := strings.ToLower(name)
		if lower == "cookie" {
			for _, value := range values {
				for _, cookie := range strings.Split(value, ";") {
					if cookie = strings.TrimSpace(cookie); cookie != "" {
						cookies = append(cookies, cookie)
					}
				}
			}
			continue
		}
		headers[lower] = strings.Join(values, ",")
	}

	if request.Host != "" {
		headers["host"] = request.Host
	}
	return headers, cookies
}

func flattenQuery(request *http.Request) map[string]string {
	query := request.URL.Query()
	if len(query) == 0 {
		return nil
	}

	result := make(map[string]string, len(query))
	for name, values := range query {
		result[name] = strings.Join(values, ",")
	}
	return result
}

func sourceIP(request *http.Request) string {
	host, _, err := net.SplitHostPort(request.RemoteAddr)
	if err != nil {
		return request.RemoteAddr
	}
	return host
}

// writeFunctionResponse copies a payload format 2.0 response to w.
// A payload without statusCode is treated as a 200 JSON body.
func writeFunctionResponse(w http.ResponseWriter, payload []byte) error {
	probe := map[string]json.RawMessage{}
	if err := json.Unmarshal(payload, &probe); err != nil || probe["statusCode"] == nil {
		if !json.Valid(payload) {
			return fmt.Errorf("%w: %s", ErrInvalidFunctionResponse, payload)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(payload)
		return nil
	}

	response := events.APIGatewayV2HTTPResponse{}
	if err := json.Unmarshal(payload, &response); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidFunctionResponse, err)
	}

	if response.StatusCode < 100 || response.StatusCode > 599 {
		return fmt.Errorf("%w: status code %d", ErrInvalidFunctionResponse, response.StatusCode)
	}

	body := []byte(response.Body)
	if response.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(response.Body)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidFunctionResponse, err)
		}
		body = decoded
	}

	header := w.Header()
	for name, value := range response.Headers {
		header.Set(name, value)
	}
	for name, values := range response.MultiValueHeaders {
		for _, value := range values {
			header.Add(name, value)
		}
	}
	for _, cookie := range response.Cookies {
		header.Add("Set-Cookie", cookie)
	}

	w.WriteHeader(response.StatusCode)
	_, _ = w.Write(body)
	return nil
}
