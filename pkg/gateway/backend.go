package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// NewHTTPClient does not follow redirects, a backend redirect is returned to the caller as is.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// forward proxies the request to a URL target once; the backend response is copied verbatim.
func (g *Gateway) forward(w http.ResponseWriter, request *http.Request, match *RouteMatch, logger *logrus.Entry) error {
	target, err := expandTarget(match.Route.Target.URL, match.Params, request.URL.RawQuery)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "Internal Server Error")
		return err
	}

	outbound, err := http.NewRequestWithContext(request.Context(), request.Method, target, request.Body)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "Internal Server Error")
		return err
	}
	outbound.ContentLength = request.ContentLength
	outbound.Header = request.Header.Clone()
	removeHopHeaders(outbound.Header)
	outbound.Header.Set("X-Forwarded-For", sourceIP(request))
	outbound.Header.Set("X-Forwarded-Proto", forwardedProto(request))

	logger.WithField("target", target).Debug("forwarding request")
	response, err := g.client.Do(outbound)
	if err != nil {
		writeMessage(w, http.StatusBadGateway, "Bad Gateway")
		return fmt.Errorf("backend %v unreachable: %w", target, err)
	}
	defer response.Body.Close()

	header := w.Header()
	for name, values := range response.Header {
		header[name] = append([]string(nil), values...)
	}
	removeHopHeaders(header)

	w.WriteHeader(response.StatusCode)
	if _, err = io.Copy(w, response.Body); err != nil {
		return fmt.Errorf("failed to copy backend response: %w", err)
	}
	return nil
}

// invoke calls a function target with a payload format 2.0 event.
func (g *Gateway) invoke(w http.ResponseWriter, request *http.Request, match *RouteMatch, authorizerContext map[string]interface{}, logger *logrus.Entry) error {
	body, err := io.ReadAll(request.Body)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Bad Request")
		return err
	}

	proxy := &proxyRequest{
		request:           request,
		match:             match,
		body:              body,
		requestID:         uuid.NewString(),
		authorizerContext: authorizerContext,
		now:               g.now(),
	}

	payload, err := json.Marshal(proxy.event())
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "Internal Server Error")
		return err
	}

	function := match.Route.Target.Function
	logger.WithFields(logrus.Fields{"function": function, "requestId": proxy.requestID}).Debug("invoking function")
	output, err := g.invoker.Invoke(request.Context(), function, payload)
	if err != nil {
		if errors.Is(err, ErrFunctionFailed) || errors.Is(err, context.DeadlineExceeded) {
			writeMessage(w, http.StatusInternalServerError, "Internal Server Error")
		} else {
			writeMessage(w, http.StatusBadGateway, "Bad Gateway")
		}
		return err
	}

	if err = writeFunctionResponse(w, output); err != nil {
		writeMessage(w, http.StatusInternalServerError, "Internal Server Error")
		return err
	}
	return nil
}

// expandTarget fills {name} and {name+} placeholders from path parameters and appends the query string.
func expandTarget(target string, params map[string]string, rawQuery string) (string, error) {
	for name, value := range params {
		escaped := escapeSegments(value)
		target = strings.ReplaceAll(target, "{"+name+"+}", escaped)
		target = strings.ReplaceAll(target, "{"+name+"}", escaped)
	}

	parsed, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("invalid target url %v: %w", target, err)
	}

	if rawQuery != "" {
		if parsed.RawQuery != "" {
			parsed.RawQuery += "&" + rawQuery
		} else {
			parsed.RawQuery = rawQuery
		}
	}
	return parsed.String(), nil
}

func removeHopHeaders(header http.Header) {
	for _, name := range hopHeaders {
		header.Del(name)
	}
}

func forwardedProto(request *http.Request) string {
	if request.TLS != nil {
		return "https"
	}
	return "http"
}

func escapeSegments(value string) string {
	segments := strings.Split(value, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.Join(segments, "/")
}
