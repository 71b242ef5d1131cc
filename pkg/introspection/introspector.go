package introspection

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	ClientAssertionType = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"

	assertionLifetime = time.Hour
	maxResponseSize   = 1 << 20
)

var ErrIntrospectionFailed = errors.New("token introspection failed")

type (
	Introspector struct {
		clientID   string
		keyID      string
		signingKey *rsa.PrivateKey
		issuerURL  string
		endpoint   string
		client     *http.Client
		now        func() time.Time
	}

	Option func(*Introspector)
)

func WithHTTPClient(client *http.Client) Option {
	return func(i *Introspector) {
		i.client = client
	}
}

func WithClock(now func() time.Time) Option {
	return func(i *Introspector) {
		i.now = now
	}
}

// New parses the key material up front, a broken key is a configuration failure.
func New(key *ApplicationKey, issuerURL, endpoint string, options ...Option) (*Introspector, error) {
	signingKey, err := key.PrivateKey()
	if err != nil {
		return nil, err
	}

	i := &Introspector{
		clientID:   key.ClientID,
		keyID:      key.KeyID,
		signingKey: signingKey,
		issuerURL:  issuerURL,
		endpoint:   endpoint,
		client:     &http.Client{Timeout: 5 * time.Second},
		now:        time.Now,
	}

	for _, option := range options {
		option(i)
	}

	return i, nil
}

// Introspect asks the introspection endpoint about token, authenticating with a signed client assertion.
func (i *Introspector) Introspect(ctx context.Context, token string) (*Response, error) {
	assertion, err := i.clientAssertion()
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("client_assertion_type", ClientAssertionType)
	form.Set("client_assertion", assertion)
	form.Set("token", token)

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, i.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIntrospectionFailed, err)
	}
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	request.Header.Set("Accept", "application/json")

	response, err := i.client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIntrospectionFailed, err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(io.LimitReader(response.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %w", ErrIntrospectionFailed, err)
	}

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: endpoint responded with status %d", ErrIntrospectionFailed, response.StatusCode)
	}

	result := &Response{}
	if err = json.Unmarshal(body, result); err != nil {
		return nil, fmt.Errorf("%w: invalid response: %w", ErrIntrospectionFailed, err)
	}

	return result, nil
}

func (i *Introspector) clientAssertion() (string, error) {
	now := i.now()
	claims := jwt.RegisteredClaims{
		Issuer:    i.clientID,
		Subject:   i.clientID,
		Audience:  jwt.ClaimStrings{i.issuerURL},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(assertionLifetime)),
		ID:        uuid.NewString(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = i.keyID

	signed, err := token.SignedString(i.signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign client assertion: %w", err)
	}
	return signed, nil
}
