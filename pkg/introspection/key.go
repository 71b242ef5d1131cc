package introspection

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
)

// ApplicationKey is the JSON key file issued for the API application allowed to call the introspection endpoint.
type ApplicationKey struct {
	Type     string `json:"type"`
	KeyID    string `json:"keyId" validate:"required"`
	Key      string `json:"key" validate:"required"`
	AppID    string `json:"appId"`
	ClientID string `json:"clientId" validate:"required"`
}

// DecodeApplicationKey decodes a base64 encoded JSON application key.
func DecodeApplicationKey(encoded string) (*ApplicationKey, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("application key is not base64 encoded: %w", err)
	}

	key := &ApplicationKey{}
	if err = json.Unmarshal(data, key); err != nil {
		return nil, fmt.Errorf("application key is not valid json: %w", err)
	}

	if err = validator.New().Struct(key); err != nil {
		return nil, fmt.Errorf("invalid application key %w", err)
	}

	return key, nil
}

func (k *ApplicationKey) PrivateKey() (*rsa.PrivateKey, error) {
	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(k.Key))
	if err != nil {
		return nil, fmt.Errorf("failed to parse application key %s: %w", k.KeyID, err)
	}
	return privateKey, nil
}
