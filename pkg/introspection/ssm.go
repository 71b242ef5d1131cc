package introspection

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

type ParameterGetter interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// KeyLoader reads application keys stored as base64 SecureString parameters.
type KeyLoader struct {
	client ParameterGetter
}

func NewKeyLoader(client ParameterGetter) *KeyLoader {
	return &KeyLoader{client: client}
}

func NewDefaultKeyLoader(ctx context.Context) (*KeyLoader, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	return NewKeyLoader(ssm.NewFromConfig(cfg)), nil
}

// Load accepts either a parameter name or its ARN.
func (l *KeyLoader) Load(ctx context.Context, parameter string) (*ApplicationKey, error) {
	output, err := l.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(parameter),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get parameter %s: %w", parameter, err)
	}

	if output.Parameter == nil || output.Parameter.Value == nil {
		return nil, fmt.Errorf("parameter %s has no value", parameter)
	}

	return DecodeApplicationKey(*output.Parameter.Value)
}
