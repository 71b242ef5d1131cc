package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"

	lambdaruntime "github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/lambda"
)

var (
	ErrInvocationFailed = errors.New("function invocation failed")
	ErrFunctionFailed   = errors.New("function returned an error")
)

type (
	// FunctionInvoker calls a function unit with a JSON payload and returns its JSON result.
	FunctionInvoker interface {
		Invoke(ctx context.Context, function string, payload []byte) ([]byte, error)
	}

	LambdaConfig struct {
		AWS      *aws.Config
		Region   string
		Endpoint string
		// FunctionNames maps function IDs to deployed function names, IDs are used as names otherwise.
		FunctionNames map[string]string
	}

	// LambdaInvoker invokes deployed functions, or an emulator when Endpoint is set.
	LambdaInvoker struct {
		cfg    *LambdaConfig
		mux    sync.Mutex
		client *lambda.Lambda
	}

	// LocalInvoker runs handlers in process.
	LocalInvoker struct {
		handlers map[string]lambdaruntime.Handler
	}
)

func NewLambdaInvoker(cfg *LambdaConfig) *LambdaInvoker {
	return &LambdaInvoker{cfg: cfg}
}

func (i *LambdaInvoker) ensureClient() error {
	i.mux.Lock()
	defer i.mux.Unlock()

	if i.client != nil {
		return nil
	}
	sess, err := i.newSession()
	if err != nil {
		return err
	}
	i.client = lambda.New(sess, i.cfg.AWS)
	return nil
}

func (i *LambdaInvoker) newSession() (*session.Session, error) {
	var options []*aws.Config
	if i.cfg.Region != "" || i.cfg.Endpoint != "" {
		option := &aws.Config{}
		if i.cfg.Region != "" {
			option.Region = aws.String(i.cfg.Region)
		}
		if i.cfg.Endpoint != "" {
			option.Endpoint = aws.String(i.cfg.Endpoint)
		}
		options = append(options, option)
	}
	return session.NewSession(options...)
}

func (i *LambdaInvoker) Invoke(ctx context.Context, function string, payload []byte) ([]byte, error) {
	if err := i.ensureClient(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvocationFailed, err)
	}

	name := function
	if mapped, ok := i.cfg.FunctionNames[function]; ok {
		name = mapped
	}

	output, err := i.client.InvokeWithContext(ctx, &lambda.InvokeInput{
		FunctionName: aws.String(name),
		Payload:      payload,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v: %w", ErrInvocationFailed, name, err)
	}

	if output.FunctionError != nil {
		return nil, fmt.Errorf("%w: %v: %v: %s", ErrFunctionFailed, name, *output.FunctionError, output.Payload)
	}
	return output.Payload, nil
}

func NewLocalInvoker() *LocalInvoker {
	return &LocalInvoker{handlers: map[string]lambdaruntime.Handler{}}
}

// Register accepts any handler signature lambda.Start accepts.
func (i *LocalInvoker) Register(function string, handler interface{}) *LocalInvoker {
	i.handlers[function] = lambdaruntime.NewHandler(handler)
	return i
}

func (i *LocalInvoker) Invoke(ctx context.Context, function string, payload []byte) ([]byte, error) {
	handler, ok := i.handlers[function]
	if !ok {
		return nil, fmt.Errorf("%w: unknown function %v", ErrInvocationFailed, function)
	}

	output, err := handler.Invoke(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v: %w", ErrFunctionFailed, function, err)
	}
	return output, nil
}
