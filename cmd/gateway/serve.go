package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/viant/gmetric"

	"github.com/cloudentity/awshttpapiauthorizer/pkg/authorizer"
	"github.com/cloudentity/awshttpapiauthorizer/pkg/config"
	"github.com/cloudentity/awshttpapiauthorizer/pkg/gateway"
	"github.com/cloudentity/awshttpapiauthorizer/pkg/introspection"
	"github.com/cloudentity/awshttpapiauthorizer/pkg/logging"
	"github.com/cloudentity/awshttpapiauthorizer/pkg/service"
	"github.com/cloudentity/awshttpapiauthorizer/pkg/topology"
)

type serveOptions struct {
	topologyURL    string
	port           int
	backendURL     string
	withService    bool
	responseType   string
	cacheTTL       time.Duration
	cacheDenials   bool
	lambdaEndpoint string
	region         string
	functionNames  map[string]string
	timeout        time.Duration
}

func newServeCmd() *cobra.Command {
	options := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a topology over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), options)
		},
	}

	cmd.Flags().StringVarP(&options.topologyURL, "topology", "t", "", "Topology file URL (file, mem or s3), the standard layout is used when empty")
	cmd.Flags().IntVarP(&options.port, "port", "p", 8080, "Listen port")
	cmd.Flags().StringVar(&options.backendURL, "backend-url", topology.DefaultBackendURL, "Backend of the standard /public and /private routes")
	cmd.Flags().BoolVar(&options.withService, "with-service", false, "Add the service function routes to the standard layout")
	cmd.Flags().StringVar(&options.responseType, "response-type", string(topology.ResponseSimple), "Authorizer response type of the standard layout: simple or iam")
	cmd.Flags().DurationVar(&options.cacheTTL, "cache-ttl", 0, "Authorizer results cache TTL of the standard layout, 0 disables caching")
	cmd.Flags().BoolVar(&options.cacheDenials, "cache-denials", true, "Cache denials as well as allows")
	cmd.Flags().StringVar(&options.lambdaEndpoint, "lambda-endpoint", "", "Invoke functions through the Lambda API at this endpoint instead of in process")
	cmd.Flags().StringVar(&options.region, "region", "", "AWS region of the Lambda API")
	cmd.Flags().StringToStringVar(&options.functionNames, "function-name", nil, "Deployed name per function ID, e.g. authorizer=my-authorizer")
	cmd.Flags().DurationVar(&options.timeout, "backend-timeout", 30*time.Second, "Timeout of URL target requests")

	return cmd
}

func runServe(ctx context.Context, options *serveOptions) error {
	logger := logging.FromEnv("gateway")

	aTopology, err := loadTopology(ctx, options)
	if err != nil {
		return err
	}

	invoker, err := newInvoker(ctx, options, logger)
	if err != nil {
		return err
	}

	metrics := gmetric.New()
	aGateway, err := gateway.New(aTopology,
		gateway.WithInvoker(invoker),
		gateway.WithHTTPClient(gateway.NewHTTPClient(options.timeout)),
		gateway.WithMetrics(gateway.NewMetrics(metrics)),
		gateway.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	logger.WithField("routes", aGateway.String()).Info("topology loaded")

	server := gateway.NewServer(options.port, aGateway, metrics, logger)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errs := make(chan error, 1)
	go func() {
		errs <- server.Run()
	}()

	select {
	case err = <-errs:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func loadTopology(ctx context.Context, options *serveOptions) (*topology.Topology, error) {
	if options.topologyURL != "" {
		return topology.Load(ctx, options.topologyURL)
	}

	standard := topology.StandardOptions{
		BackendURL:      options.backendURL,
		ResponseType:    topology.ResponseType(options.responseType),
		ResultsCacheTTL: options.cacheTTL,
		CacheDenials:    options.cacheDenials,
	}
	if options.withService {
		standard.Service = &topology.Function{}
	}
	return topology.Standard(standard)
}

// newInvoker runs the authorizer and service functions in process unless a Lambda endpoint is given.
func newInvoker(ctx context.Context, options *serveOptions, logger *logrus.Entry) (gateway.FunctionInvoker, error) {
	if options.lambdaEndpoint != "" || len(options.functionNames) > 0 {
		return gateway.NewLambdaInvoker(&gateway.LambdaConfig{
			Region:        options.region,
			Endpoint:      options.lambdaEndpoint,
			FunctionNames: options.functionNames,
		}), nil
	}

	keyLoader, err := introspection.NewDefaultKeyLoader(ctx)
	if err != nil {
		return nil, err
	}

	handler, err := authorizer.NewLambdaHandler(ctx, config.EnvLookup(), keyLoader, logger.WithField("function", topology.AuthorizerFunctionID))
	if err != nil {
		return nil, fmt.Errorf("failed to configure the in process authorizer: %w", err)
	}

	app := service.Default(logger.WithField("function", topology.ServiceFunctionID))
	return gateway.NewLocalInvoker().
		Register(topology.AuthorizerFunctionID, handler.Handle).
		Register(topology.ServiceFunctionID, app.Resolve), nil
}

func newValidateCmd() *cobra.Command {
	var topologyURL string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Load a topology and list its routes",
		RunE: func(cmd *cobra.Command, args []string) error {
			aTopology, err := topology.Load(cmd.Context(), topologyURL)
			if err != nil {
				return err
			}
			for _, route := range aTopology.Routes {
				for _, key := range route.Keys() {
					access := "public"
					if route.IsPrivate() {
						access = "private: " + route.Authorizer
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", key, access)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&topologyURL, "topology", "t", "", "Topology file URL")
	_ = cmd.MarkFlagRequired("topology")
	return cmd
}
