// Command gateway runs an HTTP API topology locally.
//
// Usage:
//
//	gateway serve --with-service             Serve the standard public/private layout
//	gateway serve --topology topology.yaml   Serve routes declared in a topology file
//	gateway validate --topology s3://bucket/topology.yaml
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "gateway",
		Short: "Run an HTTP API topology with its authorizer locally",
		Long: `gateway matches requests against the routes of a topology, asks the route authorizer
for a decision on private routes and forwards allowed requests to URL or function targets.

Functions run in process by default; with --lambda-endpoint they are invoked through
the Lambda API, which also works against a local Lambda emulator.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newServeCmd(),
		newValidateCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
