package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/km-arc/go-beans/framework/config"
)

func newServeCommand(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Boot the container and serve HTTP until interrupted",
		Long: `Boot every provider, create the non-lazy singletons and serve HTTP.

On SIGINT or SIGTERM the server drains and every singleton is destroyed,
dependents before the beans they depend on.

Examples:
  beans serve --port 8080
  beans serve -c beans.yaml
  curl localhost:8000/debug/beans`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := o.load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(contextOrBackground(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.Run(ctx)
		},
	}
	cmd.Flags().String("port", "", "port to listen on")
	_ = o.v.BindPFlag(config.KeyAppPort, cmd.Flags().Lookup("port"))
	return cmd
}

// contextOrBackground guards against commands run without ExecuteContext.
func contextOrBackground(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
