// Command openkitx403d runs a demo resource server protecting one
// endpoint with the OpenKitx403 verification pipeline, wired the way a
// real deployment would configure it: file/env-driven config with
// fsnotify hot-reload, a selectable replay-store backend, and a
// Prometheus metrics endpoint. Grounded on
// AINative-Studio-ainative-code's internal/cmd/root.go cobra+viper
// root command shape.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "openkitx403d",
		Short: "Demo server for the OpenKitx403 wallet-signature auth protocol",
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml/json/toml)")
	root.AddCommand(newServeCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var listenAddr, metricsAddr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the demo resource server",
		RunE: func(cmd *cobra.Command, args []string) error {
			srv, err := NewServer(cfgFile)
			if err != nil {
				return err
			}
			ctx, cancel := NotifyContext()
			defer cancel()
			return srv.Run(ctx, listenAddr, metricsAddr)
		},
	}
	cmd.Flags().StringVar(&listenAddr, "listen", "", "address to serve the protected resource on (default :8443)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-listen", "", "address to serve /metrics on (default :9090)")
	return cmd
}
