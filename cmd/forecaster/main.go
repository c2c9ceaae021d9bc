package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

const defaultConfigPath = "configs/config.yaml"

type rootOptions struct {
	configPath string
	symbol     string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cfgPath := defaultConfigPath
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}

	root := &cobra.Command{
		Use:           "forecaster",
		Short:         "Next-session OHLCV forecaster",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", cfgPath, "path to the YAML config file")
	root.PersistentFlags().StringVarP(&opts.symbol, "symbol", "s", "", "instrument symbol, overrides data_source.symbol")

	root.AddCommand(newTrainCmd(opts), newPredictCmd(opts), newServeCmd(opts))
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
