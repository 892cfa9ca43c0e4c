package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/sensor-node/internal/config"
	"github.com/oshokin/sensor-node/internal/logger"
	"github.com/oshokin/sensor-node/internal/service/node"
	"github.com/oshokin/sensor-node/internal/version"
)

var (
	// options are filled from command line flags.
	options node.Options

	// temperature is the --temperature flag value, applied only when set.
	temperature float64

	// rootCmd represents the base command for running the node.
	rootCmd = &cobra.Command{
		Use:   "sensor-node [listen-address]",
		Short: "Run a simulated sensor node with threshold alarms.",
		Long: `Starts a sensor node that simulates light, rain, traffic and acceleration
sensors, takes the temperature from --temperature (or the configured
initial value, or a restored snapshot) and evaluates the freezing,
lights, traffic and motion alarms periodically.

Resources are served over gRPC (list, get, observe) and, when http_addr is set,
over HTTP with websocket observe, CoRE link-format discovery and Prometheus
metrics. Alarm observers are notified only when an alarm changes state.
A listen address argument overrides listen_addr from the configuration.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			defer logger.Sync()

			if len(args) > 0 {
				options.ListenAddress = args[0]
			}

			if cmd.Flags().Changed("temperature") {
				options.Temperature = &temperature
			}

			logger.InfoKV(ctx, "Starting sensor node", version.Fields()...)

			return node.Run(ctx, &options)
		},
	}
)

// Execute runs the sensor-node CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	flags := rootCmd.Flags()
	flags.StringVarP(&options.ConfigPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	flags.StringVar(&options.HTTPAddress, "http-addr", "", "HTTP facade address (overrides http_addr)")
	flags.StringVarP(&options.StateFile, "state-file", "s", "", "snapshot file (overrides state_file)")
	flags.Float64Var(&temperature, "temperature", 0, "temperature reading fed to the freezing alarm")
	flags.StringVarP(&options.LogLevel, "log-level", "l", "", "debug, info, warn or error (overrides log_level)")
}
