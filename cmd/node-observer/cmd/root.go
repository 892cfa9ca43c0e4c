package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/oshokin/sensor-node/internal/config"
	"github.com/oshokin/sensor-node/internal/service/observer"
	"github.com/oshokin/sensor-node/internal/version"
)

var (
	// options are filled from persistent flags.
	options observer.Options
	// fastInterval and slowInterval drive the watch poll rate.
	fastInterval, slowInterval time.Duration

	// rootCmd represents the base command of the observer client.
	rootCmd = &cobra.Command{
		Use:   "node-observer",
		Short: "Inspect and observe the resources of a sensor node.",
		Long: `Client of the sensor node resource service.

list prints every resource, get reads resources once, observe streams alarm
changes and watch runs the adaptive monitor that polls every sensor each
second while motion is reported and every ten seconds otherwise.`,
	}

	listCmd = &cobra.Command{
		Use:   "list",
		Short: "List the node resources.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return observer.RunList(cmd.Context(), &options)
		},
	}

	getCmd = &cobra.Command{
		Use:   "get <resource>...",
		Short: "Read resources once.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return observer.RunGet(cmd.Context(), &options, args...)
		},
	}

	observeCmd = &cobra.Command{
		Use:   "observe <alarm>...",
		Short: "Print alarm changes until interrupted.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return observer.RunObserve(cmd.Context(), &options, args...)
		},
	}

	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Poll sensors at a rate driven by the motion alarm.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return observer.RunWatch(cmd.Context(), &options, observer.WithIntervals(fastInterval, slowInterval))
		},
	}
)

// Execute runs the node-observer CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)

	err := rootCmd.ExecuteContext(ctx)

	stop()

	if err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&options.ConfigPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	flags.StringVarP(&options.NodeAddress, "node", "n", "", "node gRPC address (overrides listen_addr)")

	watchCmd.Flags().DurationVar(&fastInterval, "fast", observer.DefaultFastInterval, "poll interval while motion is reported")
	watchCmd.Flags().DurationVar(&slowInterval, "slow", observer.DefaultSlowInterval, "poll interval otherwise")

	rootCmd.AddCommand(listCmd, getCmd, observeCmd, watchCmd)
}
