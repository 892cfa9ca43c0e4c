package node

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	httpapi "github.com/oshokin/sensor-node/internal/api/http/resource"
	"github.com/oshokin/sensor-node/internal/config"
	"github.com/oshokin/sensor-node/internal/forwarder"
	"github.com/oshokin/sensor-node/internal/logger"
	"github.com/oshokin/sensor-node/internal/observe"
)

// Options controls the sensor-node process and configuration.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// ListenAddress overrides the gRPC listen address.
	ListenAddress string
	// HTTPAddress overrides the HTTP facade address.
	HTTPAddress string
	// StateFile overrides the snapshot file.
	StateFile string
	// LogLevel overrides the configured log level.
	LogLevel string
	// Temperature feeds the temperature sensor at startup, after any snapshot restore.
	Temperature *float64
}

// ErrUnknownLogLevel is returned for a log level zap does not know.
var ErrUnknownLogLevel = errors.New("unknown log level")

// Run starts the node and blocks until ctx is cancelled or a server fails.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "sensor-node")

	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	applyOverrides(settings, opts)

	if err = config.Validate(settings); err != nil {
		return fmt.Errorf("validate settings: %w", err)
	}

	level, ok := logger.ParseLogLevel(settings.LogLevel)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownLogLevel, settings.LogLevel)
	}

	logger.SetLevel(level)

	n, err := New(settings)
	if err != nil {
		return fmt.Errorf("initialise node: %w", err)
	}

	if settings.RestoreState {
		if err = n.Restore(ctx); err != nil {
			return err
		}
	}

	if opts.Temperature != nil {
		stored := n.Temperature().Store(*opts.Temperature)
		logger.InfoKV(ctx, "Temperature fed from command line", "temperature", stored)
	}

	// The forwarder subscribes before the scheduler starts so no edge escapes it.
	var forwarding []*observe.Subscription

	var fwd *forwarder.Forwarder

	if settings.AMQP.URI != "" {
		conn, ch, err := forwarder.Dial(settings.AMQP.URI, settings.AMQP.Queue)
		if err != nil {
			logger.ErrorKV(ctx, "AMQP forwarder disabled", "error", err)
		} else {
			defer func() {
				_ = ch.Close()
				_ = conn.Close()
			}()

			if forwarding, err = forwarder.Subscribe(n.Hub(), n.AlarmNames()...); err != nil {
				return fmt.Errorf("subscribe forwarder: %w", err)
			}

			fwd = forwarder.New(ch, settings.AMQP.Queue, settings.Timeout)
		}
	}

	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", settings.ListenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", settings.ListenAddress, err)
	}

	grpcServer := grpc.NewServer()
	n.RegisterGRPC(grpcServer)

	logger.InfoKV(ctx, "Sensor node listening",
		"grpc_address", lis.Addr().String(),
		"http_address", settings.HTTPAddress,
		"resource_prefix", settings.ResourcePrefix,
		"use_accel_alarm", settings.UseAccelAlarm)

	group, groupCtx := errgroup.WithContext(ctx)

	if fwd != nil {
		group.Go(func() error {
			fwd.Forward(groupCtx, forwarding)

			return nil
		})
	}

	group.Go(func() error {
		n.Schedule(groupCtx)
		logger.Info(ctx, "Scheduler stopped")

		return nil
	})

	group.Go(func() error {
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("serve gRPC: %w", err)
		}

		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info(ctx, "Shutting down gRPC server")
		grpcServer.GracefulStop()

		return nil
	})

	if settings.HTTPAddress != "" {
		srv := &http.Server{
			Addr:              settings.HTTPAddress,
			Handler:           n.Handler(),
			ReadHeaderTimeout: settings.Timeout,
		}

		group.Go(func() error {
			if err := httpapi.Serve(groupCtx, srv, settings.Timeout); err != nil {
				return fmt.Errorf("serve HTTP: %w", err)
			}

			return nil
		})
	}

	runErr := group.Wait()

	if err = n.SaveSnapshot(context.WithoutCancel(ctx)); err != nil {
		logger.ErrorKV(ctx, "Failed to save snapshot", "error", err)
	}

	logger.Info(ctx, "Sensor node stopped")

	return runErr
}

// applyOverrides copies non-empty command line values over the settings.
func applyOverrides(settings *config.Config, opts *Options) {
	if opts.ListenAddress != "" {
		settings.ListenAddress = opts.ListenAddress
	}

	if opts.HTTPAddress != "" {
		settings.HTTPAddress = opts.HTTPAddress
	}

	if opts.StateFile != "" {
		settings.StateFile = opts.StateFile
	}

	if opts.LogLevel != "" {
		settings.LogLevel = opts.LogLevel
	}
}
