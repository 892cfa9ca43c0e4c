package observer

import (
	"context"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	api "github.com/oshokin/sensor-node/internal/api/grpc/resource"
	"github.com/oshokin/sensor-node/internal/logger"
)

const (
	// DefaultMotionAlarm switches the poll rate.
	DefaultMotionAlarm = "alarm_accel"
	// DefaultTrafficAlarm is observed and printed.
	DefaultTrafficAlarm = "alarm_traffic"
	// DefaultFastInterval is the poll interval while motion is reported.
	DefaultFastInterval = time.Second
	// DefaultSlowInterval is the poll interval otherwise.
	DefaultSlowInterval = 10 * time.Second

	// activePayload is the representation of an active alarm.
	activePayload = "1"
)

// Watcher polls sensors at a rate driven by the motion alarm.
type Watcher struct {
	client  Client
	printer *printer

	motionAlarm  string
	otherAlarms  []string
	fastInterval time.Duration
	slowInterval time.Duration
}

// WatchOption customises a Watcher.
type WatchOption func(*Watcher)

// WithIntervals overrides the fast and slow poll intervals.
func WithIntervals(fast, slow time.Duration) WatchOption {
	return func(w *Watcher) {
		if fast > 0 {
			w.fastInterval = fast
		}

		if slow > 0 {
			w.slowInterval = slow
		}
	}
}

// WithAlarms overrides the motion alarm and the extra observed alarms.
func WithAlarms(motion string, others ...string) WatchOption {
	return func(w *Watcher) {
		if motion != "" {
			w.motionAlarm = motion
		}

		w.otherAlarms = others
	}
}

// NewWatcher creates a watcher printing to out.
func NewWatcher(client Client, out io.Writer, opts ...WatchOption) *Watcher {
	w := &Watcher{
		client:       client,
		printer:      newPrinter(out),
		motionAlarm:  DefaultMotionAlarm,
		otherAlarms:  []string{DefaultTrafficAlarm},
		fastInterval: DefaultFastInterval,
		slowInterval: DefaultSlowInterval,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Run blocks until ctx is done or a stream fails.
func (w *Watcher) Run(ctx context.Context) error {
	ctx = logger.WithName(ctx, "watch")

	links, err := w.client.List(ctx)
	if err != nil {
		return err
	}

	var sensors []string

	for _, link := range links {
		if !link.Observable {
			sensors = append(sensors, link.Name)
		}
	}

	group, groupCtx := errgroup.WithContext(ctx)
	motion := make(chan bool, 1)

	group.Go(func() error {
		return w.client.Observe(groupCtx, w.motionAlarm, func(rep api.Representation) error {
			w.printer.print(rep)

			// Only the latest motion state matters.
			select {
			case <-motion:
			default:
			}

			motion <- rep.Payload == activePayload

			return nil
		})
	})

	for _, name := range w.otherAlarms {
		group.Go(func() error {
			return w.client.Observe(groupCtx, name, func(rep api.Representation) error {
				w.printer.print(rep)

				return nil
			})
		})
	}

	group.Go(func() error {
		return w.poll(groupCtx, sensors, motion)
	})

	if err = group.Wait(); err != nil && ctx.Err() == nil {
		return err
	}

	return nil
}

// poll reads every sensor at the current interval.
func (w *Watcher) poll(ctx context.Context, sensors []string, motion <-chan bool) error {
	interval := w.slowInterval

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case moving := <-motion:
			next := w.slowInterval
			if moving {
				next = w.fastInterval
			}

			if next != interval {
				interval = next
				ticker.Reset(interval)
				logger.InfoKV(ctx, "Poll interval changed", "interval", interval.String(), "motion", moving)
			}
		case <-ticker.C:
			for _, name := range sensors {
				rep, err := w.client.Get(ctx, name)
				if err != nil {
					return fmt.Errorf("poll %s: %w", name, err)
				}

				w.printer.print(rep)
			}
		}
	}
}
