package integration

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/sensor-node/internal/service/observer"
)

// TestObserver_Commands runs the observer commands against a live node.
func TestObserver_Commands(t *testing.T) {
	t.Parallel()

	tn := startNode(t)
	ctx := context.Background()

	var list bytes.Buffer

	require.NoError(t, observer.RunList(ctx, &observer.Options{ConfigPath: tn.configPath, Output: &list}))
	require.Contains(t, list.String(), "my_res/alarm_traffic")

	var get bytes.Buffer

	require.NoError(t, observer.RunGet(ctx, &observer.Options{ConfigPath: tn.configPath, Output: &get}, "sim_temperature"))
	require.Contains(t, get.String(), "my_res/sim_temperature 3")

	watchCtx, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer cancel()

	var watch bytes.Buffer

	err := observer.RunWatch(watchCtx,
		&observer.Options{ConfigPath: tn.configPath, NodeAddress: tn.grpcAddress, Output: &watch},
		observer.WithIntervals(50*time.Millisecond, 100*time.Millisecond))
	require.NoError(t, err)
	require.Contains(t, watch.String(), "my_res/alarm_accel")
	require.Contains(t, watch.String(), "my_res/sim_light")
}
