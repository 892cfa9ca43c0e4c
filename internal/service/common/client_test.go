//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	api "github.com/oshokin/sensor-node/internal/api/grpc/resource"
)

// TestDial_ValidatesAddress verifies that Dial rejects empty addresses.
func TestDial_ValidatesAddress(t *testing.T) {
	t.Parallel()

	c, err := Dial(context.Background(), "")
	require.Error(t, err)
	require.Nil(t, c)
}

// TestDial_AppliesOptions checks that options are applied before the connection is created.
func TestDial_AppliesOptions(t *testing.T) {
	t.Parallel()

	c, err := Dial(context.Background(), "127.0.0.1:5683", WithCallTimeout(time.Second), WithUserAgent("tester@host"))
	require.NoError(t, err)

	defer func() { require.NoError(t, c.Close()) }()

	require.Equal(t, time.Second, c.callTimeout)
	require.Equal(t, "tester@host", c.userAgent)
}

// TestClient_callContext checks timeout vs cancel-only behavior of callContext.
func TestClient_callContext(t *testing.T) {
	t.Parallel()

	c := &Client{
		callTimeout: 0,
	}

	ctx, cancel := c.callContext(context.Background())
	cancel()

	require.NotNil(t, ctx)

	c.callTimeout = 10 * time.Millisecond

	ctx, cancel = c.callContext(context.Background())
	defer cancel()

	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	require.WithinDuration(t, time.Now().Add(10*time.Millisecond), deadline, 30*time.Millisecond)
}

// TestClient_RequiresResource asserts that empty resource names are rejected locally.
func TestClient_RequiresResource(t *testing.T) {
	t.Parallel()

	c := new(Client)

	_, err := c.Get(context.Background(), "")
	require.ErrorIs(t, err, errResourceRequired)

	err = c.Observe(context.Background(), "", func(api.Representation) error { return nil })
	require.ErrorIs(t, err, errResourceRequired)

	require.NoError(t, (*Client)(nil).Close())
}
