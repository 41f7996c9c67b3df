package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoop_ProcessesNotifications(t *testing.T) {
	f := newFixture(t, Options{})
	f.addCoherentCluster()
	f.addS3()

	loop := NewLoop(zerolog.Nop(), f.coord, 8)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	loop.Notify(ClusterChanged)
	loop.Notify(S3Changed)

	require.Eventually(t, func() bool {
		return f.store.Writes() > 0
	}, time.Second, 10*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestLoop_SurvivesHandlerErrors(t *testing.T) {
	f := newFixture(t, Options{})
	f.proxy.writeErr = assert.AnError

	loop := NewLoop(zerolog.Nop(), f.coord, 8)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	loop.Notify(ProxyReady)
	loop.Notify(ProxyReady)

	// The loop keeps draining after handler errors.
	require.Eventually(t, func() bool {
		return f.proxy.WriteCalls() >= 2
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done
}
