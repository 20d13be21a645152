package failure

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type stubPeer string

func (s stubPeer) Address() string { return string(s) }

func TestDetector_MarkAliveResetsFailures(t *testing.T) {
	d := NewDetector(time.Second)

	for i := 0; i < FailThreshold; i++ {
		d.MarkFailure("peer1")
	}
	assert.True(t, d.IsFailed("peer1"))

	d.MarkAlive("peer1")
	assert.False(t, d.IsFailed("peer1"))
	assert.False(t, d.IsSuspected("peer1"))
}

func TestDetector_ThresholdProgression(t *testing.T) {
	d := NewDetector(time.Second)

	for i := 0; i < SuspectThreshold; i++ {
		d.MarkFailure("peer1")
	}
	assert.True(t, d.IsSuspected("peer1"))
	assert.False(t, d.IsFailed("peer1"))

	for i := SuspectThreshold; i < FailThreshold; i++ {
		d.MarkFailure("peer1")
	}
	assert.True(t, d.IsFailed("peer1"))
}

func TestDetector_UnknownPeerNotFailed(t *testing.T) {
	d := NewDetector(time.Second)
	assert.False(t, d.IsFailed("nobody"))
	assert.False(t, d.IsSuspected("nobody"))
}

func TestDetector_FailedPeers(t *testing.T) {
	d := NewDetector(time.Second)
	for i := 0; i < FailThreshold; i++ {
		d.MarkFailure("peer1")
	}
	d.MarkAlive("peer2")

	failed := d.FailedPeers()
	assert.Equal(t, []string{"peer1"}, failed)
}

func TestDetector_Forget(t *testing.T) {
	d := NewDetector(time.Second)
	d.MarkAlive("peer1")
	d.Forget("peer1")
	assert.False(t, d.IsFailed("peer1"))
	assert.False(t, d.IsSuspected("peer1"))
}

func TestDetector_ProbeWithNoFuncConfigured(t *testing.T) {
	d := NewDetector(time.Second)
	err := d.Probe(context.Background(), stubPeer("peer1"))
	assert.ErrorIs(t, err, ErrNoProbeFunc)
}

func TestDetector_ProbeSuccessMarksAlive(t *testing.T) {
	d := NewDetector(time.Second)
	for i := 0; i < FailThreshold; i++ {
		d.MarkFailure("peer1")
	}
	d.SetProbeFunc(func(ctx context.Context, addr string) error { return nil })

	err := d.Probe(context.Background(), stubPeer("peer1"))
	assert.NoError(t, err)
	assert.False(t, d.IsFailed("peer1"))
}

func TestDetector_ProbeFailureMarksFailure(t *testing.T) {
	d := NewDetector(time.Second)
	probeErr := errors.New("dial failed")
	d.SetProbeFunc(func(ctx context.Context, addr string) error { return probeErr })

	for i := 0; i < FailThreshold; i++ {
		err := d.Probe(context.Background(), stubPeer("peer1"))
		assert.ErrorIs(t, err, probeErr)
	}
	assert.True(t, d.IsFailed("peer1"))
}

func TestDetector_MarkDead(t *testing.T) {
	d := NewDetector(time.Second)
	assert.False(t, d.IsFailed("peer1"))

	d.MarkDead("peer1")
	assert.True(t, d.IsFailed("peer1"))
}

func TestDetector_EvictOlderThan(t *testing.T) {
	d := NewDetector(time.Second)
	d.MarkAlive("peer1")

	// a window longer than the time since the last probe keeps the entry.
	d.EvictOlderThan(time.Hour)
	d.mu.Lock()
	_, tracked := d.peers["peer1"]
	d.mu.Unlock()
	assert.True(t, tracked)

	// a zero window evicts anything not probed in the future.
	d.EvictOlderThan(0)
	d.mu.Lock()
	_, tracked = d.peers["peer1"]
	d.mu.Unlock()
	assert.False(t, tracked)
}
