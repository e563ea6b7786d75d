package gateway

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMicroBreakerOpensAfterThreshold(t *testing.T) {
	b := NewMicroBreaker(3, time.Minute)

	assert.True(t, b.Ready())
	b.OnFailure()
	b.OnFailure()
	assert.True(t, b.Ready(), "still closed below the threshold")

	b.OnFailure()
	assert.False(t, b.Ready(), "opens on the third consecutive failure")
	assert.False(t, b.TryAcquire())
}

func TestMicroBreakerHalfOpenProbe(t *testing.T) {
	b := NewMicroBreaker(1, 10*time.Millisecond)
	b.OnFailure()
	assert.False(t, b.TryAcquire())

	time.Sleep(20 * time.Millisecond)

	// one probe allowed, concurrent acquires rejected until it resolves
	assert.True(t, b.TryAcquire())
	assert.False(t, b.TryAcquire())

	b.OnSuccess()
	assert.True(t, b.Ready())
	assert.True(t, b.TryAcquire())
}

func TestMicroBreakerFailedProbeReopens(t *testing.T) {
	b := NewMicroBreaker(1, 10*time.Millisecond)
	b.OnFailure()

	time.Sleep(20 * time.Millisecond)
	assert.True(t, b.TryAcquire())

	b.OnFailure()
	assert.False(t, b.TryAcquire(), "failed probe reopens the breaker")
}

func TestMicroBreakerSuccessResetsCount(t *testing.T) {
	b := NewMicroBreaker(2, time.Minute)
	b.OnFailure()
	b.OnSuccess()
	b.OnFailure()
	assert.True(t, b.Ready(), "success clears the consecutive-failure count")
}
