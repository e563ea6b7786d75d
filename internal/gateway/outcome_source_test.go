package gateway

import (
	"testing"

	"github.com/jmehdipour/reminder-gateway/internal/classify"
	"github.com/jmehdipour/reminder-gateway/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestFailOnlyAlwaysRetryable(t *testing.T) {
	src := FailOnly()
	for i := 0; i < 10; i++ {
		out := src.Draw()
		assert.Equal(t, classify.ClassRetryable, out.Class)
		assert.Equal(t, "gateway_unavailable", out.Tag)
	}
}

func TestSimulatedIsDeterministicPerSeed(t *testing.T) {
	a := Simulated(42, 0.7)
	b := Simulated(42, 0.7)

	for i := 0; i < 50; i++ {
		assert.Equal(t, a.Draw(), b.Draw())
	}
}

func TestSimulatedRespectsRateExtremes(t *testing.T) {
	always := Simulated(1, 1.0)
	never := Simulated(1, 0.0)

	for i := 0; i < 20; i++ {
		assert.Equal(t, classify.ClassSuccess, always.Draw().Class)
		assert.Equal(t, classify.ClassRetryable, never.Draw().Class)
	}
}

func TestSourceFromConfig(t *testing.T) {
	src := SourceFromConfig(config.FallbackConfig{Mode: "fail"})
	assert.Equal(t, classify.ClassRetryable, src.Draw().Class)

	src = SourceFromConfig(config.FallbackConfig{Mode: "simulate", Seed: 7, SuccessRate: 1.0})
	assert.Equal(t, classify.ClassSuccess, src.Draw().Class)

	// unknown mode falls back to fail-only
	src = SourceFromConfig(config.FallbackConfig{Mode: "chaos"})
	assert.Equal(t, "gateway_unavailable", src.Draw().Tag)
}
