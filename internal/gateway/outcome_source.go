package gateway

import (
	"math/rand"
	"sync"

	"github.com/jmehdipour/reminder-gateway/internal/classify"
	"github.com/jmehdipour/reminder-gateway/internal/config"
)

// OutcomeSource supplies the synthesized outcome the dispatcher applies
// when the voice gateway is unavailable, keeping the pipeline exercisable
// without live telephony. The production default always reports a
// retryable failure so a gateway outage is never masked as success.
type OutcomeSource interface {
	Draw() classify.CallOutcome
}

type failSource struct{}

func (failSource) Draw() classify.CallOutcome {
	return classify.CallOutcome{Class: classify.ClassRetryable, Tag: "gateway_unavailable"}
}

// FailOnly returns the production fallback source.
func FailOnly() OutcomeSource { return failSource{} }

// simulatedSource draws from a seeded generator; dev and test mode only.
type simulatedSource struct {
	mu          sync.Mutex
	rng         *rand.Rand
	successRate float64
}

func Simulated(seed int64, successRate float64) OutcomeSource {
	if successRate < 0 || successRate > 1 {
		successRate = 0.7
	}
	return &simulatedSource{
		rng:         rand.New(rand.NewSource(seed)),
		successRate: successRate,
	}
}

func (s *simulatedSource) Draw() classify.CallOutcome {
	s.mu.Lock()
	v := s.rng.Float64()
	s.mu.Unlock()

	if v < s.successRate {
		return classify.CallOutcome{Class: classify.ClassSuccess, Tag: "simulated_completed"}
	}
	return classify.CallOutcome{Class: classify.ClassRetryable, Tag: "simulated_no_answer"}
}

// SourceFromConfig picks the fallback strategy. Unknown modes fall back to
// fail-only.
func SourceFromConfig(cfg config.FallbackConfig) OutcomeSource {
	if cfg.Mode == "simulate" {
		return Simulated(cfg.Seed, cfg.SuccessRate)
	}
	return FailOnly()
}
