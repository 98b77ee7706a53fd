package reconcile

import (
	"time"

	"github.com/Ramsey-B/clover/pkg/dedupe"
	"github.com/Ramsey-B/clover/pkg/matching"
)

// Config contains configuration for the reconciliation service.
type Config struct {
	MatchThreshold      float64       // Score a pair must exceed to match (default: 0.75)
	DedupeNameThreshold float64       // Name similarity above which same-type candidates collapse (default: 0.8)
	CreateWorkers       int           // Concurrent create calls (default: 4)
	CreateRateLimitRPS  float64       // Global create rate, <=0 disables (default: 0)
	LockTTL             time.Duration // Lead lock lifetime (default: 30s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MatchThreshold:      matching.DefaultMatchThreshold,
		DedupeNameThreshold: dedupe.DefaultNameThreshold,
		CreateWorkers:       4,
		LockTTL:             30 * time.Second,
	}
}
