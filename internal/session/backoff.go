package session

import (
	"math/rand"
	"time"
)

// NextBackoffDelay returns the wait before reconnect attempt n (1-based).
// The base grows geometrically from InitialDelay and never exceeds MaxDelay.
// With Jitter the result is drawn from [base/2, base]; a nil rng yields base.
func NextBackoffDelay(cfg BackoffConfig, n int, rng *rand.Rand) time.Duration {
	base := cfg.InitialDelay
	if base <= 0 {
		return 0
	}
	growth := cfg.Multiplier
	if growth < 1 {
		growth = 1
	}
	for i := 1; i < n; i++ {
		if cfg.MaxDelay > 0 && base >= cfg.MaxDelay {
			break
		}
		base = time.Duration(float64(base) * growth)
	}
	if cfg.MaxDelay > 0 && base > cfg.MaxDelay {
		base = cfg.MaxDelay
	}
	if !cfg.Jitter || rng == nil {
		return base
	}
	half := base / 2
	return half + time.Duration(rng.Int63n(int64(base-half)+1))
}
