package engine

import (
	"math"
	"time"
)

// computeBackoff returns the delay before retry number attempt (1-based)
// using exponential growth capped at MaxBackoff, with full jitter so
// concurrent retries spread out.
func (e *Engine) computeBackoff(attempt int) time.Duration {
	if e.cfg.BaseBackoff <= 0 || attempt < 1 {
		return 0
	}

	multiplier := math.Pow(2, float64(attempt-1))
	raw := time.Duration(float64(e.cfg.BaseBackoff) * multiplier)
	if raw <= 0 || raw > e.cfg.MaxBackoff {
		raw = e.cfg.MaxBackoff
	}

	return e.fullJitter(raw)
}

func (e *Engine) fullJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}

	e.randMu.Lock()
	defer e.randMu.Unlock()

	return time.Duration(e.rnd.Int63n(int64(max) + 1))
}

// setCooldown blocks publish attempts for the request until after d.
func (e *Engine) setCooldown(requestID string, d time.Duration) {
	e.cooldownMu.Lock()
	defer e.cooldownMu.Unlock()
	e.cooldowns[requestID] = e.now().Add(d)
}

// coolingDown reports whether the request is still inside its backoff
// window, pruning the entry once the window has passed.
func (e *Engine) coolingDown(requestID string) bool {
	e.cooldownMu.Lock()
	defer e.cooldownMu.Unlock()
	until, ok := e.cooldowns[requestID]
	if !ok {
		return false
	}
	if e.now().Before(until) {
		return true
	}
	delete(e.cooldowns, requestID)
	return false
}

func (e *Engine) clearCooldown(requestID string) {
	e.cooldownMu.Lock()
	defer e.cooldownMu.Unlock()
	delete(e.cooldowns, requestID)
}
