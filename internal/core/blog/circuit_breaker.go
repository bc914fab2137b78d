package blog

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// circuitState represents the state of a circuit breaker
type circuitState int

const (
	stateClosed   circuitState = iota // Normal operation
	stateOpen                         // Upstream failing, fail fast
	stateHalfOpen                     // Testing if upstream recovered
)

func (s circuitState) String() string {
	switch s {
	case stateOpen:
		return "open"
	case stateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// CircuitStats describes the breaker state of one upstream host.
type CircuitStats struct {
	State       string    `json:"state"`
	Failures    int       `json:"failures"`
	LastFailure time.Time `json:"last_failure"`
}

// circuitBreaker tracks consecutive transient failures per upstream host and
// stops calling a host that keeps failing.
type circuitBreaker struct {
	failures         map[string]int
	lastFailure      map[string]time.Time
	state            map[string]circuitState
	lastStateLog     map[string]time.Time
	now              func() time.Time
	failureThreshold int
	openDuration     time.Duration
	mu               sync.Mutex
}

// newCircuitBreaker creates a circuit breaker with default settings
func newCircuitBreaker() *circuitBreaker {
	return &circuitBreaker{
		failureThreshold: 3,               // Open after 3 consecutive failures
		openDuration:     5 * time.Minute, // Keep open for 5 minutes
		failures:         make(map[string]int),
		lastFailure:      make(map[string]time.Time),
		state:            make(map[string]circuitState),
		lastStateLog:     make(map[string]time.Time),
		now:              time.Now,
	}
}

// canAttempt reports whether host may be called. Once the open period has
// elapsed the circuit goes half-open and lets a probe through.
func (cb *circuitBreaker) canAttempt(host string) (bool, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.getState(host) {
	case stateOpen:
		lastFail := cb.lastFailure[host]
		if cb.now().Sub(lastFail) > cb.openDuration {
			cb.state[host] = stateHalfOpen
			cb.logStateChange(host, stateHalfOpen)
			return true, nil
		}
		return false, fmt.Errorf(
			"circuit breaker open for upstream '%s' (failures: %d, next retry: %s)",
			host,
			cb.failures[host],
			lastFail.Add(cb.openDuration).Format("15:04:05"),
		)
	default:
		return true, nil
	}
}

// recordSuccess resets the failure count of host.
func (cb *circuitBreaker) recordSuccess(host string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	oldState := cb.getState(host)

	delete(cb.failures, host)
	delete(cb.lastFailure, host)
	cb.state[host] = stateClosed

	if oldState != stateClosed {
		cb.logStateChange(host, stateClosed)
	}
}

// recordFailure counts a transient failure of host, opening the circuit at
// the threshold. A failed half-open probe reopens it immediately.
func (cb *circuitBreaker) recordFailure(host string, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures[host]++
	cb.lastFailure[host] = cb.now()
	failCount := cb.failures[host]
	oldState := cb.getState(host)

	if failCount >= cb.failureThreshold || oldState == stateHalfOpen {
		cb.state[host] = stateOpen
		if oldState != stateOpen {
			slog.Warn("[UPSTREAM-CIRCUIT] opening circuit",
				"host", host,
				"failures", failCount,
				"error", err,
			)
			cb.lastStateLog[host] = cb.now()
		}
		return
	}

	slog.Info("[UPSTREAM-CIRCUIT] upstream failure",
		"host", host,
		"failures", failCount,
		"threshold", cb.failureThreshold,
		"error", err,
	)
}

// getState returns the current state (must be called with lock held)
func (cb *circuitBreaker) getState(host string) circuitState {
	if state, exists := cb.state[host]; exists {
		return state
	}
	return stateClosed
}

// logStateChange logs state transitions (must be called with lock held).
// Debounced to once per minute per host.
func (cb *circuitBreaker) logStateChange(host string, newState circuitState) {
	lastLog, exists := cb.lastStateLog[host]
	if exists && cb.now().Sub(lastLog) < time.Minute {
		return
	}

	slog.Info("[UPSTREAM-CIRCUIT] circuit state changed",
		"host", host,
		"state", newState.String(),
	)
	cb.lastStateLog[host] = cb.now()
}

// stats returns the breaker state of every host with recorded activity.
func (cb *circuitBreaker) stats() map[string]CircuitStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	hosts := make(map[string]bool)
	for host := range cb.state {
		hosts[host] = true
	}
	for host := range cb.failures {
		hosts[host] = true
	}

	stats := make(map[string]CircuitStats, len(hosts))
	for host := range hosts {
		stats[host] = CircuitStats{
			State:       cb.getState(host).String(),
			Failures:    cb.failures[host],
			LastFailure: cb.lastFailure[host],
		}
	}
	return stats
}
