// Package circuitbreaker protects the pipeline against implausible
// upstream datasets: absurd yields, drastic market swings, or a source
// that suddenly reports almost nothing.
package circuitbreaker

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourorg/solana-yield-optimizer/internal/model"
)

// State represents the current state of the circuit breaker
type State int

// Circuit breaker states
const (
	StateClosed   State = iota // Normal operation
	StateOpen                  // Tripped, datasets rejected
	StateHalfOpen              // Testing if the upstream has recovered
)

// Thresholds defines the limits that will trigger the circuit breaker
type Thresholds struct {
	// MaxAPY is the hard ceiling for any single record's APY as a
	// decimal fraction (e.g. 10.0 for 1000%)
	MaxAPY float64 `json:"max_apy"`

	// MaxTVLChange is the maximum allowed relative change in total TVL
	// between consecutive datasets (e.g. 0.5 for 50%)
	MaxTVLChange float64 `json:"max_tvl_change"`

	// MinRecords is the minimum dataset size considered sane
	MinRecords int `json:"min_records"`
}

// CircuitBreaker evaluates incoming datasets against the thresholds and
// keeps the last good dataset as a fallback while open.
type CircuitBreaker struct {
	thresholds Thresholds

	state State

	// Timestamp of the last trip
	lastTrip time.Time

	// Duration before an auto-recovery attempt
	resetDelay time.Duration

	mu sync.RWMutex

	// Last dataset that passed all checks
	lastGood []model.Opportunity

	// Total TVL of the last good dataset, for swing detection
	lastTotalTVL float64

	// Consecutive successful checks while half-open
	successCount int

	// Successful checks required to close the circuit again
	successThreshold int
}

// New creates a new CircuitBreaker with the provided thresholds
func New(t Thresholds) *CircuitBreaker {
	return &CircuitBreaker{
		thresholds:       t,
		state:            StateClosed,
		resetDelay:       5 * time.Minute,
		successThreshold: 3,
	}
}

// WithResetDelay sets a custom reset delay and returns the circuit breaker
func (cb *CircuitBreaker) WithResetDelay(delay time.Duration) *CircuitBreaker {
	cb.resetDelay = delay
	return cb
}

// WithSuccessThreshold sets the number of successful checks needed to close the circuit
func (cb *CircuitBreaker) WithSuccessThreshold(threshold int) *CircuitBreaker {
	cb.successThreshold = threshold
	return cb
}

// Check evaluates a freshly collected dataset. It returns an error when
// the circuit is open or the dataset violates a threshold; in both cases
// the caller should fall back to LastGood.
func (cb *CircuitBreaker) Check(opportunities []model.Opportunity) error {
	cb.mu.RLock()
	state := cb.state
	lastTripTime := cb.lastTrip
	cb.mu.RUnlock()

	if state == StateOpen {
		if time.Since(lastTripTime) > cb.resetDelay {
			cb.transitionToHalfOpen()
		} else {
			return errors.New("circuit breaker open: dataset protection engaged")
		}
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if len(opportunities) < cb.thresholds.MinRecords {
		reason := fmt.Sprintf("dataset too small: got %d records, need %d",
			len(opportunities), cb.thresholds.MinRecords)
		cb.trip(reason)
		return errors.New(reason)
	}

	var totalTVL float64
	for _, o := range opportunities {
		if o.APY > cb.thresholds.MaxAPY {
			reason := fmt.Sprintf("APY exceeds maximum threshold: %f > %f (pool %s)",
				o.APY, cb.thresholds.MaxAPY, o.PoolID)
			cb.trip(reason)
			return errors.New(reason)
		}
		totalTVL += o.TVL
	}

	// Compare total TVL against the previous good dataset; a drastic
	// swing usually means broken upstream data, not a market move.
	if cb.lastTotalTVL > 1.0 {
		changeRatio := math.Abs(totalTVL-cb.lastTotalTVL) / cb.lastTotalTVL
		if changeRatio > cb.thresholds.MaxTVLChange {
			reason := fmt.Sprintf("TVL change too drastic: %.2f%% (threshold: %.2f%%)",
				changeRatio*100, cb.thresholds.MaxTVLChange*100)
			cb.trip(reason)
			return errors.New(reason)
		}
	}

	logrus.Debug("Circuit breaker checks passed")
	cb.lastGood = opportunities
	cb.lastTotalTVL = totalTVL

	if cb.state == StateHalfOpen {
		cb.successCount++
		if cb.successCount >= cb.successThreshold {
			cb.state = StateClosed
			cb.successCount = 0
			logrus.Info("Circuit breaker closed: upstream has recovered")
		}
	}

	return nil
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreaker) GetState() State {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// Reset forcibly resets the circuit breaker to closed state
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.successCount = 0
	logrus.Info("Circuit breaker manually reset to closed state")
}

// LastGood returns a copy of the most recent dataset that passed all
// checks, or nil when none exists yet.
func (cb *CircuitBreaker) LastGood() []model.Opportunity {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	if cb.lastGood == nil {
		return nil
	}
	out := make([]model.Opportunity, len(cb.lastGood))
	copy(out, cb.lastGood)
	return out
}

// transitionToHalfOpen changes the circuit state to half-open for testing recovery
func (cb *CircuitBreaker) transitionToHalfOpen() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateOpen {
		cb.state = StateHalfOpen
		cb.successCount = 0
		logrus.Info("Circuit breaker half-open: testing upstream recovery")
	}
}

// trip opens the circuit and records the trip time. Caller holds cb.mu.
func (cb *CircuitBreaker) trip(reason string) {
	cb.state = StateOpen
	cb.lastTrip = time.Now()
	logrus.Warnf("Circuit breaker tripped: %s", reason)
}
