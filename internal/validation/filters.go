// Package validation provides statistical outlier filtering for yield data.
package validation

import (
	"math"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/yourorg/solana-yield-optimizer/internal/model"
)

// Options holds configuration for outlier filtering
type Options struct {
	// MADMultiplier defines how many scaled median absolute deviations
	// an APY may sit from the batch median before it is discarded
	MADMultiplier float64

	// MaxAPY is the absolute sanity ceiling as a decimal fraction;
	// records above it are discarded even when the batch itself is
	// degenerate (e.g. every value huge)
	MaxAPY float64

	// MinSampleCount is the smallest batch worth filtering
	// statistically; smaller batches pass through unchanged
	MinSampleCount int
}

// DefaultOptions returns sensible defaults for outlier filtering
func DefaultOptions() Options {
	return Options{
		MADMultiplier:  3.5,
		MaxAPY:         10.0, // 1000% as decimal
		MinSampleCount: 2,
	}
}

// madScale makes the median absolute deviation a consistent estimator of
// the standard deviation under normality.
const madScale = 1.4826

// FilterOutliers removes records with implausible APY values using the
// median and median absolute deviation of the batch. Deterministic for
// the same input multiset.
func FilterOutliers(opportunities []model.Opportunity) []model.Opportunity {
	return FilterOutliersWithOptions(opportunities, DefaultOptions())
}

// FilterOutliersWithOptions removes outliers with custom options.
func FilterOutliersWithOptions(opportunities []model.Opportunity, opts Options) []model.Opportunity {
	if len(opportunities) < opts.MinSampleCount {
		return opportunities
	}

	apys := make([]float64, len(opportunities))
	for i, o := range opportunities {
		apys[i] = o.APY
	}

	med := median(apys)
	deviations := make([]float64, len(apys))
	for i, v := range apys {
		deviations[i] = math.Abs(v - med)
	}
	spread := madScale * median(deviations)

	filtered := make([]model.Opportunity, 0, len(opportunities))
	for _, o := range opportunities {
		if o.APY > opts.MaxAPY {
			logOutlier(o, med, "above absolute ceiling")
			continue
		}
		// A zero spread means at least half the batch shares the
		// median; only the ceiling applies then.
		if spread > 0 && math.Abs(o.APY-med)/spread > opts.MADMultiplier {
			logOutlier(o, med, "deviates from batch median")
			continue
		}
		filtered = append(filtered, o)
	}

	if removed := len(opportunities) - len(filtered); removed > 0 {
		logrus.WithFields(logrus.Fields{
			"total":   len(opportunities),
			"removed": removed,
			"median":  med,
			"spread":  spread,
		}).Debug("Outlier filtering complete")
	}
	return filtered
}

// median returns the middle value of values without mutating the input.
func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}

func logOutlier(o model.Opportunity, med float64, reason string) {
	logrus.WithFields(logrus.Fields{
		"protocol": o.Protocol,
		"pool_id":  o.PoolID,
		"apy":      o.APY,
		"median":   med,
	}).Info("Filtered outlier record: " + reason)
}
