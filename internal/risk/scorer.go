// Package risk assigns composite risk scores to yield opportunities.
package risk

import (
	"strings"

	"github.com/yourorg/solana-yield-optimizer/internal/model"
)

// Weights defines the share of each sub-score in the composite risk
// score. The four weights must sum to 1.
type Weights struct {
	Protocol float64
	TVL      float64
	APY      float64
	Audit    float64
}

// DefaultWeights returns the standard scoring weights.
func DefaultWeights() Weights {
	return Weights{
		Protocol: 0.35,
		TVL:      0.25,
		APY:      0.30,
		Audit:    0.10,
	}
}

// Thresholds on the composite score mapping to discrete risk levels, and
// the saturation points of the sub-scores. Policy values, not mechanism.
const (
	// LowRiskThreshold is the exclusive upper bound for Low Risk
	LowRiskThreshold = 0.33
	// MediumRiskThreshold is the exclusive upper bound for Medium Risk
	MediumRiskThreshold = 0.66

	// TVLSaturation is the TVL in USD above which more liquidity no
	// longer reduces the score
	TVLSaturation = 10_000_000

	// UnknownProtocolReputation is the fixed low reputation assigned to
	// protocols missing from the reputation table
	UnknownProtocolReputation = 0.40
)

// protocolReputation maps known protocols to reputation in [0,1],
// higher is safer. Matching is by substring so pool variants like
// "raydium-clmm" resolve to their parent protocol.
var protocolReputation = map[string]float64{
	"raydium":  0.95,
	"orca":     0.95,
	"solend":   0.90,
	"marinade": 0.90,
	"jito":     0.90,
	"mango":    0.80,
	"port":     0.80,
	"kamino":   0.80,
	"drift":    0.75,
	"saber":    0.75,
	"marginfi": 0.75,
	"sunny":    0.70,
}

// Scorer computes composite risk scores. It is a pure function of its
// inputs; the same record always yields the same score.
type Scorer struct {
	weights Weights
}

// NewScorer creates a Scorer with the default weights.
func NewScorer() *Scorer {
	return &Scorer{weights: DefaultWeights()}
}

// NewScorerWithWeights creates a Scorer with custom weights.
func NewScorerWithWeights(w Weights) *Scorer {
	return &Scorer{weights: w}
}

// Score returns a copy of the record with RiskScore and RiskLevel
// populated. The input is never mutated.
func (s *Scorer) Score(o model.Opportunity) model.Opportunity {
	score := s.weights.Protocol*protocolRisk(o.Protocol) +
		s.weights.TVL*tvlRisk(o.TVL) +
		s.weights.APY*apyRisk(o.APY) +
		s.weights.Audit*(1-clamp01(o.AuditScore))

	scored := o
	scored.RiskScore = clamp01(score)
	scored.RiskLevel = levelFor(scored.RiskScore)
	return scored
}

// ScoreAll scores a batch, returning a new slice.
func (s *Scorer) ScoreAll(opportunities []model.Opportunity) []model.Opportunity {
	scored := make([]model.Opportunity, len(opportunities))
	for i, o := range opportunities {
		scored[i] = s.Score(o)
	}
	return scored
}

// protocolRisk converts table reputation into a risk contribution.
func protocolRisk(protocol string) float64 {
	lower := strings.ToLower(protocol)
	for known, reputation := range protocolReputation {
		if strings.Contains(lower, known) {
			return 1 - reputation
		}
	}
	return 1 - UnknownProtocolReputation
}

// tvlRisk decreases monotonically with TVL and saturates at zero above
// the saturation threshold.
func tvlRisk(tvl float64) float64 {
	if tvl <= 0 {
		return 1
	}
	if tvl >= TVLSaturation {
		return 0
	}
	return 1 - tvl/TVLSaturation
}

// apyRisk increases monotonically with APY (fraction form). Yields above
// 100% get a steep penalty; nothing sustains that.
func apyRisk(apy float64) float64 {
	switch {
	case apy < 0.05:
		return 0.05
	case apy < 0.15:
		return 0.15
	case apy < 0.50:
		return 0.35
	case apy < 1.00:
		return 0.60
	case apy < 2.00:
		return 0.85
	default:
		return 1.0
	}
}

// levelFor maps a composite score to its discrete risk level.
func levelFor(score float64) model.RiskLevel {
	switch {
	case score < LowRiskThreshold:
		return model.RiskLow
	case score < MediumRiskThreshold:
		return model.RiskMedium
	default:
		return model.RiskHigh
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
