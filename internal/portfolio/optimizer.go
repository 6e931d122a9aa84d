// Package portfolio derives risk-tolerance-aware allocations from a
// scored candidate pool.
package portfolio

import (
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/yourorg/solana-yield-optimizer/internal/model"
)

// DiversificationCap bounds the number of positions in one portfolio.
const DiversificationCap = 5

// admissibleLevels maps a risk tolerance to the risk levels it accepts.
var admissibleLevels = map[model.RiskTolerance]map[model.RiskLevel]bool{
	model.Conservative: {model.RiskLow: true},
	model.Moderate:     {model.RiskLow: true, model.RiskMedium: true},
	model.Aggressive:   {model.RiskLow: true, model.RiskMedium: true, model.RiskHigh: true},
}

// tvlFloor is the minimum TVL a candidate must carry per tolerance;
// stricter for Conservative callers.
var tvlFloor = map[model.RiskTolerance]float64{
	model.Conservative: 1_000_000,
	model.Moderate:     250_000,
	model.Aggressive:   50_000,
}

// Result is the outcome of one optimization run. An empty Allocations
// slice with a Reason is a valid result state, not an error.
type Result struct {
	Allocations []model.Allocation `json:"allocations"`

	// ExpectedAPY is the weighted average APY of the portfolio
	ExpectedAPY float64 `json:"expected_apy"`

	// AnnualYield is ExpectedAPY scaled by the investment amount, USD
	AnnualYield float64 `json:"annual_yield"`

	// Reason explains an empty result
	Reason string `json:"reason,omitempty"`
}

// Empty reports whether the optimizer found no suitable opportunities.
func (r Result) Empty() bool {
	return len(r.Allocations) == 0
}

// Optimize selects and weights a diversified subset of candidates for the
// request. Candidates must already be scored; unscored records are
// ignored. Never fails: an empty admissible set produces an empty Result.
func Optimize(req model.PortfolioRequest, candidates []model.Opportunity) Result {
	admissible := filterAdmissible(req.RiskTolerance, candidates)
	if len(admissible) == 0 {
		return Result{
			Allocations: []model.Allocation{},
			Reason:      "no opportunities within the requested risk tolerance",
		}
	}

	rankCandidates(admissible)
	selected := diversify(admissible)

	var totalScore float64
	for _, o := range selected {
		totalScore += rankScore(o)
	}
	if totalScore <= 0 {
		// Every admissible candidate has zero risk-adjusted return;
		// nothing worth allocating to.
		return Result{
			Allocations: []model.Allocation{},
			Reason:      "no opportunities with positive risk-adjusted return",
		}
	}

	result := Result{Allocations: make([]model.Allocation, 0, len(selected))}
	for _, o := range selected {
		weight := rankScore(o) / totalScore
		result.Allocations = append(result.Allocations, model.Allocation{
			Protocol:    o.Protocol,
			PoolID:      o.PoolID,
			Pair:        o.Pair,
			Weight:      weight,
			Amount:      weight * req.InvestmentAmount,
			ExpectedAPY: o.APY,
			RiskLevel:   o.RiskLevel,
		})
		result.ExpectedAPY += weight * o.APY
	}
	result.AnnualYield = result.ExpectedAPY * req.InvestmentAmount

	logrus.WithFields(logrus.Fields{
		"tolerance":    req.RiskTolerance,
		"candidates":   len(candidates),
		"admissible":   len(admissible),
		"positions":    len(result.Allocations),
		"expected_apy": result.ExpectedAPY,
	}).Debug("Portfolio optimized")
	return result
}

// filterAdmissible keeps scored candidates whose risk level and TVL meet
// the tolerance policy.
func filterAdmissible(tolerance model.RiskTolerance, candidates []model.Opportunity) []model.Opportunity {
	allowed := admissibleLevels[tolerance]
	floor := tvlFloor[tolerance]

	admissible := make([]model.Opportunity, 0, len(candidates))
	for _, o := range candidates {
		if !o.Scored() || !allowed[o.RiskLevel] || o.TVL < floor {
			continue
		}
		admissible = append(admissible, o)
	}
	return admissible
}

// rankScore is the risk-adjusted return used for both ranking and
// weighting: raw APY scaled down by the composite risk.
func rankScore(o model.Opportunity) float64 {
	return o.APY * (1 - o.RiskScore)
}

// rankCandidates sorts by risk-adjusted return descending; ties resolve
// by higher TVL, then protocol name, so results are deterministic.
func rankCandidates(candidates []model.Opportunity) {
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if sa, sb := rankScore(a), rankScore(b); sa != sb {
			return sa > sb
		}
		if a.TVL != b.TVL {
			return a.TVL > b.TVL
		}
		return a.Protocol < b.Protocol
	})
}

// diversify picks the top candidates with at most one selection per
// protocol. Only when fewer distinct protocols than the cap exist does a
// second pass fill the remaining slots with repeat protocols.
func diversify(ranked []model.Opportunity) []model.Opportunity {
	selected := make([]model.Opportunity, 0, DiversificationCap)
	taken := make(map[int]bool)
	seen := make(map[string]bool)
	for i, o := range ranked {
		if len(selected) == DiversificationCap {
			return selected
		}
		if seen[o.Protocol] {
			continue
		}
		seen[o.Protocol] = true
		taken[i] = true
		selected = append(selected, o)
	}

	for i, o := range ranked {
		if len(selected) == DiversificationCap {
			break
		}
		if !taken[i] {
			selected = append(selected, o)
		}
	}
	return selected
}
