// Package model defines the core data structures shared across the yield optimizer.
package model

import (
	"strings"
	"time"
)

// RiskLevel is the discrete risk classification assigned by the risk scorer.
type RiskLevel string

// Risk levels, ordered from safest to riskiest.
const (
	RiskLow    RiskLevel = "Low Risk"
	RiskMedium RiskLevel = "Medium Risk"
	RiskHigh   RiskLevel = "High Risk"
)

// RiskTolerance is the caller-declared willingness to accept risk.
type RiskTolerance string

// Supported risk tolerances.
const (
	Conservative RiskTolerance = "Conservative"
	Moderate     RiskTolerance = "Moderate"
	Aggressive   RiskTolerance = "Aggressive"
)

// TimeHorizon is the caller-declared investment horizon.
type TimeHorizon string

// Supported time horizons.
const (
	HorizonShort  TimeHorizon = "short"
	HorizonMedium TimeHorizon = "medium"
	HorizonLong   TimeHorizon = "long"
)

// Pool is a raw upstream pool record as returned by the yields aggregator.
// This is the untyped seam between the external API and the strict
// Opportunity shape; downstream code never sees it.
type Pool struct {
	Project          string   `json:"project"`
	PoolID           string   `json:"pool"`
	Symbol           string   `json:"symbol"`
	Chain            string   `json:"chain"`
	APY              float64  `json:"apy"`
	TVLUsd           float64  `json:"tvlUsd"`
	UnderlyingTokens []string `json:"underlyingTokens"`
	URL              string   `json:"url"`
}

// Opportunity represents a single normalized yield-farming opportunity.
// Records produced by the collector carry no risk fields; those are set
// only on the copy returned by the risk scorer.
type Opportunity struct {
	// Protocol is the lower-cased protocol identifier, never empty
	Protocol string `json:"protocol"`

	// PoolID is the opaque upstream pool identifier
	PoolID string `json:"pool_id"`

	// Pair is the human-readable asset pair label; may be empty for
	// single-asset vaults
	Pair string `json:"pair"`

	// APY is the annual percentage yield as a decimal fraction,
	// e.g. 0.15 for 15%
	APY float64 `json:"apy"`

	// TVL is the total value locked in USD
	TVL float64 `json:"tvl"`

	// Category is the protocol category tag (dex, lending, ...)
	Category string `json:"category"`

	// Tokens lists the underlying token addresses, if reported upstream
	Tokens []string `json:"tokens,omitempty"`

	// AuditScore is in [0,1]; 0 means unaudited or unknown
	AuditScore float64 `json:"audit_score"`

	// CollectedAt is the Unix timestamp when this record was collected
	CollectedAt int64 `json:"collected_at"`

	// RiskScore is in [0,1], higher is riskier; set by the risk scorer
	RiskScore float64 `json:"risk_score,omitempty"`

	// RiskLevel is derived from RiskScore via fixed thresholds
	RiskLevel RiskLevel `json:"risk_level,omitempty"`
}

// IsValid performs basic validation on a pre-scoring opportunity.
func (o Opportunity) IsValid() bool {
	return o.Protocol != "" &&
		o.PoolID != "" &&
		o.APY >= 0 &&
		o.TVL >= 0
}

// Scored reports whether the risk scorer has populated this record.
func (o Opportunity) Scored() bool {
	return o.RiskLevel != ""
}

// PortfolioRequest is a portfolio optimization request. Validation happens
// at the HTTP boundary; the optimizer assumes the invariants already hold.
type PortfolioRequest struct {
	InvestmentAmount float64       `json:"investment_amount"`
	RiskTolerance    RiskTolerance `json:"risk_tolerance"`
	TimeHorizon      TimeHorizon   `json:"time_horizon"`
}

// Validate checks the request invariants and returns a human-readable
// reason on failure.
func (r PortfolioRequest) Validate() (string, bool) {
	if r.InvestmentAmount <= 0 {
		return "investment_amount must be positive", false
	}
	switch r.RiskTolerance {
	case Conservative, Moderate, Aggressive:
	default:
		return "risk_tolerance must be one of Conservative, Moderate, Aggressive", false
	}
	switch r.TimeHorizon {
	case HorizonShort, HorizonMedium, HorizonLong:
	default:
		return "time_horizon must be one of short, medium, long", false
	}
	return "", true
}

// Allocation is a single position within an optimized portfolio.
type Allocation struct {
	Protocol string `json:"protocol"`
	PoolID   string `json:"pool_id"`
	Pair     string `json:"pair"`

	// Weight is the normalized portfolio share in (0,1]
	Weight float64 `json:"weight"`

	// Amount is Weight scaled by the requested investment amount, USD
	Amount float64 `json:"amount"`

	// ExpectedAPY is the opportunity APY backing this position
	ExpectedAPY float64 `json:"expected_apy"`

	RiskLevel RiskLevel `json:"risk_level"`
}

// NewOpportunity creates a pre-scoring opportunity with the current timestamp.
func NewOpportunity(protocol, poolID, pair string, apy, tvl float64) Opportunity {
	return Opportunity{
		Protocol:    strings.ToLower(protocol),
		PoolID:      poolID,
		Pair:        pair,
		APY:         apy,
		TVL:         tvl,
		CollectedAt: time.Now().Unix(),
	}
}
