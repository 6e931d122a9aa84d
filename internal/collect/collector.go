// Package collect normalizes raw upstream pool records into opportunities.
// This is the single parsing boundary: records that do not conform are
// dropped here and never reach downstream logic.
package collect

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/yourorg/solana-yield-optimizer/internal/fetch"
	"github.com/yourorg/solana-yield-optimizer/internal/model"
)

// Collector turns raw pool records from an injected fetch client into
// normalized, pre-scoring opportunities.
type Collector struct {
	client fetch.Client
}

// New creates a Collector backed by the given fetch client.
func New(client fetch.Client) *Collector {
	return &Collector{client: client}
}

// Collect fetches the raw dataset and maps each record into the
// opportunity shape. Malformed individual records are dropped, not fatal
// to the batch; an empty successful fetch yields an empty slice.
func (c *Collector) Collect(ctx context.Context) ([]model.Opportunity, error) {
	pools, err := c.client.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	opportunities := make([]model.Opportunity, 0, len(pools))
	dropped := 0
	for _, p := range pools {
		opp, ok := normalize(p)
		if !ok {
			dropped++
			continue
		}
		opportunities = append(opportunities, opp)
	}

	if dropped > 0 {
		logrus.WithFields(logrus.Fields{
			"dropped": dropped,
			"kept":    len(opportunities),
		}).Debug("Dropped malformed upstream records")
	}
	return opportunities, nil
}

// normalize converts a raw pool into an opportunity, reporting whether the
// record conforms. Upstream APY is reported in percent; it is converted to
// fraction form here so the rest of the pipeline deals with one unit.
func normalize(p model.Pool) (model.Opportunity, bool) {
	if p.Project == "" || p.PoolID == "" {
		return model.Opportunity{}, false
	}
	if p.APY < 0 || p.TVLUsd < 0 {
		return model.Opportunity{}, false
	}

	opp := model.NewOpportunity(p.Project, p.PoolID, p.Symbol, p.APY/100.0, p.TVLUsd)
	opp.Category = categorize(opp.Protocol)
	opp.AuditScore = auditScore(opp.Protocol)
	opp.Tokens = p.UnderlyingTokens
	return opp, true
}

// categorize assigns a coarse category from the protocol name.
func categorize(protocol string) string {
	switch {
	case containsAny(protocol, "raydium", "orca", "serum"):
		return "dex"
	case containsAny(protocol, "solend", "mango", "port", "marginfi", "kamino"):
		return "lending"
	case containsAny(protocol, "marinade", "lido", "jito"):
		return "staking"
	case containsAny(protocol, "drift", "zeta"):
		return "derivatives"
	default:
		return "other"
	}
}

// auditScore assigns a heuristic audit score from the protocol name.
// Unknown protocols get 0.5, not 0, since absence of data is not evidence
// of an unaudited protocol.
func auditScore(protocol string) float64 {
	switch {
	case containsAny(protocol, "orca", "raydium", "solend", "marinade", "jito"):
		return 0.9
	case containsAny(protocol, "mango", "port", "drift", "kamino"):
		return 0.7
	default:
		return 0.5
	}
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
