// Package analytics computes market-wide summaries over scored datasets.
package analytics

import (
	"sort"

	"github.com/yourorg/solana-yield-optimizer/internal/model"
)

// tvlBands are the upper bounds (exclusive) of the TVL distribution
// buckets; the last band is open-ended.
var tvlBands = []struct {
	label string
	upper float64
}{
	{"<100k", 100_000},
	{"100k-1m", 1_000_000},
	{"1m-10m", 10_000_000},
	{"10m-100m", 100_000_000},
	{">=100m", 0}, // open-ended
}

// ProtocolStats aggregates opportunities for a single protocol.
type ProtocolStats struct {
	Count    int     `json:"count"`
	TotalTVL float64 `json:"total_tvl"`
}

// CategoryStats aggregates opportunities for a single category.
type CategoryStats struct {
	Count      int     `json:"count"`
	AverageAPY float64 `json:"average_apy"`
}

// Snapshot is a deterministic aggregation over one dataset.
type Snapshot struct {
	TotalOpportunities int                      `json:"total_opportunities"`
	TotalProtocols     int                      `json:"total_protocols"`
	TotalTVL           float64                  `json:"total_tvl"`
	AverageAPY         float64                  `json:"average_apy"`
	Protocols          map[string]ProtocolStats `json:"protocols"`
	TopProtocols       []string                 `json:"top_protocols"`
	Categories         map[string]CategoryStats `json:"categories"`
	TVLDistribution    map[string]int           `json:"tvl_distribution"`
}

// topProtocolCount bounds the TopProtocols ranking.
const topProtocolCount = 5

// Summarize computes a snapshot over the input. Empty input yields a
// snapshot with zero totals and empty maps, not an error.
func Summarize(opportunities []model.Opportunity) Snapshot {
	snapshot := Snapshot{
		TotalOpportunities: len(opportunities),
		Protocols:          make(map[string]ProtocolStats),
		Categories:         make(map[string]CategoryStats),
		TVLDistribution:    make(map[string]int),
		TopProtocols:       []string{},
	}
	for _, band := range tvlBands {
		snapshot.TVLDistribution[band.label] = 0
	}
	if len(opportunities) == 0 {
		return snapshot
	}

	var totalAPY float64
	categoryAPY := make(map[string]float64)

	for _, o := range opportunities {
		snapshot.TotalTVL += o.TVL
		totalAPY += o.APY

		p := snapshot.Protocols[o.Protocol]
		p.Count++
		p.TotalTVL += o.TVL
		snapshot.Protocols[o.Protocol] = p

		c := snapshot.Categories[o.Category]
		c.Count++
		snapshot.Categories[o.Category] = c
		categoryAPY[o.Category] += o.APY

		snapshot.TVLDistribution[bandFor(o.TVL)]++
	}

	snapshot.TotalProtocols = len(snapshot.Protocols)
	snapshot.AverageAPY = totalAPY / float64(len(opportunities))
	for category, c := range snapshot.Categories {
		c.AverageAPY = categoryAPY[category] / float64(c.Count)
		snapshot.Categories[category] = c
	}
	snapshot.TopProtocols = rankProtocols(snapshot.Protocols)

	return snapshot
}

// bandFor returns the distribution bucket label for a TVL value.
func bandFor(tvl float64) string {
	for _, band := range tvlBands[:len(tvlBands)-1] {
		if tvl < band.upper {
			return band.label
		}
	}
	return tvlBands[len(tvlBands)-1].label
}

// rankProtocols returns the top protocols by total TVL, ties broken by
// name for determinism.
func rankProtocols(protocols map[string]ProtocolStats) []string {
	names := make([]string, 0, len(protocols))
	for name := range protocols {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := protocols[names[i]], protocols[names[j]]
		if a.TotalTVL != b.TotalTVL {
			return a.TotalTVL > b.TotalTVL
		}
		return names[i] < names[j]
	})

	if len(names) > topProtocolCount {
		names = names[:topProtocolCount]
	}
	return names
}
