package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourorg/solana-yield-optimizer/internal/model"
)

func sampleDataset() []model.Opportunity {
	return []model.Opportunity{
		{Protocol: "raydium", PoolID: "a", Pair: "SOL-USDC", APY: 0.15, TVL: 2_000_000, Category: "dex"},
		{Protocol: "raydium", PoolID: "b", Pair: "RAY-SOL", APY: 0.25, TVL: 500_000, Category: "dex"},
		{Protocol: "solend", PoolID: "c", Pair: "USDC", APY: 0.05, TVL: 30_000_000, Category: "lending"},
		{Protocol: "marinade", PoolID: "d", Pair: "mSOL", APY: 0.07, TVL: 150_000_000, Category: "staking"},
		{Protocol: "tinyfarm", PoolID: "e", Pair: "X-Y", APY: 0.90, TVL: 50_000, Category: "other"},
	}
}

func TestSummarize_Totals(t *testing.T) {
	snapshot := Summarize(sampleDataset())

	assert.Equal(t, 5, snapshot.TotalOpportunities)
	assert.Equal(t, 4, snapshot.TotalProtocols)
	assert.Equal(t, 182_550_000.0, snapshot.TotalTVL)
	assert.InDelta(t, (0.15+0.25+0.05+0.07+0.90)/5, snapshot.AverageAPY, 1e-12)
}

func TestSummarize_CategoryCountsSumToTotal(t *testing.T) {
	snapshot := Summarize(sampleDataset())

	sum := 0
	for _, c := range snapshot.Categories {
		sum += c.Count
	}
	assert.Equal(t, snapshot.TotalOpportunities, sum)

	dex := snapshot.Categories["dex"]
	assert.Equal(t, 2, dex.Count)
	assert.InDelta(t, 0.20, dex.AverageAPY, 1e-12)
}

func TestSummarize_ProtocolBreakdown(t *testing.T) {
	snapshot := Summarize(sampleDataset())

	raydium := snapshot.Protocols["raydium"]
	assert.Equal(t, 2, raydium.Count)
	assert.Equal(t, 2_500_000.0, raydium.TotalTVL)

	require.Len(t, snapshot.TopProtocols, 4)
	assert.Equal(t, []string{"marinade", "solend", "raydium", "tinyfarm"}, snapshot.TopProtocols)
}

func TestSummarize_TVLDistribution(t *testing.T) {
	snapshot := Summarize(sampleDataset())

	assert.Equal(t, 1, snapshot.TVLDistribution["<100k"])
	assert.Equal(t, 1, snapshot.TVLDistribution["100k-1m"])
	assert.Equal(t, 1, snapshot.TVLDistribution["1m-10m"])
	assert.Equal(t, 1, snapshot.TVLDistribution["10m-100m"])
	assert.Equal(t, 1, snapshot.TVLDistribution[">=100m"])

	total := 0
	for _, count := range snapshot.TVLDistribution {
		total += count
	}
	assert.Equal(t, snapshot.TotalOpportunities, total)
}

func TestSummarize_EmptyInput(t *testing.T) {
	snapshot := Summarize(nil)

	assert.Zero(t, snapshot.TotalOpportunities)
	assert.Zero(t, snapshot.TotalProtocols)
	assert.Zero(t, snapshot.TotalTVL)
	assert.Zero(t, snapshot.AverageAPY)
	assert.Empty(t, snapshot.Protocols)
	assert.Empty(t, snapshot.TopProtocols)
	assert.Empty(t, snapshot.Categories)
	for _, count := range snapshot.TVLDistribution {
		assert.Zero(t, count)
	}
}

func TestSummarize_TopProtocolsBounded(t *testing.T) {
	dataset := make([]model.Opportunity, 0, 8)
	for i := 0; i < 8; i++ {
		dataset = append(dataset, model.Opportunity{
			Protocol: string(rune('a' + i)),
			PoolID:   string(rune('a' + i)),
			APY:      0.1,
			TVL:      float64((i + 1) * 1000),
			Category: "other",
		})
	}

	snapshot := Summarize(dataset)

	require.Len(t, snapshot.TopProtocols, topProtocolCount)
	assert.Equal(t, "h", snapshot.TopProtocols[0])
}
