package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourorg/solana-yield-optimizer/internal/model"
)

func TestScore_AlwaysInRange(t *testing.T) {
	scorer := NewScorer()

	protocols := []string{"raydium", "orca", "unknown-farm", "sunny", ""}
	apys := []float64{0, 0.01, 0.2, 0.8, 1.5, 50}
	tvls := []float64{0, 1000, 500_000, 10_000_000, 1e9}
	audits := []float64{0, 0.5, 1}

	for _, p := range protocols {
		for _, apy := range apys {
			for _, tvl := range tvls {
				for _, audit := range audits {
					scored := scorer.Score(model.Opportunity{
						Protocol:   p,
						PoolID:     "pool",
						APY:        apy,
						TVL:        tvl,
						AuditScore: audit,
					})
					assert.GreaterOrEqual(t, scored.RiskScore, 0.0)
					assert.LessOrEqual(t, scored.RiskScore, 1.0)
					assert.NotEmpty(t, scored.RiskLevel)
				}
			}
		}
	}
}

func TestScore_BestCaseIsLowRisk(t *testing.T) {
	scorer := NewScorer()

	scored := scorer.Score(model.Opportunity{
		Protocol:   "raydium",
		PoolID:     "pool",
		APY:        0.01,
		TVL:        20_000_000, // above saturation
		AuditScore: 1.0,
	})

	assert.Equal(t, model.RiskLow, scored.RiskLevel)
	assert.Less(t, scored.RiskScore, LowRiskThreshold)
}

func TestScore_WorstCaseIsHighRisk(t *testing.T) {
	scorer := NewScorer()

	scored := scorer.Score(model.Opportunity{
		Protocol:   "totally-unknown-farm",
		PoolID:     "pool",
		APY:        10.0, // 1000%, far above the sustainability threshold
		TVL:        1,
		AuditScore: 0,
	})

	assert.Equal(t, model.RiskHigh, scored.RiskLevel)
	assert.GreaterOrEqual(t, scored.RiskScore, MediumRiskThreshold)
}

func TestScore_PureAndNonMutating(t *testing.T) {
	scorer := NewScorer()
	input := model.Opportunity{
		Protocol:   "solend",
		PoolID:     "pool",
		APY:        0.12,
		TVL:        3_000_000,
		AuditScore: 0.9,
	}

	first := scorer.Score(input)
	second := scorer.Score(input)

	assert.Equal(t, first, second)
	assert.Zero(t, input.RiskScore)
	assert.Empty(t, input.RiskLevel)
	assert.True(t, first.Scored())
}

func TestScore_KnownProtocolOutranksUnknown(t *testing.T) {
	scorer := NewScorer()
	base := model.Opportunity{PoolID: "pool", APY: 0.1, TVL: 1_000_000, AuditScore: 0.5}

	known := base
	known.Protocol = "raydium-clmm" // substring match resolves the parent protocol
	unknown := base
	unknown.Protocol = "freshfarm"

	assert.Less(t, scorer.Score(known).RiskScore, scorer.Score(unknown).RiskScore)
}

func TestScoreAll(t *testing.T) {
	scorer := NewScorer()
	batch := []model.Opportunity{
		{Protocol: "orca", PoolID: "a", APY: 0.05, TVL: 5_000_000, AuditScore: 0.9},
		{Protocol: "mystery", PoolID: "b", APY: 3.0, TVL: 200, AuditScore: 0},
	}

	scored := scorer.ScoreAll(batch)

	require.Len(t, scored, 2)
	for _, o := range scored {
		assert.True(t, o.Scored())
	}
	// Originals untouched
	for _, o := range batch {
		assert.False(t, o.Scored())
	}
}

func TestDefaultWeightsSumToOne(t *testing.T) {
	w := DefaultWeights()
	assert.InDelta(t, 1.0, w.Protocol+w.TVL+w.APY+w.Audit, 1e-9)
}
