package engine

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guestrisk/pkg/apperror"
)

func resultSetFromRisks(budget float64, risks ...float64) *ResultSet {
	params := weddingParams()
	params.Budget = budget
	params.TrialCount = len(risks)

	rs := &ResultSet{Parameters: params, Trials: make([]TrialResult, len(risks))}
	for i, r := range risks {
		rs.Trials[i] = TrialResult{
			TrialIndex:     i + 1,
			AttendeeCount:  i,
			TotalCost:      budget - r,
			Risk:           r,
			OverBudgetFlag: ClassifyBudget(r),
			Recommendation: ClassifyTrial(r),
		}
	}
	return rs
}

// ===== PERCENTILE =====

func TestPercentile(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}

	assert.InDelta(t, 1.1, Percentile(values, 2.5), 1e-12)
	assert.InDelta(t, 4.9, Percentile(values, 97.5), 1e-12)
	assert.Equal(t, 3.0, Percentile(values, 50))
	assert.Equal(t, 1.0, Percentile(values, 0))
	assert.Equal(t, 5.0, Percentile(values, 100))
	assert.Equal(t, 2.5, Percentile([]float64{1, 2, 3, 4}, 50))
	assert.Equal(t, 7.0, Percentile([]float64{7}, 97.5))
	assert.True(t, math.IsNaN(Percentile(nil, 50)))
}

// ===== SUMMARIZE =====

func TestSummarize(t *testing.T) {
	rs := resultSetFromRisks(1000, -100, 50, 0, 200, -300)

	summary, err := Summarize(rs, 0.5)
	require.NoError(t, err)

	assert.Equal(t, 5, summary.TrialCount)
	assert.Equal(t, 0.5, summary.RiskTolerance)
	assert.Equal(t, 2, summary.OverrunCount)
	assert.InDelta(t, 0.4, summary.OverrunProbability, 1e-12)
	assert.Equal(t, InviteAll, summary.OverallRecommendation)
	assert.InDelta(t, 200.0, summary.ExpectedShortfall, 1e-12)

	// sorted risks: -300 -100 0 50 200
	assert.InDelta(t, -280.0, summary.RiskConfidenceInterval.Lower, 1e-9)
	assert.InDelta(t, 185.0, summary.RiskConfidenceInterval.Upper, 1e-9)
	assert.LessOrEqual(t, summary.RiskConfidenceInterval.Lower, summary.RiskConfidenceInterval.Upper)

	assert.Equal(t, -30.0, summary.Risk.Mean)
	assert.Equal(t, -300.0, summary.Risk.Min)
	assert.Equal(t, 200.0, summary.Risk.Max)
	assert.Equal(t, 0.0, summary.Risk.Median)
	assert.InDelta(t, math.Sqrt(27600), summary.Risk.StdDev, 1e-9)

	assert.Equal(t, 2.0, summary.Attendees.Mean)
	assert.Equal(t, 1030.0, summary.TotalCost.Mean)
}

func TestSummarize_TieBreak(t *testing.T) {
	// 1 из 5 в минусе: 0.2 == tolerance
	rs := resultSetFromRisks(100, -1, 1, 2, 3, 4)

	summary, err := Summarize(rs, 0.2)
	require.NoError(t, err)
	assert.Equal(t, 0.2, summary.OverrunProbability)
	assert.Equal(t, InviteAll, summary.OverallRecommendation)

	summary, err = Summarize(rs, 0.19)
	require.NoError(t, err)
	assert.Equal(t, InviteLess, summary.OverallRecommendation)
}

func TestSummarize_EvenIsNotOverrun(t *testing.T) {
	rs := resultSetFromRisks(100, 0, 0, 0)

	summary, err := Summarize(rs, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.OverrunCount)
	assert.Equal(t, 0.0, summary.ExpectedShortfall)
	assert.Equal(t, InviteAll, summary.OverallRecommendation)
}

func TestSummarize_Errors(t *testing.T) {
	t.Run("nil result set", func(t *testing.T) {
		_, err := Summarize(nil, 0.2)
		assert.True(t, apperror.Is(err, apperror.CodeNilInput))
	})

	t.Run("empty result set", func(t *testing.T) {
		_, err := Summarize(&ResultSet{}, 0.2)
		assert.True(t, apperror.Is(err, apperror.CodeEmptyResultSet))
	})

	t.Run("tolerance out of range", func(t *testing.T) {
		rs := resultSetFromRisks(100, 1)
		for _, tol := range []float64{-0.1, 1.5, math.NaN()} {
			_, err := Summarize(rs, tol)
			require.Error(t, err)
			assert.True(t, apperror.Is(err, apperror.CodeInvalidParameters))
			assert.Equal(t, "risk_tolerance", apperror.From(err).Field)
		}
	})
}

func TestSummarize_MatchesTrialFlags(t *testing.T) {
	engine := NewMonteCarloEngine(Config{Parallel: true})
	params := weddingParams()
	params.Budget = 30100

	rs, err := engine.Run(context.Background(), params, 314)
	require.NoError(t, err)

	summary, err := Summarize(rs, 0.2)
	require.NoError(t, err)

	over := 0
	for _, trial := range rs.Trials {
		if trial.OverBudgetFlag == FlagOver {
			over++
		}
	}
	assert.Equal(t, over, summary.OverrunCount)
	assert.InDelta(t, float64(over)/float64(rs.Len()), summary.OverrunProbability, 1e-12)
}
