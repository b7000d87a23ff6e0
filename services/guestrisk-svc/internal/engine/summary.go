// services/guestrisk-svc/internal/engine/summary.go
package engine

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"guestrisk/pkg/apperror"
)

// Границы доверительного интервала риска, в процентах
const (
	LowerPercentile = 2.5
	UpperPercentile = 97.5
)

// Interval пара перцентилей
type Interval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// ColumnStats описательная статистика одной колонки
type ColumnStats struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Median float64 `json:"median"`
}

// Summary агрегаты по набору испытаний
type Summary struct {
	TrialCount             int            `json:"trial_count"`
	RiskTolerance          float64        `json:"risk_tolerance"`
	OverrunCount           int            `json:"overrun_count"`
	OverrunProbability     float64        `json:"overrun_probability"`
	RiskConfidenceInterval Interval       `json:"risk_confidence_interval"`
	OverallRecommendation  Recommendation `json:"overall_recommendation"`

	// ExpectedShortfall средний перерасход среди испытаний с risk < 0
	ExpectedShortfall float64 `json:"expected_shortfall"`

	Attendees ColumnStats `json:"attendees"`
	TotalCost ColumnStats `json:"total_cost"`
	Risk      ColumnStats `json:"risk"`
}

// Summarize computes the aggregate statistics of rs over every row.
func Summarize(rs *ResultSet, riskTolerance float64) (*Summary, error) {
	if rs == nil {
		return nil, apperror.ErrNilResultSet
	}
	if err := ValidateRiskTolerance(riskTolerance); err != nil {
		return nil, err
	}

	n := rs.Len()
	if n == 0 {
		return nil, apperror.ErrEmptyResultSet
	}

	overruns := 0
	var shortfall float64
	for _, t := range rs.Trials {
		if t.Risk < 0 {
			overruns++
			shortfall += -t.Risk
		}
	}

	overrunProbability := float64(overruns) / float64(n)

	var expectedShortfall float64
	if overruns > 0 {
		expectedShortfall = shortfall / float64(overruns)
	}

	risks := sortedCopy(rs.Risks())

	return &Summary{
		TrialCount:         n,
		RiskTolerance:      riskTolerance,
		OverrunCount:       overruns,
		OverrunProbability: overrunProbability,
		RiskConfidenceInterval: Interval{
			Lower: Percentile(risks, LowerPercentile),
			Upper: Percentile(risks, UpperPercentile),
		},
		OverallRecommendation: ClassifyAggregate(overrunProbability, riskTolerance),
		ExpectedShortfall:     expectedShortfall,
		Attendees:             columnStats(sortedCopy(rs.AttendeeCounts())),
		TotalCost:             columnStats(sortedCopy(rs.TotalCosts())),
		Risk:                  columnStats(risks),
	}, nil
}

// ValidateRiskTolerance проверяет, что допуск лежит в [0,1]
func ValidateRiskTolerance(riskTolerance float64) error {
	if math.IsNaN(riskTolerance) || riskTolerance < 0 || riskTolerance > 1 {
		return apperror.NewWithField(apperror.CodeInvalidParameters,
			fmt.Sprintf("risk_tolerance must be in [0,1], got %v", riskTolerance), "risk_tolerance")
	}
	return nil
}

// Percentile returns the q-th percentile (0..100) of an ascending slice
// using linear interpolation between closest ranks (Hyndman–Fan type 7,
// the default of R quantile and NumPy percentile):
//
//	h = (N-1)·q/100;  x[⌊h⌋] + (h-⌊h⌋)·(x[⌊h⌋+1] - x[⌊h⌋])
//
// Returns NaN for an empty slice.
func Percentile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 100 {
		return sorted[n-1]
	}

	h := float64(n-1) * q / 100
	lo := int(math.Floor(h))
	if lo >= n-1 {
		return sorted[n-1]
	}
	frac := h - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

// columnStats считает статистику по отсортированной колонке.
// StdDev популяционное отклонение (делитель N).
func columnStats(sorted []float64) ColumnStats {
	if len(sorted) == 0 {
		return ColumnStats{}
	}

	mean, std := stat.PopMeanStdDev(sorted, nil)
	return ColumnStats{
		Mean:   mean,
		StdDev: std,
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Median: Percentile(sorted, 50),
	}
}

func sortedCopy(values []float64) []float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return sorted
}
