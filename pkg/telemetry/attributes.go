package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Стандартные ключи атрибутов
const (
	// Параметры прогона
	AttrTrialCount   = "simulation.trial_count"
	AttrInvitedCount = "simulation.invited_count"
	AttrProbLow      = "simulation.probability.low"
	AttrProbHigh     = "simulation.probability.high"
	AttrBudget       = "simulation.budget"
	AttrSeed         = "simulation.seed"
	AttrWorkers      = "simulation.workers"
	AttrRunID        = "simulation.run_id"
	AttrCached       = "simulation.cached"

	// Итоги
	AttrOverrunProbability = "summary.overrun_probability"
	AttrRiskTolerance      = "summary.risk_tolerance"
	AttrRecommendation     = "summary.recommendation"

	// Перебор
	AttrSweepPoints    = "sweep.points"
	AttrMaxSafeInvited = "sweep.max_safe_invited"
)

// SimulationAttributes возвращает атрибуты параметров прогона
func SimulationAttributes(trialCount, invitedCount int, probLow, probHigh, budget float64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AttrTrialCount, trialCount),
		attribute.Int(AttrInvitedCount, invitedCount),
		attribute.Float64(AttrProbLow, probLow),
		attribute.Float64(AttrProbHigh, probHigh),
		attribute.Float64(AttrBudget, budget),
	}
}

// SummaryAttributes возвращает атрибуты итогов
func SummaryAttributes(overrunProbability, riskTolerance float64, recommendation string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Float64(AttrOverrunProbability, overrunProbability),
		attribute.Float64(AttrRiskTolerance, riskTolerance),
		attribute.String(AttrRecommendation, recommendation),
	}
}

// SweepAttributes возвращает атрибуты перебора
func SweepAttributes(points, maxSafeInvited int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AttrSweepPoints, points),
		attribute.Int(AttrMaxSafeInvited, maxSafeInvited),
	}
}
