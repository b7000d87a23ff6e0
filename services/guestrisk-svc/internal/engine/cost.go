// services/guestrisk-svc/internal/engine/cost.go
package engine

import "math"

// ComputeTotalCost возвращает полную стоимость мероприятия.
// Переменная часть начисляется только за гостей сверх guestBaseCount
// и не уходит в минус, если пришло меньше базового количества.
func ComputeTotalCost(fixedCost, variableCostPerGuest float64, guestBaseCount, attendeeCount int) float64 {
	extra := attendeeCount - guestBaseCount
	if extra < 0 {
		extra = 0
	}
	return fixedCost + variableCostPerGuest*float64(extra)
}

// ComputeRisk возвращает запас бюджета: >0 экономия, <0 перерасход.
func ComputeRisk(budget, totalCost float64) float64 {
	return budget - totalCost
}

// ExpectedAttendees returns ceil(p × invited) clamped to [0, invited].
// The small epsilon absorbs float noise such as 0.6*150 = 90.00000000000001.
func ExpectedAttendees(invited int, p float64) int {
	if invited <= 0 || p <= 0 {
		return 0
	}
	n := int(math.Ceil(p*float64(invited) - 1e-9))
	if n > invited {
		return invited
	}
	if n < 0 {
		return 0
	}
	return n
}

// EvaluateTrial применяет калькулятор и классификатор к одному исходу.
func EvaluateTrial(index int, attendeeCount int, params SimulationParameters) TrialResult {
	totalCost := ComputeTotalCost(params.FixedCost, params.VariableCostPerGuest, params.GuestBaseCount, attendeeCount)
	risk := ComputeRisk(params.Budget, totalCost)

	return TrialResult{
		TrialIndex:     index,
		AttendeeCount:  attendeeCount,
		TotalCost:      totalCost,
		Risk:           risk,
		OverBudgetFlag: ClassifyBudget(risk),
		Recommendation: ClassifyTrial(risk),
	}
}
