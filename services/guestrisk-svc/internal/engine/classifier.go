// services/guestrisk-svc/internal/engine/classifier.go
package engine

// OverBudgetFlag знак запаса бюджета в одном испытании
type OverBudgetFlag string

const (
	FlagUnder OverBudgetFlag = "Under"
	FlagEven  OverBudgetFlag = "Even"
	FlagOver  OverBudgetFlag = "Over"
)

// Recommendation решение по списку гостей
type Recommendation string

const (
	InviteAll  Recommendation = "InviteAll"
	InviteLess Recommendation = "InviteLess"
)

// ClassifyBudget: Over iff risk < 0, Even iff risk == 0, Under otherwise.
func ClassifyBudget(risk float64) OverBudgetFlag {
	switch {
	case risk < 0:
		return FlagOver
	case risk == 0:
		return FlagEven
	default:
		return FlagUnder
	}
}

// ClassifyTrial рекомендация для одного испытания
func ClassifyTrial(risk float64) Recommendation {
	if risk >= 0 {
		return InviteAll
	}
	return InviteLess
}

// ClassifyAggregate compares the overrun probability with the caller's
// tolerance. Equality keeps InviteAll.
func ClassifyAggregate(overrunProbability, riskTolerance float64) Recommendation {
	if overrunProbability > riskTolerance {
		return InviteLess
	}
	return InviteAll
}
