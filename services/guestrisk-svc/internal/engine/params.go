// services/guestrisk-svc/internal/engine/params.go
package engine

import (
	"fmt"
	"math"

	"guestrisk/pkg/apperror"
)

// ProbabilityRange замкнутый интервал вероятности явки гостя
type ProbabilityRange struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// IsDegenerate сообщает, что интервал вырожден в точку
func (r ProbabilityRange) IsDegenerate() bool {
	return r.Low == r.High
}

// SimulationParameters входные параметры одного прогона.
// Значение неизменяемо на протяжении прогона.
type SimulationParameters struct {
	TrialCount            int              `json:"trial_count"`
	InvitedCount          int              `json:"invited_count"`
	AttendanceProbability ProbabilityRange `json:"attendance_probability_range"`
	FixedCost             float64          `json:"fixed_cost"`
	VariableCostPerGuest  float64          `json:"variable_cost_per_guest"`
	GuestBaseCount        int              `json:"guest_base_count"`
	Budget                float64          `json:"budget"`
}

// Validate проверяет все ограничения и возвращает одну ошибку
// CodeInvalidParameters со списком всех нарушений в Details.
func (p SimulationParameters) Validate() error {
	v := apperror.NewValidationErrors()

	if p.TrialCount <= 0 {
		v.AddErrorWithField(apperror.CodeInvalidParameters,
			fmt.Sprintf("trial_count must be positive, got %d", p.TrialCount), "trial_count")
	}
	if p.InvitedCount < 0 {
		v.AddErrorWithField(apperror.CodeInvalidParameters,
			fmt.Sprintf("invited_count must be non-negative, got %d", p.InvitedCount), "invited_count")
	}
	if p.GuestBaseCount < 0 {
		v.AddErrorWithField(apperror.CodeInvalidParameters,
			fmt.Sprintf("guest_base_count must be non-negative, got %d", p.GuestBaseCount), "guest_base_count")
	}

	validateProbabilityRange(v, p.AttendanceProbability)

	validateCost(v, "fixed_cost", p.FixedCost)
	validateCost(v, "variable_cost_per_guest", p.VariableCostPerGuest)
	validateCost(v, "budget", p.Budget)

	if err := v.AsError(apperror.CodeInvalidParameters); err != nil {
		return err
	}
	return nil
}

func validateProbabilityRange(v *apperror.ValidationErrors, r ProbabilityRange) {
	const field = "attendance_probability_range"

	lowOK := isProbability(r.Low)
	highOK := isProbability(r.High)

	if !lowOK {
		v.AddErrorWithField(apperror.CodeInvalidParameters,
			fmt.Sprintf("low bound must be in [0,1], got %v", r.Low), field)
	}
	if !highOK {
		v.AddErrorWithField(apperror.CodeInvalidParameters,
			fmt.Sprintf("high bound must be in [0,1], got %v", r.High), field)
	}
	if lowOK && highOK && r.Low > r.High {
		v.AddErrorWithField(apperror.CodeInvalidParameters,
			fmt.Sprintf("low bound %v exceeds high bound %v", r.Low, r.High), field)
	}
}

func validateCost(v *apperror.ValidationErrors, field string, value float64) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		v.AddErrorWithField(apperror.CodeInvalidParameters,
			fmt.Sprintf("%s must be a finite number", field), field)
		return
	}
	if value < 0 {
		v.AddErrorWithField(apperror.CodeInvalidParameters,
			fmt.Sprintf("%s must be non-negative, got %v", field, value), field)
	}
}

func isProbability(p float64) bool {
	return !math.IsNaN(p) && p >= 0 && p <= 1
}
