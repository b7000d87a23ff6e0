package engine

import "guestrisk/pkg/logger"

func init() {
	logger.Init("error")
}

// sequenceSource отдаёт заранее заданные значения из [0,1) по кругу и считает вызовы.
// rand.Float64 берёт младшие 53 бита Uint64, поэтому значение кодируется как v·2^53.
type sequenceSource struct {
	values []float64
	calls  int
}

func (s *sequenceSource) Uint64() uint64 {
	v := s.values[s.calls%len(s.values)]
	s.calls++
	return uint64(v * (1 << 53))
}

// weddingParams базовая модель затрат из сценариев A и B
func weddingParams() SimulationParameters {
	return SimulationParameters{
		TrialCount:            1000,
		InvitedCount:          150,
		AttendanceProbability: ProbabilityRange{Low: 0.60, High: 0.90},
		FixedCost:             22000,
		VariableCostPerGuest:  125,
		GuestBaseCount:        50,
		Budget:                30000,
	}
}
