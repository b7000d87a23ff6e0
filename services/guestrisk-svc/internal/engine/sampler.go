// services/guestrisk-svc/internal/engine/sampler.go
package engine

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// RandomSource seedable источник случайных чисел прогона.
// Глобальный генератор не используется: каждый прогон и батч получают свой.
type RandomSource = rand.Source

// pcgStream второе слово состояния PCG, одинаковое для всех потоков:
// поток определяется только seed
const pcgStream = 0x9e3779b97f4a7c15

// NewSource PCG источник, однозначно заданный seed
func NewSource(seed int64) RandomSource {
	return rand.NewPCG(uint64(seed), pcgStream)
}

// nextSeed следующий ненулевой seed из master: ноль зарезервирован под "от часов"
func nextSeed(master *rand.Rand) int64 {
	for {
		if s := master.Int64(); s != 0 {
			return s
		}
	}
}

// SampleProbability draws the per-trial attendance probability uniformly
// from r. A degenerate range returns r.Low and consumes no randomness.
func SampleProbability(src RandomSource, r ProbabilityRange) float64 {
	if r.High <= r.Low {
		return r.Low
	}
	return distuv.Uniform{Min: r.Low, Max: r.High, Src: src}.Rand()
}

// SampleAttendees returns the number of successes in invited independent
// Bernoulli(p) draws. p of 0 or 1 is decided without touching src.
func SampleAttendees(src RandomSource, invited int, p float64) int {
	if invited <= 0 || p <= 0 {
		return 0
	}
	if p >= 1 {
		return invited
	}
	return int(distuv.Binomial{N: float64(invited), P: p, Src: src}.Rand())
}
