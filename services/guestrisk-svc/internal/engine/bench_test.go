package engine

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"
	"testing"
)

func BenchmarkRun(b *testing.B) {
	for _, trials := range []int{10_000, 100_000} {
		for _, parallel := range []bool{false, true} {
			b.Run(fmt.Sprintf("trials=%d/parallel=%v", trials, parallel), func(b *testing.B) {
				params := weddingParams()
				params.TrialCount = trials
				mc := NewMonteCarloEngine(Config{Parallel: parallel})
				ctx := context.Background()

				b.ReportAllocs()
				b.ResetTimer()
				for i := 0; i < b.N; i++ {
					if _, err := mc.Run(ctx, params, int64(i+1)); err != nil {
						b.Fatal(err)
					}
				}
			})
		}
	}
}

func BenchmarkSampleAttendees(b *testing.B) {
	src := NewSource(1)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		SampleAttendees(src, 150, 0.75)
	}
}

func BenchmarkSummarize(b *testing.B) {
	params := weddingParams()
	params.TrialCount = 100_000
	rs, err := NewMonteCarloEngine(Config{Parallel: true}).Run(context.Background(), params, 42)
	if err != nil {
		b.Fatal(err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Summarize(rs, 0.2); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkPercentile(b *testing.B) {
	rng := rand.New(NewSource(7))
	values := make([]float64, 100_000)
	for i := range values {
		values[i] = rng.NormFloat64()
	}
	sort.Float64s(values)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Percentile(values, LowerPercentile)
		Percentile(values, UpperPercentile)
	}
}
