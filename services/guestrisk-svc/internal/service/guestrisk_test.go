package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"guestrisk/pkg/apperror"
	"guestrisk/pkg/cache"
	"guestrisk/pkg/config"
	"guestrisk/pkg/logger"
	"guestrisk/services/guestrisk-svc/internal/engine"
)

func init() {
	logger.Init("error")
}

// ============================================================
// MOCKS
// ============================================================

// MockCache mock для бэкенда кэша
type MockCache struct {
	mock.Mock
}

func (m *MockCache) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if b := args.Get(0); b != nil {
		return b.([]byte), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return m.Called(ctx, key, value, ttl).Error(0)
}

func (m *MockCache) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *MockCache) Stats(ctx context.Context) (*cache.Stats, error) {
	args := m.Called(ctx)
	if s := args.Get(0); s != nil {
		return s.(*cache.Stats), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCache) Close() error {
	return m.Called().Error(0)
}

// ============================================================
// HELPERS
// ============================================================

func testSimulationConfig() config.SimulationConfig {
	return config.SimulationConfig{
		DefaultTrialCount:    2000,
		DefaultRiskTolerance: 0.2,
		MaxTrialCount:        50000,
		MaxInvitedCount:      1000,
		MaxSweepPoints:       10,
		MaxWorkers:           4,
		Parallel:             true,
		RunTimeout:           30 * time.Second,
	}
}

func newTestService(t *testing.T, rc *cache.ResultCache) *GuestRiskService {
	t.Helper()
	svc := NewGuestRiskService(Options{
		Version:    "test",
		Simulation: testSimulationConfig(),
		Cache:      rc,
		CacheTTL:   time.Minute,
	})

	n := 0
	svc.newRunID = func() string {
		n++
		return fmt.Sprintf("run-%d", n)
	}
	return svc
}

func newMemoryResultCache(t *testing.T) *cache.ResultCache {
	t.Helper()
	mem := cache.NewMemoryCache(&cache.Options{MaxEntries: 100, DefaultTTL: time.Minute})
	t.Cleanup(func() { _ = mem.Close() })
	return cache.NewResultCache(mem, time.Minute)
}

// weddingParams модель затрат: 22000 фиксированных, 125 за гостя сверх 50
func weddingParams() engine.SimulationParameters {
	return engine.SimulationParameters{
		TrialCount:            1000,
		InvitedCount:          150,
		AttendanceProbability: engine.ProbabilityRange{Low: 0.60, High: 0.90},
		FixedCost:             22000,
		VariableCostPerGuest:  125,
		GuestBaseCount:        50,
		Budget:                30000,
	}
}

func tolerance(v float64) *float64 { return &v }

func requireCode(t *testing.T, err error, code apperror.ErrorCode) *apperror.Error {
	t.Helper()
	require.Error(t, err)
	var appErr *apperror.Error
	require.True(t, errors.As(err, &appErr), "expected *apperror.Error, got %T", err)
	assert.Equal(t, code, appErr.Code)
	return appErr
}

// ============================================================
// SIMULATE
// ============================================================

func TestSimulate_Success(t *testing.T) {
	svc := newTestService(t, nil)

	resp, err := svc.Simulate(context.Background(), SimulateRequest{
		SimulationParameters: weddingParams(),
		Seed:                 20240601,
	})
	require.NoError(t, err)

	assert.Equal(t, "run-1", resp.RunID)
	assert.Equal(t, weddingParams(), resp.Parameters)
	require.NotNil(t, resp.Summary)
	assert.Equal(t, 1000, resp.Summary.TrialCount)
	assert.InDelta(t, 0.2, resp.Summary.RiskTolerance, 1e-12)
	assert.GreaterOrEqual(t, resp.Summary.OverrunProbability, 0.0)
	assert.LessOrEqual(t, resp.Summary.OverrunProbability, 1.0)
	assert.Nil(t, resp.Trials)

	assert.Equal(t, int64(20240601), resp.Metadata.Seed)
	assert.False(t, resp.Metadata.Cached)
	assert.GreaterOrEqual(t, resp.Metadata.Workers, 1)
	assert.False(t, resp.Metadata.CompletedAt.IsZero())
}

func TestSimulate_Defaults(t *testing.T) {
	svc := newTestService(t, nil)

	params := weddingParams()
	params.TrialCount = 0

	resp, err := svc.Simulate(context.Background(), SimulateRequest{SimulationParameters: params})
	require.NoError(t, err)

	assert.Equal(t, 2000, resp.Parameters.TrialCount)
	assert.Equal(t, 2000, resp.Summary.TrialCount)
	assert.InDelta(t, 0.2, resp.Summary.RiskTolerance, 1e-12)
	assert.NotZero(t, resp.Metadata.Seed, "clock-derived seed must be reported")
}

func TestSimulate_ZeroToleranceIsNotDefaulted(t *testing.T) {
	svc := newTestService(t, nil)

	resp, err := svc.Simulate(context.Background(), SimulateRequest{
		SimulationParameters: weddingParams(),
		RiskTolerance:        tolerance(0),
		Seed:                 1,
	})
	require.NoError(t, err)
	assert.Equal(t, 0.0, resp.Summary.RiskTolerance)
}

func TestSimulate_IncludeTrials(t *testing.T) {
	svc := newTestService(t, nil)

	resp, err := svc.Simulate(context.Background(), SimulateRequest{
		SimulationParameters: weddingParams(),
		Seed:                 7,
		IncludeTrials:        true,
	})
	require.NoError(t, err)

	require.Len(t, resp.Trials, 1000)
	for i, trial := range resp.Trials {
		assert.Equal(t, i+1, trial.TrialIndex)
		assert.LessOrEqual(t, trial.AttendeeCount, 150)
	}
}

func TestSimulate_Reproducible(t *testing.T) {
	svc := newTestService(t, nil)
	req := SimulateRequest{SimulationParameters: weddingParams(), Seed: 42}

	first, err := svc.Simulate(context.Background(), req)
	require.NoError(t, err)
	second, err := svc.Simulate(context.Background(), req)
	require.NoError(t, err)

	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, first.Summary, second.Summary)
}

func TestSimulate_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *SimulateRequest)
		code   apperror.ErrorCode
		field  string
	}{
		{
			name:   "negative budget",
			mutate: func(r *SimulateRequest) { r.Budget = -1 },
			code:   apperror.CodeInvalidParameters,
			field:  "budget",
		},
		{
			name:   "inverted probability range",
			mutate: func(r *SimulateRequest) { r.AttendanceProbability = engine.ProbabilityRange{Low: 0.9, High: 0.6} },
			code:   apperror.CodeInvalidParameters,
		},
		{
			name:   "negative trial count",
			mutate: func(r *SimulateRequest) { r.TrialCount = -5 },
			code:   apperror.CodeInvalidParameters,
			field:  "trial_count",
		},
		{
			name:   "tolerance above one",
			mutate: func(r *SimulateRequest) { r.RiskTolerance = tolerance(1.5) },
			code:   apperror.CodeInvalidParameters,
			field:  "risk_tolerance",
		},
		{
			name:   "trial limit",
			mutate: func(r *SimulateRequest) { r.TrialCount = 50001 },
			code:   apperror.CodeTrialLimitExceeded,
			field:  "trial_count",
		},
		{
			name:   "invited limit",
			mutate: func(r *SimulateRequest) { r.InvitedCount = 1001 },
			code:   apperror.CodeTrialLimitExceeded,
			field:  "invited_count",
		},
	}

	svc := newTestService(t, nil)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := SimulateRequest{SimulationParameters: weddingParams(), Seed: 1}
			tt.mutate(&req)

			resp, err := svc.Simulate(context.Background(), req)
			assert.Nil(t, resp)
			appErr := requireCode(t, err, tt.code)
			if tt.field != "" {
				assert.Equal(t, tt.field, appErr.Field)
			}
		})
	}
}

func TestSimulate_Cancelled(t *testing.T) {
	svc := newTestService(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Simulate(ctx, SimulateRequest{SimulationParameters: weddingParams(), Seed: 1})
	requireCode(t, err, apperror.CodeCancelled)
}

func TestSimulate_RunTimeout(t *testing.T) {
	svc := newTestService(t, nil)
	svc.cfg.RunTimeout = time.Nanosecond

	params := weddingParams()
	params.TrialCount = 50000

	_, err := svc.Simulate(context.Background(), SimulateRequest{SimulationParameters: params, Seed: 1})
	requireCode(t, err, apperror.CodeTimeout)
}

// ============================================================
// CACHE
// ============================================================

func TestSimulate_CachesSeededRuns(t *testing.T) {
	rc := newMemoryResultCache(t)
	svc := newTestService(t, rc)
	req := SimulateRequest{SimulationParameters: weddingParams(), Seed: 99}

	first, err := svc.Simulate(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, first.Metadata.Cached)

	second, err := svc.Simulate(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.Metadata.Cached)
	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, first.Summary, second.Summary)
	assert.Equal(t, first.Metadata.Seed, second.Metadata.Seed)

	// Другой seed даёт новый прогон
	req.Seed = 100
	third, err := svc.Simulate(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, third.Metadata.Cached)
}

func TestSimulate_UnseededRunsNotCached(t *testing.T) {
	rc := newMemoryResultCache(t)
	svc := newTestService(t, rc)

	_, err := svc.Simulate(context.Background(), SimulateRequest{SimulationParameters: weddingParams()})
	require.NoError(t, err)

	stats, err := rc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.TotalKeys)
}

func TestSimulate_IncludeTrialsHasOwnCacheEntry(t *testing.T) {
	rc := newMemoryResultCache(t)
	svc := newTestService(t, rc)

	_, err := svc.Simulate(context.Background(), SimulateRequest{SimulationParameters: weddingParams(), Seed: 5})
	require.NoError(t, err)

	resp, err := svc.Simulate(context.Background(), SimulateRequest{
		SimulationParameters: weddingParams(),
		Seed:                 5,
		IncludeTrials:        true,
	})
	require.NoError(t, err)
	assert.False(t, resp.Metadata.Cached)
	assert.Len(t, resp.Trials, 1000)
}

func TestSimulate_CacheFailuresIgnored(t *testing.T) {
	backend := new(MockCache)
	backend.On("Get", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))
	backend.On("Set", mock.Anything, mock.Anything, mock.Anything, time.Minute).Return(errors.New("connection refused"))

	svc := newTestService(t, cache.NewResultCache(backend, time.Minute))

	resp, err := svc.Simulate(context.Background(), SimulateRequest{SimulationParameters: weddingParams(), Seed: 3})
	require.NoError(t, err)
	assert.False(t, resp.Metadata.Cached)

	backend.AssertNumberOfCalls(t, "Get", 1)
	backend.AssertNumberOfCalls(t, "Set", 1)
}

// ============================================================
// SWEEP
// ============================================================

func sweepRequest() SweepRequest {
	params := weddingParams()
	params.Budget = 30100
	return SweepRequest{
		SimulationParameters: params,
		InvitedRange:         engine.SweepRange{From: 90, To: 150, Step: 20},
		Seed:                 20240601,
	}
}

func TestSweep_Success(t *testing.T) {
	svc := newTestService(t, nil)

	resp, err := svc.Sweep(context.Background(), sweepRequest())
	require.NoError(t, err)

	require.Len(t, resp.Points, 4)
	for i, point := range resp.Points {
		assert.Equal(t, 90+20*i, point.InvitedCount)
		require.NotNil(t, point.Summary)
		assert.Equal(t, 1000, point.Summary.TrialCount)
	}

	// При 90 приглашённых перерасход невозможен
	assert.Equal(t, 0.0, resp.Points[0].Summary.OverrunProbability)
	assert.GreaterOrEqual(t, resp.MaxSafeInvited, 90)
	assert.Less(t, resp.MaxSafeInvited, 150)

	assert.Equal(t, int64(20240601), resp.Metadata.Seed)
	assert.Equal(t, engine.SweepRange{From: 90, To: 150, Step: 20}, resp.InvitedRange)
}

func TestSweep_Reproducible(t *testing.T) {
	svc := newTestService(t, nil)

	first, err := svc.Sweep(context.Background(), sweepRequest())
	require.NoError(t, err)
	second, err := svc.Sweep(context.Background(), sweepRequest())
	require.NoError(t, err)

	assert.Equal(t, first.Points, second.Points)
	assert.Equal(t, first.MaxSafeInvited, second.MaxSafeInvited)
}

func TestSweep_UnseededReportsSeed(t *testing.T) {
	svc := newTestService(t, nil)
	req := sweepRequest()
	req.Seed = 0
	req.InvitedRange = engine.SweepRange{From: 100, To: 100, Step: 1}

	resp, err := svc.Sweep(context.Background(), req)
	require.NoError(t, err)
	assert.NotZero(t, resp.Metadata.Seed)
	assert.Len(t, resp.Points, 1)
}

func TestSweep_Validation(t *testing.T) {
	tests := []struct {
		name  string
		rng   engine.SweepRange
		code  apperror.ErrorCode
		field string
	}{
		{"zero step", engine.SweepRange{From: 10, To: 20, Step: 0}, apperror.CodeInvalidParameters, "invited_range.step"},
		{"inverted", engine.SweepRange{From: 20, To: 10, Step: 1}, apperror.CodeInvalidParameters, "invited_range.to"},
		{"too many points", engine.SweepRange{From: 0, To: 100, Step: 1}, apperror.CodeTrialLimitExceeded, "invited_range"},
		{"invited over limit", engine.SweepRange{From: 900, To: 1100, Step: 100}, apperror.CodeTrialLimitExceeded, "invited_count"},
	}

	svc := newTestService(t, nil)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := sweepRequest()
			req.InvitedRange = tt.rng

			_, err := svc.Sweep(context.Background(), req)
			appErr := requireCode(t, err, tt.code)
			assert.Equal(t, tt.field, appErr.Field)
		})
	}
}

func TestSweep_Cached(t *testing.T) {
	svc := newTestService(t, newMemoryResultCache(t))

	first, err := svc.Sweep(context.Background(), sweepRequest())
	require.NoError(t, err)
	second, err := svc.Sweep(context.Background(), sweepRequest())
	require.NoError(t, err)

	assert.False(t, first.Metadata.Cached)
	assert.True(t, second.Metadata.Cached)
	assert.Equal(t, first.MaxSafeInvited, second.MaxSafeInvited)
	assert.Len(t, second.Points, 4)
}

// ============================================================
// HEALTH
// ============================================================

func TestHealth(t *testing.T) {
	svc := newTestService(t, nil)

	status := svc.Health(context.Background())
	assert.Equal(t, "HEALTHY", status.Status)
	assert.Equal(t, "test", status.Version)
	assert.GreaterOrEqual(t, status.UptimeSeconds, 0.0)
}

func TestHealth_WithCache(t *testing.T) {
	svc := newTestService(t, newMemoryResultCache(t))

	status := svc.Health(context.Background())
	assert.Equal(t, "HEALTHY", status.Status)
	assert.Equal(t, cache.BackendMemory, status.CacheBackend)
}

func TestHealth_CacheUnavailable(t *testing.T) {
	backend := new(MockCache)
	backend.On("Stats", mock.Anything).Return(nil, errors.New("down"))

	svc := newTestService(t, cache.NewResultCache(backend, time.Minute))

	assert.Equal(t, "DEGRADED", svc.Health(context.Background()).Status)
}
