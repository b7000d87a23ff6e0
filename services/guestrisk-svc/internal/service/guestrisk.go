// services/guestrisk-svc/internal/service/guestrisk.go
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"guestrisk/pkg/apperror"
	"guestrisk/pkg/cache"
	"guestrisk/pkg/config"
	"guestrisk/pkg/logger"
	"guestrisk/pkg/metrics"
	"guestrisk/pkg/telemetry"
	"guestrisk/services/guestrisk-svc/internal/engine"
)

const (
	opSimulate = "simulate"
	opSweep    = "sweep"
)

var startTime = time.Now()

// Options зависимости сервиса
type Options struct {
	Version    string
	Simulation config.SimulationConfig

	// Cache nil отключает кэширование
	Cache    *cache.ResultCache
	CacheTTL time.Duration
}

// GuestRiskService оценка бюджетного риска приглашений
type GuestRiskService struct {
	engine   *engine.MonteCarloEngine
	cfg      config.SimulationConfig
	cache    *cache.ResultCache
	cacheTTL time.Duration
	version  string

	newRunID func() string
	now      func() time.Time
}

// NewGuestRiskService создаёт сервис
func NewGuestRiskService(opts Options) *GuestRiskService {
	return &GuestRiskService{
		engine: engine.NewMonteCarloEngine(engine.Config{
			Parallel:   opts.Simulation.Parallel,
			MaxWorkers: opts.Simulation.MaxWorkers,
		}),
		cfg:      opts.Simulation,
		cache:    opts.Cache,
		cacheTTL: opts.CacheTTL,
		version:  opts.Version,
		newRunID: uuid.NewString,
		now:      time.Now,
	}
}

// ============ SIMULATE ============

// Simulate выполняет прогон и считает итоги
func (s *GuestRiskService) Simulate(ctx context.Context, req SimulateRequest) (*SimulateResponse, error) {
	params, tolerance := s.resolve(req.SimulationParameters, req.RiskTolerance)

	ctx, span := telemetry.StartSpan(ctx, "GuestRiskService.Simulate",
		telemetry.WithAttributes(telemetry.SimulationAttributes(
			params.TrialCount, params.InvitedCount,
			params.AttendanceProbability.Low, params.AttendanceProbability.High,
			params.Budget,
		)...),
	)
	defer span.End()

	start := s.now()

	if err := s.validate(params, tolerance, params.InvitedCount, 1); err != nil {
		return nil, s.fail(ctx, opSimulate, start, err)
	}

	key := ""
	if req.Seed != 0 && s.cache != nil {
		key = simulateKey(params, tolerance, req.Seed, req.IncludeTrials)
		if resp := s.loadSimulate(ctx, key); resp != nil {
			return resp, nil
		}
	}

	runCtx, cancel := s.withRunTimeout(ctx)
	defer cancel()

	rs, err := s.engine.Run(runCtx, params, req.Seed)
	if err != nil {
		return nil, s.fail(ctx, opSimulate, start, err)
	}

	telemetry.AddEvent(ctx, "trials.completed",
		attribute.Int(telemetry.AttrTrialCount, rs.Len()),
		attribute.Int64(telemetry.AttrSeed, rs.Seed),
	)

	summary, err := engine.Summarize(rs, tolerance)
	if err != nil {
		return nil, s.fail(ctx, opSimulate, start, err)
	}

	elapsed := s.now().Sub(start)
	resp := &SimulateResponse{
		RunID:      s.newRunID(),
		Parameters: params,
		Summary:    summary,
		Metadata: Metadata{
			ComputationTimeMs: float64(elapsed.Microseconds()) / 1000,
			Workers:           s.engine.Workers(params.TrialCount),
			Seed:              rs.Seed,
			CompletedAt:       s.now().UTC(),
		},
	}
	if req.IncludeTrials {
		resp.Trials = rs.Trials
	}

	m := metrics.Get()
	m.RecordSimulation(opSimulate, true, elapsed, rs.Len())
	m.RecordOutcome(opSimulate, summary.OverrunProbability, string(summary.OverallRecommendation))

	telemetry.SetAttributes(ctx, attribute.String(telemetry.AttrRunID, resp.RunID))
	telemetry.SetAttributes(ctx, telemetry.SummaryAttributes(
		summary.OverrunProbability, tolerance, string(summary.OverallRecommendation),
	)...)

	logger.FromContext(ctx).Info("simulation completed",
		"run_id", resp.RunID,
		"trial_count", summary.TrialCount,
		"seed", rs.Seed,
		"overrun_probability", summary.OverrunProbability,
		"recommendation", summary.OverallRecommendation,
		"duration_ms", resp.Metadata.ComputationTimeMs,
	)

	if key != "" {
		s.store(ctx, key, resp)
	}

	return resp, nil
}

func (s *GuestRiskService) loadSimulate(ctx context.Context, key string) *SimulateResponse {
	var cached SimulateResponse
	if !s.load(ctx, key, &cached) {
		return nil
	}

	cached.RunID = s.newRunID()
	cached.Metadata.Cached = true

	telemetry.SetAttributes(ctx,
		attribute.Bool(telemetry.AttrCached, true),
		attribute.String(telemetry.AttrRunID, cached.RunID),
	)
	logger.FromContext(ctx).Debug("simulation served from cache", "run_id", cached.RunID, "key", key)
	return &cached
}

// ============ SWEEP ============

// Sweep перебирает invited_count и ищет наибольшее безопасное значение
func (s *GuestRiskService) Sweep(ctx context.Context, req SweepRequest) (*SweepResponse, error) {
	params, tolerance := s.resolve(req.SimulationParameters, req.RiskTolerance)
	params.InvitedCount = req.InvitedRange.From

	ctx, span := telemetry.StartSpan(ctx, "GuestRiskService.Sweep",
		telemetry.WithAttributes(
			attribute.Int(telemetry.AttrTrialCount, params.TrialCount),
			attribute.Int(telemetry.AttrSweepPoints, req.InvitedRange.Points()),
		),
	)
	defer span.End()

	start := s.now()

	if err := req.InvitedRange.Validate(); err != nil {
		return nil, s.fail(ctx, opSweep, start, err)
	}
	if err := s.validate(params, tolerance, req.InvitedRange.To, req.InvitedRange.Points()); err != nil {
		return nil, s.fail(ctx, opSweep, start, err)
	}

	key := ""
	if req.Seed != 0 && s.cache != nil {
		key = sweepKey(params, req.InvitedRange, tolerance, req.Seed)
		var cached SweepResponse
		if s.load(ctx, key, &cached) {
			cached.RunID = s.newRunID()
			cached.Metadata.Cached = true
			return &cached, nil
		}
	}

	seed := engine.ResolveSeed(req.Seed)

	runCtx, cancel := s.withRunTimeout(ctx)
	defer cancel()

	result, err := s.engine.Sweep(runCtx, params, req.InvitedRange, tolerance, seed)
	if err != nil {
		return nil, s.fail(ctx, opSweep, start, err)
	}

	elapsed := s.now().Sub(start)
	resp := &SweepResponse{
		RunID:          s.newRunID(),
		Parameters:     params,
		InvitedRange:   req.InvitedRange,
		Points:         result.Points,
		MaxSafeInvited: result.MaxSafeInvited,
		Metadata: Metadata{
			ComputationTimeMs: float64(elapsed.Microseconds()) / 1000,
			Workers:           s.engine.Workers(params.TrialCount),
			Seed:              seed,
			CompletedAt:       s.now().UTC(),
		},
	}

	m := metrics.Get()
	m.RecordSimulation(opSweep, true, elapsed, params.TrialCount*len(result.Points))
	m.RecordSweepPoints(len(result.Points))

	telemetry.SetAttributes(ctx, attribute.String(telemetry.AttrRunID, resp.RunID))
	telemetry.SetAttributes(ctx, telemetry.SweepAttributes(len(result.Points), result.MaxSafeInvited)...)

	logger.FromContext(ctx).Info("sweep completed",
		"run_id", resp.RunID,
		"points", len(result.Points),
		"seed", seed,
		"max_safe_invited", result.MaxSafeInvited,
		"duration_ms", resp.Metadata.ComputationTimeMs,
	)

	if key != "" {
		s.store(ctx, key, resp)
	}

	return resp, nil
}

// ============ HEALTH ============

// Health возвращает состояние сервиса
func (s *GuestRiskService) Health(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Status:        "HEALTHY",
		Version:       s.version,
		UptimeSeconds: time.Since(startTime).Seconds(),
	}

	if s.cache != nil {
		stats, err := s.cache.Stats(ctx)
		if err != nil {
			logger.FromContext(ctx).Warn("cache stats unavailable", "error", err)
			status.Status = "DEGRADED"
		} else {
			status.CacheBackend = stats.Backend
			status.CacheKeys = stats.TotalKeys
		}
	}

	return status
}

// ============ HELPERS ============

// resolve подставляет значения по умолчанию
func (s *GuestRiskService) resolve(p engine.SimulationParameters, tolerance *float64) (engine.SimulationParameters, float64) {
	if p.TrialCount == 0 {
		p.TrialCount = s.cfg.DefaultTrialCount
	}
	if tolerance == nil {
		return p, s.cfg.DefaultRiskTolerance
	}
	return p, *tolerance
}

// validate проверяет параметры и лимиты сервиса
func (s *GuestRiskService) validate(p engine.SimulationParameters, tolerance float64, maxInvited, points int) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if err := engine.ValidateRiskTolerance(tolerance); err != nil {
		return err
	}

	if s.cfg.MaxTrialCount > 0 && p.TrialCount > s.cfg.MaxTrialCount {
		return apperror.NewWithField(apperror.CodeTrialLimitExceeded,
			fmt.Sprintf("trial_count %d exceeds the limit of %d", p.TrialCount, s.cfg.MaxTrialCount),
			"trial_count",
		).WithDetails("limit", s.cfg.MaxTrialCount)
	}
	if s.cfg.MaxInvitedCount > 0 && maxInvited > s.cfg.MaxInvitedCount {
		return apperror.NewWithField(apperror.CodeTrialLimitExceeded,
			fmt.Sprintf("invited_count %d exceeds the limit of %d", maxInvited, s.cfg.MaxInvitedCount),
			"invited_count",
		).WithDetails("limit", s.cfg.MaxInvitedCount)
	}
	if s.cfg.MaxSweepPoints > 0 && points > s.cfg.MaxSweepPoints {
		return apperror.NewWithField(apperror.CodeTrialLimitExceeded,
			fmt.Sprintf("sweep of %d points exceeds the limit of %d", points, s.cfg.MaxSweepPoints),
			"invited_range",
		).WithDetails("limit", s.cfg.MaxSweepPoints)
	}

	return nil
}

func (s *GuestRiskService) withRunTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.RunTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.RunTimeout)
}

// fail приводит ошибку к apperror, отмечает span и метрики
func (s *GuestRiskService) fail(ctx context.Context, op string, start time.Time, err error) error {
	appErr := apperror.From(err)

	telemetry.SetError(ctx, appErr)
	metrics.Get().RecordSimulation(op, false, s.now().Sub(start), 0)

	log := logger.FromContext(ctx)
	if appErr.Code == apperror.CodeInternal {
		log.Error(op+" failed", "error", appErr, "code", appErr.Code)
	} else {
		log.Debug(op+" rejected", "error", appErr, "code", appErr.Code, "field", appErr.Field)
	}

	return appErr
}

func (s *GuestRiskService) load(ctx context.Context, key string, dst any) bool {
	found, err := s.cache.Load(ctx, key, dst)
	if err != nil {
		logger.FromContext(ctx).Warn("cache lookup failed", "key", key, "error", err)
	}
	metrics.Get().RecordCacheLookup(found)
	return found
}

func (s *GuestRiskService) store(ctx context.Context, key string, value any) {
	if err := s.cache.Store(ctx, key, value, s.cacheTTL); err != nil && !errors.Is(err, cache.ErrCacheClosed) {
		logger.FromContext(ctx).Warn("cache store failed", "key", key, "error", err)
	}
}

func paramsKey(b *cache.KeyBuilder, p engine.SimulationParameters) *cache.KeyBuilder {
	return b.
		Int("trial_count", int64(p.TrialCount)).
		Float("probability_low", p.AttendanceProbability.Low).
		Float("probability_high", p.AttendanceProbability.High).
		Float("fixed_cost", p.FixedCost).
		Float("variable_cost_per_guest", p.VariableCostPerGuest).
		Int("guest_base_count", int64(p.GuestBaseCount)).
		Float("budget", p.Budget)
}

func simulateKey(p engine.SimulationParameters, tolerance float64, seed int64, includeTrials bool) string {
	return paramsKey(cache.NewKeyBuilder(opSimulate), p).
		Int("invited_count", int64(p.InvitedCount)).
		Float("risk_tolerance", tolerance).
		Int("seed", seed).
		Bool("include_trials", includeTrials).
		Build()
}

func sweepKey(p engine.SimulationParameters, r engine.SweepRange, tolerance float64, seed int64) string {
	return paramsKey(cache.NewKeyBuilder(opSweep), p).
		Int("from", int64(r.From)).
		Int("to", int64(r.To)).
		Int("step", int64(r.Step)).
		Float("risk_tolerance", tolerance).
		Int("seed", seed).
		Build()
}
