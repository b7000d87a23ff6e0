// services/guestrisk-svc/internal/service/types.go
package service

import (
	"time"

	"guestrisk/services/guestrisk-svc/internal/engine"
)

// SimulateRequest запрос одного прогона.
// Нулевой TrialCount и отсутствующий RiskTolerance заменяются значениями из конфигурации,
// нулевой Seed берётся от часов и такой прогон не кэшируется.
type SimulateRequest struct {
	engine.SimulationParameters

	RiskTolerance *float64 `json:"risk_tolerance,omitempty"`
	Seed          int64    `json:"seed,omitempty"`
	IncludeTrials bool     `json:"include_trials,omitempty"`
}

// SweepRequest перебор invited_count по диапазону при прочих равных.
// InvitedCount из параметров игнорируется.
type SweepRequest struct {
	engine.SimulationParameters

	InvitedRange  engine.SweepRange `json:"invited_range"`
	RiskTolerance *float64          `json:"risk_tolerance,omitempty"`
	Seed          int64             `json:"seed,omitempty"`
}

// Metadata сведения о выполнении
type Metadata struct {
	ComputationTimeMs float64   `json:"computation_time_ms"`
	Workers           int       `json:"workers"`
	Seed              int64     `json:"seed"`
	Cached            bool      `json:"cached"`
	CompletedAt       time.Time `json:"completed_at"`
}

// SimulateResponse результат прогона
type SimulateResponse struct {
	RunID      string                      `json:"run_id"`
	Parameters engine.SimulationParameters `json:"parameters"`
	Summary    *engine.Summary             `json:"summary"`
	Trials     []engine.TrialResult        `json:"trials,omitempty"`
	Metadata   Metadata                    `json:"metadata"`
}

// SweepResponse результат перебора
type SweepResponse struct {
	RunID          string                      `json:"run_id"`
	Parameters     engine.SimulationParameters `json:"parameters"`
	InvitedRange   engine.SweepRange           `json:"invited_range"`
	Points         []engine.SweepPoint         `json:"points"`
	MaxSafeInvited int                         `json:"max_safe_invited"`
	Metadata       Metadata                    `json:"metadata"`
}

// HealthStatus состояние сервиса
type HealthStatus struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	CacheBackend  string  `json:"cache_backend,omitempty"`
	CacheKeys     int64   `json:"cache_keys,omitempty"`
}
