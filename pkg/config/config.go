// Package config описывает конфигурацию сервиса и загружает её через koanf.
package config

import (
	"fmt"
	"net"
	"net/netip"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Config - главная структура конфигурации
type Config struct {
	App        AppConfig        `koanf:"app"`
	HTTP       HTTPConfig       `koanf:"http"`
	Log        LogConfig        `koanf:"log"`
	Metrics    MetricsConfig    `koanf:"metrics"`
	Tracing    TracingConfig    `koanf:"tracing"`
	Cache      CacheConfig      `koanf:"cache"`
	RateLimit  RateLimitConfig  `koanf:"rate_limit"`
	Simulation SimulationConfig `koanf:"simulation"`
}

// AppConfig - общие настройки приложения
type AppConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"` // development, staging, production
	Debug       bool   `koanf:"debug"`
}

// HTTPConfig - настройки HTTP сервера
type HTTPConfig struct {
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	MaxBodyBytes    int64         `koanf:"max_body_bytes"`
	EnableH2C       bool          `koanf:"enable_h2c"`
	DocsPath        string        `koanf:"docs_path"` // пусто отключает Swagger UI
	CORS            CORSConfig    `koanf:"cors"`
}

// CORSConfig - настройки CORS
type CORSConfig struct {
	Enabled          bool     `koanf:"enabled"`
	AllowedOrigins   []string `koanf:"allowed_origins"`
	AllowedMethods   []string `koanf:"allowed_methods"`
	AllowedHeaders   []string `koanf:"allowed_headers"`
	ExposedHeaders   []string `koanf:"exposed_headers"`
	AllowCredentials bool     `koanf:"allow_credentials"`
	MaxAge           int      `koanf:"max_age"`
}

// LogConfig - настройки логирования
type LogConfig struct {
	Level      string `koanf:"level"`       // debug, info, warn, error
	Format     string `koanf:"format"`      // json, text
	Output     string `koanf:"output"`      // stdout, stderr, file
	FilePath   string `koanf:"file_path"`   // путь к файлу логов
	MaxSize    int    `koanf:"max_size"`    // MB
	MaxBackups int    `koanf:"max_backups"` // количество бэкапов
	MaxAge     int    `koanf:"max_age"`     // дней
	Compress   bool   `koanf:"compress"`
}

// MetricsConfig - настройки Prometheus метрик
type MetricsConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Port      int    `koanf:"port"`
	Path      string `koanf:"path"`
	Namespace string `koanf:"namespace"`
	Subsystem string `koanf:"subsystem"`
}

// TracingConfig - настройки OpenTelemetry
type TracingConfig struct {
	Enabled     bool    `koanf:"enabled"`
	Endpoint    string  `koanf:"endpoint"`
	ServiceName string  `koanf:"service_name"`
	SampleRate  float64 `koanf:"sample_rate"`
}

// CacheConfig - настройки кэширования результатов
type CacheConfig struct {
	Enabled    bool          `koanf:"enabled"`
	Driver     string        `koanf:"driver"` // redis, memory
	Host       string        `koanf:"host"`
	Port       int           `koanf:"port"`
	Password   string        `koanf:"password"`
	DB         int           `koanf:"db"`
	DefaultTTL time.Duration `koanf:"default_ttl"`
	MaxEntries int           `koanf:"max_entries"` // для in-memory
}

// Address host:port для клиента Redis
func (c CacheConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// RateLimitConfig конфигурация rate limiting
type RateLimitConfig struct {
	Enabled         bool          `koanf:"enabled"`
	Requests        int           `koanf:"requests"`
	Window          time.Duration `koanf:"window"`
	Strategy        string        `koanf:"strategy"` // sliding_window, token_bucket
	Backend         string        `koanf:"backend"`  // memory, redis
	BurstSize       int           `koanf:"burst_size"`
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
	RedisAddr       string        `koanf:"redis_addr"`
	// Адреса или CIDR обратных прокси. Пустой список: X-Forwarded-For игнорируется
	TrustedProxies []string `koanf:"trusted_proxies"`
}

// SimulationConfig лимиты и значения по умолчанию для прогонов
type SimulationConfig struct {
	DefaultTrialCount    int           `koanf:"default_trial_count"`
	DefaultRiskTolerance float64       `koanf:"default_risk_tolerance"`
	MaxTrialCount        int           `koanf:"max_trial_count"`
	MaxInvitedCount      int           `koanf:"max_invited_count"`
	MaxSweepPoints       int           `koanf:"max_sweep_points"`
	MaxWorkers           int           `koanf:"max_workers"`
	Parallel             bool          `koanf:"parallel"`
	RunTimeout           time.Duration `koanf:"run_timeout"`
}

// problems накапливает нарушения, Validate сообщает все сразу
type problems []string

func (p *problems) addf(format string, args ...any) {
	*p = append(*p, fmt.Sprintf(format, args...))
}

var (
	logLevels = []string{"debug", "info", "warn", "error"}
	backends  = []string{"memory", "redis"}
)

// Validate проверяет конфигурацию. Пустой log.level становится info.
func (c *Config) Validate() error {
	var p problems

	if c.App.Name == "" {
		p.addf("app.name is required")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		p.addf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if !slices.Contains(logLevels, strings.ToLower(c.Log.Level)) {
		p.addf("log.level must be one of: %s, got %s", strings.Join(logLevels, ", "), c.Log.Level)
	}

	if c.Cache.Enabled && !slices.Contains(backends, c.Cache.Driver) {
		p.addf("cache.driver must be one of: %s, got %s", strings.Join(backends, ", "), c.Cache.Driver)
	}
	if c.RateLimit.Enabled && !slices.Contains(backends, c.RateLimit.Backend) {
		p.addf("rate_limit.backend must be one of: %s, got %s", strings.Join(backends, ", "), c.RateLimit.Backend)
	}
	for _, proxy := range c.RateLimit.TrustedProxies {
		if _, err := netip.ParsePrefix(proxy); err == nil {
			continue
		}
		if _, err := netip.ParseAddr(proxy); err != nil {
			p.addf("rate_limit.trusted_proxies: %q is not an address or CIDR", proxy)
		}
	}

	c.Simulation.validate(&p)

	if len(p) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(p, "; "))
	}
	return nil
}

func (s SimulationConfig) validate(p *problems) {
	if s.DefaultTrialCount <= 0 {
		p.addf("simulation.default_trial_count must be positive, got %d", s.DefaultTrialCount)
	}
	if s.MaxTrialCount > 0 && s.DefaultTrialCount > s.MaxTrialCount {
		p.addf("simulation.default_trial_count (%d) exceeds max_trial_count (%d)", s.DefaultTrialCount, s.MaxTrialCount)
	}
	if s.DefaultRiskTolerance < 0 || s.DefaultRiskTolerance > 1 {
		p.addf("simulation.default_risk_tolerance must be in [0,1], got %v", s.DefaultRiskTolerance)
	}
	if s.MaxWorkers < 0 {
		p.addf("simulation.max_workers must be non-negative")
	}
	if s.RunTimeout < 0 {
		p.addf("simulation.run_timeout must be non-negative")
	}
}
