package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"guestrisk/pkg/logger"
)

const (
	envPrefix    = "GUESTRISK_"
	configEnvVar = "CONFIG_PATH"

	defaultAppName = "guestrisk-service"
	defaultPort    = 8080
)

// Loader загружает конфигурацию из разных источников
type Loader struct {
	k           *koanf.Koanf
	configPaths []string
	envPrefix   string
}

// NewLoader создаёт новый загрузчик конфигурации
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		k: koanf.New("."),
		configPaths: []string{
			"config.yaml",
			"config/config.yaml",
			"/etc/guestrisk/config.yaml",
		},
		envPrefix: envPrefix,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// LoaderOption - опция для конфигурации загрузчика
type LoaderOption func(*Loader)

// WithConfigPaths устанавливает пути поиска конфигурации
func WithConfigPaths(paths ...string) LoaderOption {
	return func(l *Loader) {
		l.configPaths = paths
	}
}

// WithEnvPrefix устанавливает префикс переменных окружения
func WithEnvPrefix(prefix string) LoaderOption {
	return func(l *Loader) {
		l.envPrefix = prefix
	}
}

// Load загружает конфигурацию с приоритетом:
// 1. Defaults (самый низкий)
// 2. Config file (yaml)
// 3. Environment variables (самый высокий)
func (l *Loader) Load() (*Config, error) {
	if err := l.loadDefaults(); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Файл не обязателен
	if err := l.loadConfigFile(); err != nil {
		logger.Log.Debug("config file skipped", "error", err)
	}

	if err := l.loadEnv(); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}

	var cfg Config
	if err := l.k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// defaults значения по умолчанию. Каждый ключ, который можно задать через
// окружение, должен присутствовать здесь, хотя бы пустым.
func defaults() map[string]any {
	return map[string]any{
		"app": map[string]any{
			"name":        defaultAppName,
			"version":     "1.0.0",
			"environment": "development",
			"debug":       false,
		},
		"http": map[string]any{
			"port":             defaultPort,
			"read_timeout":     30 * time.Second,
			"write_timeout":    2 * time.Minute,
			"shutdown_timeout": 10 * time.Second,
			"max_body_bytes":   1 << 20,
			"enable_h2c":       true,
			"docs_path":        "/docs",
			"cors": map[string]any{
				"enabled":           true,
				"allowed_origins":   []string{"*"},
				"allowed_methods":   []string{"GET", "POST", "OPTIONS"},
				"allowed_headers":   []string{"Content-Type", "Accept", "Origin", "X-Request-ID"},
				"exposed_headers":   []string{"X-Request-ID", "Retry-After"},
				"allow_credentials": false,
				"max_age":           86400,
			},
		},
		"log": map[string]any{
			"level":       "info",
			"format":      "json",
			"output":      "stdout",
			"file_path":   "",
			"max_size":    100,
			"max_backups": 3,
			"max_age":     7,
			"compress":    true,
		},
		"metrics": map[string]any{
			"enabled":   true,
			"port":      9090,
			"path":      "/metrics",
			"namespace": "guestrisk",
			"subsystem": "",
		},
		"tracing": map[string]any{
			"enabled":      false,
			"endpoint":     "localhost:4317",
			"service_name": defaultAppName,
			"sample_rate":  0.1,
		},
		"cache": map[string]any{
			"enabled":     true,
			"driver":      "memory",
			"host":        "localhost",
			"port":        6379,
			"password":    "",
			"db":          0,
			"default_ttl": 10 * time.Minute,
			"max_entries": 1000,
		},
		"rate_limit": map[string]any{
			"enabled":          true,
			"requests":         60,
			"window":           time.Minute,
			"strategy":         "sliding_window",
			"backend":          "memory",
			"burst_size":       10,
			"cleanup_interval": 5 * time.Minute,
			"redis_addr":       "",
			"trusted_proxies":  []string{},
		},
		"simulation": map[string]any{
			"default_trial_count":    10000,
			"default_risk_tolerance": 0.2,
			"max_trial_count":        1_000_000,
			"max_invited_count":      100_000,
			"max_sweep_points":       200,
			"max_workers":            0,
			"parallel":               true,
			"run_timeout":            60 * time.Second,
		},
	}
}

func (l *Loader) loadDefaults() error {
	return l.k.Load(confmap.Provider(defaults(), "."), nil)
}

// loadConfigFile загружает конфигурацию из файла
func (l *Loader) loadConfigFile() error {
	if configPath := os.Getenv(configEnvVar); configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return l.k.Load(file.Provider(configPath), yaml.Parser())
		}
	}

	for _, path := range l.configPaths {
		absPath, err := filepath.Abs(path)
		if err != nil {
			continue
		}

		if _, err := os.Stat(absPath); err == nil {
			return l.k.Load(file.Provider(absPath), yaml.Parser())
		}
	}

	return fmt.Errorf("config file not found in paths: %v", l.configPaths)
}

// loadEnv накладывает переменные окружения. Имя переменной без префикса
// сопоставляется с известным ключом заменой точек на подчёркивания, так
// GUESTRISK_HTTP_CORS_MAX_AGE попадает в http.cors.max_age, а не в http.cors.max.age.
// Для слайсов значение режется по запятым.
func (l *Loader) loadEnv() error {
	known := make(map[string]string)
	for _, key := range l.k.Keys() {
		known[strings.ReplaceAll(key, ".", "_")] = key
	}

	return l.k.Load(env.ProviderWithValue(l.envPrefix, ".", func(envKey, value string) (string, any) {
		name := strings.ToLower(strings.TrimPrefix(envKey, l.envPrefix))

		key, ok := known[name]
		if !ok {
			return strings.ReplaceAll(name, "_", "."), value
		}
		switch l.k.Get(key).(type) {
		case []string, []any:
			return key, splitAndTrim(value)
		default:
			return key, value
		}
	}), nil)
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// Load - удобная функция для загрузки с дефолтными настройками
func Load() (*Config, error) {
	return NewLoader().Load()
}

// LoadWithServiceDefaults загружает конфигурацию с переопределением для конкретного сервиса
func LoadWithServiceDefaults(serviceName string, port int) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	if cfg.HTTP.Port == defaultPort && port != 0 {
		cfg.HTTP.Port = port
	}

	if cfg.App.Name == defaultAppName {
		cfg.App.Name = serviceName
	}
	if cfg.Tracing.ServiceName == defaultAppName {
		cfg.Tracing.ServiceName = serviceName
	}

	return cfg, nil
}
