package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig возвращается, если тюнинги не проходят валидацию
var ErrInvalidConfig = errors.New("invalid config")

// Config корневая структура конфигурации приложения.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	EventBus   EventBusConfig   `yaml:"eventbus"`
	Redis      RedisConfig      `yaml:"redis"`
	Storage    StorageConfig    `yaml:"storage"`
	Archive    ArchiveConfig    `yaml:"archive"`
	Auth       AuthConfig       `yaml:"auth"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Simulation SimulationConfig `yaml:"simulation"`
	AI         AIConfig         `yaml:"ai"`
}

type ServerConfig struct {
	RESTPort    int `yaml:"rest_port"`
	MetricsPort int `yaml:"metrics_port"`
}

// EventBusConfig: пустой URL означает in-memory шину
type EventBusConfig struct {
	URL       string `yaml:"url"`
	Stream    string `yaml:"stream"`
	Retention int    `yaml:"retention_hours"`
	Capacity  int    `yaml:"capacity"`
}

// RedisConfig: пустой Addr означает хранение поз в памяти
type RedisConfig struct {
	Addr         string `yaml:"addr"`
	Password     string `yaml:"password"`
	DB           int    `yaml:"db"`
	KeyPrefix    string `yaml:"key_prefix"`
	TTLSeconds   int    `yaml:"ttl_seconds"`
	BatchSize    int    `yaml:"batch_size"`
	BatchFlushMs int    `yaml:"batch_flush_ms"`
}

// StorageConfig выбирает бэкенд хранения поз: memory, redis, badger или mariadb
type StorageConfig struct {
	Backend    string `yaml:"backend"`
	BadgerPath string `yaml:"badger_path"`
	MariaDSN   string `yaml:"maria_dsn"`
}

// ArchiveConfig: пустой MongoURI отключает архив событий
type ArchiveConfig struct {
	MongoURI   string   `yaml:"mongo_uri"`
	Database   string   `yaml:"database"`
	Collection string   `yaml:"collection"`
	EventTypes []string `yaml:"event_types"`
}

type AuthConfig struct {
	// JWTSecret в base64; при пустой строке секрет генерируется при старте
	JWTSecret string `yaml:"jwt_secret"`
	// Disabled отключает проверку токенов у отладочных эндпоинтов
	Disabled bool `yaml:"disabled"`
	// Operators: логины операторов и bcrypt-хэши их паролей
	Operators map[string]string `yaml:"operators"`
	TokenTTL  time.Duration     `yaml:"token_ttl"`
}

type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
	// Endpoint host:port OTLP/HTTP; при пустом значении берутся переменные окружения OTEL_*
	Endpoint string `yaml:"endpoint"`
}

// SimulationConfig описывает headless-симуляцию сервера
type SimulationConfig struct {
	TickRate        int     `yaml:"tick_rate"`
	Seed            int64   `yaml:"seed"`
	Agents          int     `yaml:"agents"`
	ObstacleDensity float64 `yaml:"obstacle_density"`
	ObstacleRadius  float64 `yaml:"obstacle_radius"`
	Model           string  `yaml:"model"`
	// Скриптовая цель обходит окружность TargetRadius вокруг центра карты
	TargetRadius float64 `yaml:"target_radius"`
	TargetSpeed  float64 `yaml:"target_speed"`
	// PoseFlush: период сброса поз в хранилище
	PoseFlush time.Duration `yaml:"pose_flush"`
}

// GetRESTPort возвращает REST API порт с поддержкой fallback значений
func (s *ServerConfig) GetRESTPort() int {
	return getPortWithEnvFallback(s.RESTPort, "NPC_REST_PORT", 8088)
}

// GetMetricsPort возвращает Prometheus метрики порт с поддержкой fallback значений
func (s *ServerConfig) GetMetricsPort() int {
	return getPortWithEnvFallback(s.MetricsPort, "NPC_METRICS_PORT", 2112)
}

// TTL возвращает время жизни записей поз
func (r *RedisConfig) TTL() time.Duration {
	return time.Duration(r.TTLSeconds) * time.Second
}

// TickInterval возвращает длительность одного тика симуляции
func (s *SimulationConfig) TickInterval() time.Duration {
	rate := s.TickRate
	if rate <= 0 {
		rate = 30
	}
	return time.Second / time.Duration(rate)
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	if configPort > 0 {
		return configPort
	}

	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	return defaultPort
}

// Default возвращает полную конфигурацию по умолчанию
func Default() *Config {
	return &Config{
		EventBus: EventBusConfig{
			Stream:    "NPC_EVENTS",
			Retention: 24,
			Capacity:  1024,
		},
		Redis: RedisConfig{
			KeyPrefix:    "npc:pose:",
			TTLSeconds:   300,
			BatchSize:    100,
			BatchFlushMs: 100,
		},
		Storage: StorageConfig{
			Backend:    "memory",
			BadgerPath: "data/poses",
		},
		Archive: ArchiveConfig{
			Database:   "mmo_npc",
			Collection: "npc_events",
		},
		Auth: AuthConfig{
			TokenTTL: time.Hour,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "mmo-npc",
		},
		Simulation: SimulationConfig{
			TickRate:        30,
			Seed:            1,
			Agents:          6,
			ObstacleDensity: 0.08,
			ObstacleRadius:  1.2,
			Model:           "skeleton",
			TargetRadius:    20,
			TargetSpeed:     3,
			PoseFlush:       200 * time.Millisecond,
		},
		AI: DefaultAI(),
	}
}

// Load читает YAML файл конфигурации поверх значений по умолчанию.
// Если path == "", пытается прочитать путь из ENV NPC_CONFIG;
// если и он не задан, возвращает Default().
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("NPC_CONFIG")
		if path == "" {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.AI.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Parse разбирает YAML из памяти (используется тестами и встраиванием)
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.AI.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
