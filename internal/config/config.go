// Package config загружает конфигурацию сервиса из окружения и .env
package config

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ServerConfig параметры HTTP сервера
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// RedisConfig подключение к Redis
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Enabled  bool
}

// SQLiteConfig файл базы устройств
type SQLiteConfig struct {
	Path    string
	Enabled bool
}

// MQTTConfig подключение к брокеру для приема захватов
type MQTTConfig struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	QoS         byte
	Enabled     bool
}

// LogConfig уровень и формат журнала
type LogConfig struct {
	Level  string
	Format string
}

// AnalysisConfig емкости буферов и параметры движков
type AnalysisConfig struct {
	WorkerCount        int
	QueueSize          int
	MaxSessions        int
	PulseCapacity      int
	FrameCapacity      int
	ClusterK           int
	KMeansIterations   int
	ReclusterInterval  int
	ReclusterWorkers   int
	FingerprintSamples int
	DeviceCapacity     int
}

// Config конфигурация сервиса
type Config struct {
	Server   ServerConfig
	Redis    RedisConfig
	SQLite   SQLiteConfig
	MQTT     MQTTConfig
	Log      LogConfig
	Analysis AnalysisConfig
}

// Load читает .env (если есть) и переменные окружения
func Load() (*Config, error) {
	// .env необязателен
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Addr:         getEnv("SERVER_ADDR", ":8080"),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:  getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			Enabled:  getEnvBool("REDIS_ENABLED", true),
		},
		SQLite: SQLiteConfig{
			Path:    getEnv("SQLITE_PATH", "rflab.db"),
			Enabled: getEnvBool("SQLITE_ENABLED", true),
		},
		MQTT: MQTTConfig{
			Broker:      getEnv("MQTT_BROKER", "tcp://localhost:1883"),
			ClientID:    getEnv("MQTT_CLIENT_ID", "rflab"),
			Username:    getEnv("MQTT_USERNAME", ""),
			Password:    getEnv("MQTT_PASSWORD", ""),
			TopicPrefix: strings.TrimSuffix(getEnv("MQTT_TOPIC_PREFIX", "rflab"), "/"),
			QoS:         byte(getEnvInt("MQTT_QOS", 1)),
			Enabled:     getEnvBool("MQTT_ENABLED", false),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Analysis: AnalysisConfig{
			WorkerCount:        getEnvInt("WORKER_COUNT", runtime.NumCPU()),
			QueueSize:          getEnvInt("ANALYSIS_QUEUE_SIZE", 64),
			MaxSessions:        getEnvInt("MAX_SESSIONS", 64),
			PulseCapacity:      getEnvInt("PULSE_CAPACITY", 4096),
			FrameCapacity:      getEnvInt("FRAME_CAPACITY", 256),
			ClusterK:           getEnvInt("CLUSTER_K", 3),
			KMeansIterations:   getEnvInt("KMEANS_ITERATIONS", 100),
			ReclusterInterval:  getEnvInt("RECLUSTER_INTERVAL", 50),
			ReclusterWorkers:   getEnvInt("RECLUSTER_WORKERS", 2),
			FingerprintSamples: getEnvInt("FINGERPRINT_SAMPLES", 1000),
			DeviceCapacity:     getEnvInt("DEVICE_CAPACITY", 128),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет емкости и число воркеров
func (c *Config) Validate() error {
	var errs []error
	positive := map[string]int{
		"WORKER_COUNT":        c.Analysis.WorkerCount,
		"ANALYSIS_QUEUE_SIZE": c.Analysis.QueueSize,
		"MAX_SESSIONS":        c.Analysis.MaxSessions,
		"PULSE_CAPACITY":      c.Analysis.PulseCapacity,
		"FRAME_CAPACITY":      c.Analysis.FrameCapacity,
		"CLUSTER_K":           c.Analysis.ClusterK,
		"KMEANS_ITERATIONS":   c.Analysis.KMeansIterations,
		"RECLUSTER_INTERVAL":  c.Analysis.ReclusterInterval,
		"RECLUSTER_WORKERS":   c.Analysis.ReclusterWorkers,
		"FINGERPRINT_SAMPLES": c.Analysis.FingerprintSamples,
		"DEVICE_CAPACITY":     c.Analysis.DeviceCapacity,
	}
	for _, key := range slices.Sorted(maps.Keys(positive)) {
		if positive[key] <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", key, positive[key]))
		}
	}
	if c.MQTT.QoS > 2 {
		errs = append(errs, fmt.Errorf("MQTT_QOS must be 0, 1 or 2, got %d", c.MQTT.QoS))
	}
	if c.SQLite.Enabled && c.SQLite.Path == "" {
		errs = append(errs, errors.New("SQLITE_PATH is required when SQLite is enabled"))
	}
	return errors.Join(errs...)
}

// getEnv получает переменную окружения со значением по умолчанию
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt целочисленная переменная; некорректное значение заменяется умолчанием
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
