package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	for _, k := range []string{"SERVER_ADDR", "REDIS_ADDR", "MQTT_ENABLED", "PULSE_CAPACITY", "WORKER_COUNT", "LOG_LEVEL"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.False(t, cfg.MQTT.Enabled)
	assert.Equal(t, "rflab", cfg.MQTT.TopicPrefix)
	assert.Equal(t, 4096, cfg.Analysis.PulseCapacity)
	assert.Equal(t, 256, cfg.Analysis.FrameCapacity)
	assert.Equal(t, 100, cfg.Analysis.KMeansIterations)
	assert.Equal(t, 50, cfg.Analysis.ReclusterInterval)
	assert.Equal(t, 2, cfg.Analysis.ReclusterWorkers)
	assert.Equal(t, 1000, cfg.Analysis.FingerprintSamples)
	assert.Equal(t, 128, cfg.Analysis.DeviceCapacity)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Positive(t, cfg.Analysis.WorkerCount)
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	t.Setenv("SERVER_ADDR", ":9090")
	t.Setenv("SERVER_READ_TIMEOUT", "2s")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("REDIS_ENABLED", "false")
	t.Setenv("MQTT_ENABLED", "true")
	t.Setenv("MQTT_TOPIC_PREFIX", "lab/")
	t.Setenv("PULSE_CAPACITY", "1024")
	t.Setenv("LOG_FORMAT", "console")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 2*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.False(t, cfg.Redis.Enabled)
	assert.True(t, cfg.MQTT.Enabled)
	assert.Equal(t, "lab", cfg.MQTT.TopicPrefix)
	assert.Equal(t, 1024, cfg.Analysis.PulseCapacity)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("REDIS_DB", "abc")
	t.Setenv("SERVER_IDLE_TIMEOUT", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Redis.DB)
	assert.Equal(t, 60*time.Second, cfg.Server.IdleTimeout)
}

func TestValidate(t *testing.T) {
	t.Setenv("PULSE_CAPACITY", "0")
	t.Setenv("WORKER_COUNT", "-1")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PULSE_CAPACITY must be positive")
	assert.Contains(t, err.Error(), "WORKER_COUNT must be positive")

	cfg := &Config{Analysis: AnalysisConfig{
		WorkerCount: 1, QueueSize: 1, MaxSessions: 1, PulseCapacity: 1, FrameCapacity: 1,
		ClusterK: 1, KMeansIterations: 1, ReclusterInterval: 1, ReclusterWorkers: 1,
		FingerprintSamples: 1, DeviceCapacity: 1,
	}}
	assert.NoError(t, cfg.Validate())

	cfg.MQTT.QoS = 3
	cfg.SQLite.Enabled = true
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MQTT_QOS")
	assert.Contains(t, err.Error(), "SQLITE_PATH")
}
