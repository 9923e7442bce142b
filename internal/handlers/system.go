package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/tworjaga/flipper-rf-lab/internal/cache"
	"github.com/tworjaga/flipper-rf-lab/internal/metrics"
	"github.com/tworjaga/flipper-rf-lab/internal/models"
)

const (
	statusConnected    = "connected"
	statusDisconnected = "disconnected"
	statusDisabled     = "disabled"
)

// HealthHandler GET /health. Недоступность необязательных зависимостей
// переводит статус в degraded, но не в ошибку
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	status := models.HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Redis:     statusDisabled,
		SQLite:    statusDisabled,
		MQTT:      statusDisabled,
		Uptime:    time.Since(h.startTime).String(),
	}

	check := func(ok bool) string {
		if ok {
			return statusConnected
		}
		status.Status = "degraded"
		return statusDisconnected
	}
	if h.cache != nil {
		status.Redis = check(h.cache.Ping(r.Context()) == nil)
	}
	if h.store != nil {
		status.SQLite = check(h.store.Ping(r.Context()) == nil)
	}
	if h.mqtt != nil {
		status.MQTT = check(h.mqtt.IsConnected())
	}

	h.respondJSON(w, status, http.StatusOK)
}

// StatsHandler GET /stats
func (h *Handler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	metrics.ActiveGoroutines.Set(float64(runtime.NumGoroutine()))

	resp := models.StatsResponse{
		ActiveSessions: h.registry.Len(),
		KnownDevices:   h.devices.Len(),
		DeviceCapacity: h.devices.Cap(),
		QueueLength:    h.analyzer.QueueLen(),
		QueueCapacity:  h.analyzer.QueueCap(),
		Workers:        h.analyzer.Workers(),
		AnalysesTotal:  h.analyzer.Runs(),
	}
	if h.cache != nil {
		ctx := r.Context()
		resp.PulsesTotal, _ = h.cache.GetCounter(ctx, cache.CounterPulses)
		resp.FramesTotal, _ = h.cache.GetCounter(ctx, cache.CounterFrames)
		if n, err := h.cache.GetCounter(ctx, cache.CounterAnalyses); err == nil && n > resp.AnalysesTotal {
			resp.AnalysesTotal = n
		}
	}
	h.respondJSON(w, resp, http.StatusOK)
}
