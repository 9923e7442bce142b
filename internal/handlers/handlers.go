// Package handlers HTTP API сервиса анализа радиосигналов
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/tworjaga/flipper-rf-lab/internal/analytics"
	"github.com/tworjaga/flipper-rf-lab/internal/cache"
	"github.com/tworjaga/flipper-rf-lab/internal/fingerprint"
	"github.com/tworjaga/flipper-rf-lab/internal/metrics"
	"github.com/tworjaga/flipper-rf-lab/internal/storage"
)

// maxBodyBytes предел тела запроса
const maxBodyBytes = 4 << 20

// ConnChecker состояние подключения к брокеру
type ConnChecker interface {
	IsConnected() bool
}

// Deps зависимости обработчиков. Cache, Store и MQTT могут быть nil
type Deps struct {
	Registry *analytics.Registry
	Analyzer *analytics.Analyzer
	Devices  *fingerprint.Database
	Cache    *cache.RedisCache
	Store    *storage.SQLiteStore
	MQTT     ConnChecker
	Logger   *zap.Logger
}

// Handler обработчики HTTP API
type Handler struct {
	registry  *analytics.Registry
	analyzer  *analytics.Analyzer
	devices   *fingerprint.Database
	cache     *cache.RedisCache
	store     *storage.SQLiteStore
	mqtt      ConnChecker
	logger    *zap.Logger
	startTime time.Time
}

func NewHandler(d Deps) *Handler {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		registry:  d.Registry,
		analyzer:  d.Analyzer,
		devices:   d.Devices,
		cache:     d.Cache,
		store:     d.Store,
		mqtt:      d.MQTT,
		logger:    logger,
		startTime: time.Now(),
	}
}

// Routes регистрирует маршруты API
func (h *Handler) Routes(r *mux.Router) {
	r.HandleFunc("/sessions", h.instrument("/sessions", h.CreateSession)).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}", h.instrument("/sessions/{id}", h.GetSession)).Methods(http.MethodGet)
	r.HandleFunc("/sessions/{id}", h.instrument("/sessions/{id}", h.DeleteSession)).Methods(http.MethodDelete)
	r.HandleFunc("/sessions/{id}/pulses", h.instrument("/sessions/{id}/pulses", h.AddPulses)).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}/frames", h.instrument("/sessions/{id}/frames", h.AddFrames)).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}/analyze", h.instrument("/sessions/{id}/analyze", h.Analyze)).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}/report", h.instrument("/sessions/{id}/report", h.GetReport)).Methods(http.MethodGet)
	r.HandleFunc("/sessions/{id}/clusters", h.instrument("/sessions/{id}/clusters", h.GetClusters)).Methods(http.MethodGet)
	r.HandleFunc("/reports/latest", h.instrument("/reports/latest", h.LatestReports)).Methods(http.MethodGet)

	r.HandleFunc("/devices", h.instrument("/devices", h.ListDevices)).Methods(http.MethodGet)
	r.HandleFunc("/devices", h.instrument("/devices", h.RegisterDevice)).Methods(http.MethodPost)
	r.HandleFunc("/devices/verify", h.instrument("/devices/verify", h.VerifyDevice)).Methods(http.MethodPost)
	r.HandleFunc("/devices/{id}", h.instrument("/devices/{id}", h.DeleteDevice)).Methods(http.MethodDelete)

	r.HandleFunc("/health", h.HealthHandler).Methods(http.MethodGet)
	r.HandleFunc("/stats", h.instrument("/stats", h.StatsHandler)).Methods(http.MethodGet)
	r.Handle("/prometheus", promhttp.Handler())
}

// statusRecorder запоминает код ответа для метрик
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// instrument считает запросы и их длительность по шаблону маршрута
func (h *Handler) instrument(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues(endpoint, r.Method))
		defer timer.ObserveDuration()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		metrics.RequestsTotal.WithLabelValues(endpoint, r.Method, strconv.Itoa(rec.status)).Inc()
	}
}

// session сессия из пути запроса; при ошибке ответ уже отправлен
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*analytics.Session, bool) {
	s, err := h.registry.Get(muxID(r))
	if err != nil {
		h.respondError(w, err.Error(), http.StatusNotFound)
		return nil, false
	}
	return s, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.respondError(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return false
		}
		h.respondError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// respondJSON отправляет JSON ответ
func (h *Handler) respondJSON(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn("failed to write response", zap.Error(err))
	}
}

// respondError отправляет ошибку в JSON формате
func (h *Handler) respondError(w http.ResponseWriter, message string, status int) {
	h.respondJSON(w, map[string]string{"error": message}, status)
}

func muxID(r *http.Request) string {
	return mux.Vars(r)["id"]
}
