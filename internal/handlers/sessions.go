package handlers

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/tworjaga/flipper-rf-lab/internal/analytics"
	"github.com/tworjaga/flipper-rf-lab/internal/cache"
	"github.com/tworjaga/flipper-rf-lab/internal/clustering"
	"github.com/tworjaga/flipper-rf-lab/internal/export"
	"github.com/tworjaga/flipper-rf-lab/internal/metrics"
	"github.com/tworjaga/flipper-rf-lab/internal/models"
)

const (
	defaultLatestCount = 50
	maxLatestCount     = cache.MaxLatestReports
)

func sessionInfo(s *analytics.Session) models.SessionInfo {
	pulses, frames := s.Counts()
	return models.SessionInfo{ID: s.ID, CreatedAt: s.CreatedAt, Pulses: pulses, Frames: frames}
}

// CreateSession POST /sessions
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.registry.Create()
	if errors.Is(err, analytics.ErrTooManySessions) {
		h.respondError(w, err.Error(), http.StatusTooManyRequests)
		return
	}
	if err != nil {
		h.respondError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	metrics.ActiveSessions.Set(float64(h.registry.Len()))
	h.respondJSON(w, sessionInfo(s), http.StatusCreated)
}

// GetSession GET /sessions/{id}
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.respondJSON(w, sessionInfo(s), http.StatusOK)
}

// DeleteSession DELETE /sessions/{id}
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := h.registry.Delete(s.ID); err != nil {
		h.respondError(w, err.Error(), http.StatusNotFound)
		return
	}
	metrics.ActiveSessions.Set(float64(h.registry.Len()))
	w.WriteHeader(http.StatusNoContent)
}

// AddPulses POST /sessions/{id}/pulses
func (h *Handler) AddPulses(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var batch models.PulseBatch
	if !h.decode(w, r, &batch) {
		return
	}

	res := s.AddPulses(batch.Pulses)
	metrics.PulsesReceived.WithLabelValues("http").Add(float64(res.Accepted))
	metrics.SamplesDropped.WithLabelValues("pulse").Add(float64(res.Dropped))
	h.countSamples(r.Context(), cache.CounterPulses, res.Accepted)
	h.respondJSON(w, res, http.StatusOK)
}

// AddFrames POST /sessions/{id}/frames
func (h *Handler) AddFrames(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var batch models.FrameBatch
	if !h.decode(w, r, &batch) {
		return
	}

	res := s.AddFrames(batch.Frames)
	metrics.FramesReceived.WithLabelValues("http").Add(float64(res.Accepted))
	metrics.SamplesDropped.WithLabelValues("frame").Add(float64(res.Dropped))
	h.countSamples(r.Context(), cache.CounterFrames, res.Accepted)
	h.respondJSON(w, res, http.StatusOK)
}

func (h *Handler) countSamples(ctx context.Context, key string, n int) {
	if h.cache == nil || n == 0 {
		return
	}
	if _, err := h.cache.IncrementCounter(ctx, key, int64(n)); err != nil {
		h.logger.Warn("failed to update counter", zap.String("key", key), zap.Error(err))
	}
}

// Analyze POST /sessions/{id}/analyze. С ?async=true сессия ставится в очередь
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async {
		if !h.analyzer.Submit(s) {
			h.respondError(w, "Analysis queue full", http.StatusServiceUnavailable)
			return
		}
		h.respondJSON(w, map[string]any{"session_id": s.ID, "queued": true}, http.StatusAccepted)
		return
	}

	rep := h.analyzer.AnalyzeSync(r.Context(), s)
	if h.cache != nil {
		if err := h.cache.SaveReport(r.Context(), rep); err != nil {
			h.logger.Warn("failed to cache report", zap.String("session_id", s.ID), zap.Error(err))
		}
	}
	h.respondJSON(w, rep, http.StatusOK)
}

// GetReport GET /sessions/{id}/report?format=json|csv|text|xlsx.
// Отчет берется из сессии, иначе из кэша
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		h.respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	rep, found := h.lookupReport(r.Context(), r)
	if !found {
		h.respondError(w, "Report not found", http.StatusNotFound)
		return
	}

	var buf bytes.Buffer
	switch format {
	case export.FormatCSV:
		err = export.WriteCSV(&buf, rep)
	case export.FormatText:
		err = export.WriteText(&buf, rep)
	case export.FormatXLSX:
		err = export.WriteXLSX(&buf, rep, h.devices.List())
		w.Header().Set("Content-Disposition", `attachment; filename="report-`+rep.SessionID+`.xlsx"`)
	default:
		err = export.WriteJSON(&buf, rep)
	}
	if err != nil {
		h.logger.Error("failed to export report", zap.String("format", string(format)), zap.Error(err))
		h.respondError(w, "Failed to export report", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (h *Handler) lookupReport(ctx context.Context, r *http.Request) (analytics.Report, bool) {
	id := muxID(r)
	if s, err := h.registry.Get(id); err == nil {
		if rep, ok := s.LastReport(); ok {
			return rep, true
		}
	}
	if h.cache == nil {
		return analytics.Report{}, false
	}
	rep, err := h.cache.GetReport(ctx, id)
	if err != nil {
		metrics.CacheMisses.Inc()
		if !errors.Is(err, cache.ErrNotFound) {
			h.logger.Warn("failed to read cached report", zap.String("session_id", id), zap.Error(err))
		}
		return analytics.Report{}, false
	}
	metrics.CacheHits.Inc()
	return rep, true
}

// clustersResponse результат потоковой кластеризации и точки для экрана 128x64
type clustersResponse struct {
	Result  clustering.Result        `json:"result"`
	Display []clustering.ScreenPoint `json:"display"`
}

// GetClusters GET /sessions/{id}/clusters. С ?refresh=true перекластеризует сразу
func (h *Handler) GetClusters(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var res clustering.Result
	if refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh")); refresh {
		res = s.FlushClusters()
	} else {
		res = s.Clusters()
	}

	points := clustering.PulseFeatures(s.Snapshot().Pulses)
	// результат мог быть получен до прихода последних точек
	if len(points) > len(res.Assignments) {
		points = points[:len(res.Assignments)]
	}
	h.respondJSON(w, clustersResponse{
		Result:  res,
		Display: clustering.NormalizeForDisplay(points, res.Assignments),
	}, http.StatusOK)
}

// LatestReports GET /reports/latest?count=N
func (h *Handler) LatestReports(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.respondError(w, "Cache not available", http.StatusServiceUnavailable)
		return
	}

	count := int64(defaultLatestCount)
	if s := r.URL.Query().Get("count"); s != "" {
		if c, err := strconv.ParseInt(s, 10, 64); err == nil && c > 0 && c <= maxLatestCount {
			count = c
		}
	}

	reports, err := h.cache.LatestReports(r.Context(), count)
	if err != nil {
		h.respondError(w, "Failed to get reports: "+err.Error(), http.StatusInternalServerError)
		return
	}
	h.respondJSON(w, reports, http.StatusOK)
}
