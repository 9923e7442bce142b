package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/tworjaga/flipper-rf-lab/internal/fingerprint"
	"github.com/tworjaga/flipper-rf-lab/internal/metrics"
	"github.com/tworjaga/flipper-rf-lab/internal/models"
)

// deviceView запись базы с идентификатором
type deviceView struct {
	ID          int       `json:"id"`
	Name        string    `json:"name"`
	MatchCount  uint32    `json:"match_count"`
	LastSeen    time.Time `json:"last_seen"`
	Fingerprint string    `json:"fingerprint"`
}

// ListDevices GET /devices
func (h *Handler) ListDevices(w http.ResponseWriter, r *http.Request) {
	devices := h.devices.List()
	out := make([]deviceView, len(devices))
	for i, d := range devices {
		out[i] = deviceView{
			ID:          i,
			Name:        d.Name,
			MatchCount:  d.MatchCount,
			LastSeen:    d.LastSeen,
			Fingerprint: d.Fingerprint.String(),
		}
	}
	h.respondJSON(w, out, http.StatusOK)
}

// sessionFingerprint отпечаток из последнего отчета сессии
func (h *Handler) sessionFingerprint(w http.ResponseWriter, sessionID string) (fingerprint.RFFingerprint, bool) {
	s, err := h.registry.Get(sessionID)
	if err != nil {
		h.respondError(w, err.Error(), http.StatusNotFound)
		return fingerprint.RFFingerprint{}, false
	}
	rep, ok := s.LastReport()
	if !ok || rep.Fingerprint == nil {
		h.respondError(w, "Session has no fingerprint, run analysis first", http.StatusConflict)
		return fingerprint.RFFingerprint{}, false
	}
	return *rep.Fingerprint, true
}

// RegisterDevice POST /devices регистрирует отпечаток сессии под именем
func (h *Handler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterDeviceRequest
	if !h.decode(w, r, &req) {
		return
	}
	f, ok := h.sessionFingerprint(w, req.SessionID)
	if !ok {
		return
	}

	id, err := h.devices.Add(r.Context(), f, req.Name)
	switch {
	case errors.Is(err, fingerprint.ErrInvalidName):
		h.respondError(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, fingerprint.ErrDeviceExists):
		h.respondError(w, err.Error(), http.StatusConflict)
		return
	case errors.Is(err, fingerprint.ErrDatabaseFull):
		h.respondError(w, err.Error(), http.StatusInsufficientStorage)
		return
	case err != nil:
		h.respondError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	metrics.KnownDevices.Set(float64(h.devices.Len()))
	h.respondJSON(w, models.RegisterDeviceResponse{ID: id, Name: fingerprint.NormalizeName(req.Name)}, http.StatusCreated)
}

// DeleteDevice DELETE /devices/{id}; идентификаторы последующих устройств сдвигаются
func (h *Handler) DeleteDevice(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(muxID(r))
	if err != nil {
		h.respondError(w, "Invalid device id", http.StatusBadRequest)
		return
	}
	err = h.devices.Remove(r.Context(), id)
	if errors.Is(err, fingerprint.ErrDeviceNotFound) {
		h.respondError(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		h.respondError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	metrics.KnownDevices.Set(float64(h.devices.Len()))
	w.WriteHeader(http.StatusNoContent)
}

// VerifyDevice POST /devices/verify проверяет, что отпечаток сессии
// принадлежит заявленному устройству
func (h *Handler) VerifyDevice(w http.ResponseWriter, r *http.Request) {
	var req models.VerifyDeviceRequest
	if !h.decode(w, r, &req) {
		return
	}
	if _, found := h.devices.FindByName(req.Claimed); !found {
		h.respondError(w, fingerprint.ErrDeviceNotFound.Error(), http.StatusNotFound)
		return
	}
	f, ok := h.sessionFingerprint(w, req.SessionID)
	if !ok {
		return
	}

	conf := h.devices.DetectCounterfeit(f, req.Claimed)
	h.respondJSON(w, models.VerifyDeviceResponse{
		Claimed:     fingerprint.NormalizeName(req.Claimed),
		Confidence:  conf,
		Counterfeit: conf < fingerprint.ConfidenceLow,
	}, http.StatusOK)
}
