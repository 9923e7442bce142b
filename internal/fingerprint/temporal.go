package fingerprint

import "time"

const (
	// HistoryLen глубина истории отпечатков устройства
	HistoryLen = 10
	// DriftThreshold порог дрейфа в процентах
	DriftThreshold = 20
)

// TemporalRecord история наблюдений устройства
type TemporalRecord struct {
	Name           string        `json:"name"`
	Baseline       RFFingerprint `json:"baseline"`
	history        [HistoryLen]RFFingerprint
	HistoryCount   uint32    `json:"history_count"`
	FirstSeen      time.Time `json:"first_seen"`
	LastSeen       time.Time `json:"last_seen"`
	MatchCount     uint32    `json:"match_count"`
	DriftDetected  bool      `json:"drift_detected"`
	DriftMagnitude uint8     `json:"drift_magnitude"`
}

func newTemporalRecord(name string, baseline RFFingerprint, now time.Time) *TemporalRecord {
	return &TemporalRecord{Name: name, Baseline: baseline, FirstSeen: now}
}

// observe добавляет отпечаток в кольцевую историю
func (r *TemporalRecord) observe(f RFFingerprint, now time.Time) {
	r.history[r.HistoryCount%HistoryLen] = f
	r.HistoryCount++
	r.LastSeen = now
	r.MatchCount++
}

// History отпечатки в порядке поступления, не более HistoryLen
func (r *TemporalRecord) History() []RFFingerprint {
	n := int(min(r.HistoryCount, HistoryLen))
	out := make([]RFFingerprint, n)
	start := int(r.HistoryCount) - n
	for i := 0; i < n; i++ {
		out[i] = r.history[(start+i)%HistoryLen]
	}
	return out
}

// DriftPercent дрейф относительно базового отпечатка: евклидово расстояние / 100, не более 100
func DriftPercent(baseline, current RFFingerprint) uint8 {
	return uint8(min(EuclideanDistance(baseline, current)/100, 100))
}

// checkDrift пересчитывает флаг дрейфа
func (r *TemporalRecord) checkDrift(current RFFingerprint) (uint8, bool) {
	pct := DriftPercent(r.Baseline, current)
	r.DriftMagnitude = pct
	r.DriftDetected = pct > DriftThreshold
	return pct, r.DriftDetected
}

// snapshot копия записи для выдачи наружу
func (r *TemporalRecord) snapshot() TemporalRecord {
	return *r
}
