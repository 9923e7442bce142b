package analytics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tworjaga/flipper-rf-lab/internal/clustering"
	fp "github.com/tworjaga/flipper-rf-lab/internal/fixedpoint"
	"github.com/tworjaga/flipper-rf-lab/internal/metrics"
	"github.com/tworjaga/flipper-rf-lab/internal/models"
	"github.com/tworjaga/flipper-rf-lab/internal/ring"
)

// SessionConfig емкости буферов сессии
type SessionConfig struct {
	PulseCapacity     int
	FrameCapacity     int
	ClusterK          int
	ReclusterInterval int
	// ReclusterWorkers воркеры общего пула перекластеризации реестра
	ReclusterWorkers int
}

func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		PulseCapacity:     models.MaxPulseCount,
		FrameCapacity:     models.MaxFrameCount,
		ClusterK:          clustering.DefaultK,
		ReclusterInterval: clustering.DefaultReclusterInterval,
		ReclusterWorkers:  clustering.DefaultPoolWorkers,
	}
}

// Session сессия захвата. Буферы импульсов и кадров защищены мьютексом и
// пишутся приемником; анализ работает с неизменяемым снимком
type Session struct {
	ID        string
	CreatedAt time.Time

	mu            sync.Mutex
	pulses        *ring.Buffer[models.Pulse]
	frames        *ring.Buffer[models.Frame]
	rssi          *RSSIWindow
	rssiAnomalies int
	pending       models.Pulse
	hasPending    bool

	streaming *clustering.Streaming

	// analysisMu не дает запускать два анализа одной сессии одновременно
	analysisMu sync.Mutex
	last       atomic.Pointer[Report]
	// matchedFrames число кадров на момент последнего учтенного наблюдения
	// устройства; защищено analysisMu
	matchedFrames int
}

// Snapshot копия накопленных данных сессии
type Snapshot struct {
	Pulses        []models.Pulse
	Frames        []models.Frame
	DroppedPulses uint64
	DroppedFrames uint64
	RSSIAnomalies int
}

// NewSession создает сессию. Перекластеризация признаков импульсов идет в общем
// пуле; без пула она выполняется синхронно при приеме
func NewSession(cfg SessionConfig, clusterer *clustering.Engine, pool *clustering.Pool) *Session {
	d := DefaultSessionConfig()
	if cfg.PulseCapacity <= 0 {
		cfg.PulseCapacity = d.PulseCapacity
	}
	if cfg.FrameCapacity <= 0 {
		cfg.FrameCapacity = d.FrameCapacity
	}
	if cfg.ClusterK <= 0 {
		cfg.ClusterK = d.ClusterK
	}
	s := &Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		pulses:    ring.New[models.Pulse](cfg.PulseCapacity, ring.DropNewest),
		frames:    ring.New[models.Frame](cfg.FrameCapacity, ring.DropNewest),
		rssi:      NewRSSIWindow(RSSIWindowSize),
		streaming: clustering.NewStreaming(clusterer, cfg.ClusterK, cfg.PulseCapacity/2, cfg.ReclusterInterval),
	}
	if pool != nil {
		s.streaming.UsePool(pool)
	}
	return s
}

// AddPulse false если буфер импульсов заполнен. Каждая пара импульсов
// становится точкой потоковой кластеризации
func (s *Session) AddPulse(p models.Pulse) bool {
	s.mu.Lock()
	ok, _ := s.pulses.Push(p)
	var point clustering.DataPoint
	emit := false
	if ok {
		if s.hasPending {
			point = clustering.DataPoint{
				X: fp.FromIntSat(int64(s.pending.WidthUS)),
				Y: fp.FromIntSat(int64(p.WidthUS)),
			}
			emit = true
			s.hasPending = false
		} else {
			s.pending = p
			s.hasPending = true
		}
	}
	s.mu.Unlock()

	if emit {
		s.streaming.Add(point)
	}
	return ok
}

// AddFrame false если буфер кадров заполнен
func (s *Session) AddFrame(f models.Frame) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok, _ := s.frames.Push(f)
	if !ok {
		return false
	}
	if s.rssi.Anomalous(f.RSSIdBm) {
		s.rssiAnomalies++
		metrics.RSSIAnomalies.Inc()
	}
	s.rssi.Add(f.RSSIdBm)
	return true
}

// AddPulses принимает пакет; импульсы сверх емкости отбрасываются
func (s *Session) AddPulses(pulses []models.Pulse) models.IngestResult {
	var res models.IngestResult
	for _, p := range pulses {
		if s.AddPulse(p) {
			res.Accepted++
		} else {
			res.Dropped++
		}
	}
	return res
}

func (s *Session) AddFrames(frames []models.Frame) models.IngestResult {
	var res models.IngestResult
	for _, f := range frames {
		if s.AddFrame(f) {
			res.Accepted++
		} else {
			res.Dropped++
		}
	}
	return res
}

// Snapshot копирует накопленные данные
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Pulses:        s.pulses.Items(),
		Frames:        s.frames.Items(),
		DroppedPulses: s.pulses.Dropped(),
		DroppedFrames: s.frames.Dropped(),
		RSSIAnomalies: s.rssiAnomalies,
	}
}

// Counts число импульсов и кадров
func (s *Session) Counts() (pulses, frames int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pulses.Len(), s.frames.Len()
}

// Clusters последний результат потоковой кластеризации
func (s *Session) Clusters() clustering.Result {
	return s.streaming.Latest()
}

// FlushClusters перекластеризует накопленные точки немедленно
func (s *Session) FlushClusters() clustering.Result {
	return s.streaming.Flush()
}

// LastReport последний отчет анализа сессии
func (s *Session) LastReport() (Report, bool) {
	r := s.last.Load()
	if r == nil {
		return Report{}, false
	}
	return *r, true
}

// Close снимает сессию с пула перекластеризации
func (s *Session) Close() {
	s.streaming.Detach()
}
