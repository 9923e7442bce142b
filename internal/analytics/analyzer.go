// Package analytics связывает движки анализа с сессиями захвата: буферизует
// импульсы и кадры, выполняет анализ в пуле воркеров и выдает отчеты
package analytics

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/tworjaga/flipper-rf-lab/internal/clustering"
	"github.com/tworjaga/flipper-rf-lab/internal/fingerprint"
	"github.com/tworjaga/flipper-rf-lab/internal/inference"
	"github.com/tworjaga/flipper-rf-lab/internal/metrics"
	"github.com/tworjaga/flipper-rf-lab/internal/threat"
)

const (
	// DefaultQueueSize емкость очереди заданий анализа
	DefaultQueueSize = 64
	// DefaultResultsSize емкость канала отчетов; при заполнении отчеты отбрасываются
	DefaultResultsSize = 100
)

// Report результат анализа одного снимка сессии
type Report struct {
	SessionID     string    `json:"session_id"`
	CreatedAt     time.Time `json:"created_at"`
	Pulses        int       `json:"pulses"`
	Frames        int       `json:"frames"`
	DroppedPulses uint64    `json:"dropped_pulses"`
	DroppedFrames uint64    `json:"dropped_frames"`
	RSSIAnomalies int       `json:"rssi_anomalies"`

	Hypothesis  inference.Hypothesis       `json:"hypothesis"`
	Threat      *threat.Assessment         `json:"threat,omitempty"`
	Fingerprint *fingerprint.RFFingerprint `json:"fingerprint,omitempty"`
	Match       *fingerprint.MatchResult   `json:"match,omitempty"`
	Clusters    clustering.Result          `json:"clusters"`
	Signal      SignalStats                `json:"signal"`

	DurationMS float64 `json:"duration_ms"`
}

// Config параметры анализатора
type Config struct {
	QueueSize   int
	ResultsSize int
	ClusterK    int
	Inference   inference.Config
	Fingerprint fingerprint.Config
	Threat      threat.Config
}

func DefaultConfig() Config {
	return Config{
		QueueSize:   DefaultQueueSize,
		ResultsSize: DefaultResultsSize,
		ClusterK:    clustering.DefaultK,
		Inference:   inference.DefaultConfig(),
		Fingerprint: fingerprint.DefaultConfig(),
		Threat:      threat.DefaultConfig(),
	}
}

// Analyzer пул воркеров анализа сессий. Движки создаются на каждый анализ,
// общими остаются только база устройств и движок кластеризации без состояния
type Analyzer struct {
	cfg       Config
	logger    *zap.Logger
	devices   *fingerprint.Database
	clusterer *clustering.Engine

	jobs    chan *Session
	results chan Report
	stop    chan struct{}
	wg      sync.WaitGroup

	startOnce sync.Once
	stopOnce  sync.Once
	stopped   atomic.Bool
	workers   atomic.Int32
	runs      atomic.Int64
}

// NewAnalyzer создает анализатор; devices может быть nil, тогда сопоставление
// отпечатков не выполняется
func NewAnalyzer(cfg Config, devices *fingerprint.Database, clusterer *clustering.Engine, logger *zap.Logger) *Analyzer {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.ResultsSize <= 0 {
		cfg.ResultsSize = DefaultResultsSize
	}
	if cfg.ClusterK <= 0 {
		cfg.ClusterK = clustering.DefaultK
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if clusterer == nil {
		clusterer = clustering.NewEngine(clustering.DefaultConfig(), logger)
	}
	return &Analyzer{
		cfg:       cfg,
		logger:    logger,
		devices:   devices,
		clusterer: clusterer,
		jobs:      make(chan *Session, cfg.QueueSize),
		results:   make(chan Report, cfg.ResultsSize),
		stop:      make(chan struct{}),
	}
}

// Start запускает n воркеров. Повторные вызовы ничего не делают
func (a *Analyzer) Start(n int) {
	a.startOnce.Do(func() {
		if n <= 0 {
			n = 1
		}
		a.workers.Store(int32(n))
		for i := 0; i < n; i++ {
			a.wg.Add(1)
			go a.worker(i)
		}
		a.logger.Info("analyzer started", zap.Int("workers", n), zap.Int("queue", a.cfg.QueueSize))
	})
}

func (a *Analyzer) worker(id int) {
	defer a.wg.Done()
	for {
		select {
		case <-a.stop:
			return
		case s := <-a.jobs:
			r := a.AnalyzeSync(context.Background(), s)
			a.publish(r)
			a.logger.Debug("analysis job done",
				zap.Int("worker", id),
				zap.String("session_id", s.ID),
			)
		}
	}
}

func (a *Analyzer) publish(r Report) {
	select {
	case a.results <- r:
	default:
		a.logger.Warn("results channel full, report dropped", zap.String("session_id", r.SessionID))
	}
}

// Submit ставит сессию в очередь без блокировки. false если очередь
// заполнена или анализатор остановлен
func (a *Analyzer) Submit(s *Session) bool {
	if a.stopped.Load() {
		return false
	}
	select {
	case a.jobs <- s:
		return true
	default:
		metrics.AnalysisRejected.Inc()
		a.logger.Warn("analysis queue full", zap.String("session_id", s.ID))
		return false
	}
}

// Results канал готовых отчетов асинхронного анализа
func (a *Analyzer) Results() <-chan Report {
	return a.results
}

// Stop останавливает воркеров и дожидается их завершения.
// Задания, оставшиеся в очереди, не выполняются
func (a *Analyzer) Stop() {
	a.stopOnce.Do(func() {
		a.stopped.Store(true)
		close(a.stop)
		a.wg.Wait()
		close(a.results)
		a.logger.Info("analyzer stopped", zap.Int64("runs", a.runs.Load()))
	})
}

func (a *Analyzer) QueueLen() int { return len(a.jobs) }
func (a *Analyzer) QueueCap() int { return cap(a.jobs) }
func (a *Analyzer) Workers() int  { return int(a.workers.Load()) }

// Runs число выполненных анализов
func (a *Analyzer) Runs() int64 { return a.runs.Load() }

// AnalyzeSync анализирует снимок сессии всеми движками и сохраняет отчет
// как последний отчет сессии. Анализы одной сессии выполняются по очереди
func (a *Analyzer) AnalyzeSync(ctx context.Context, s *Session) Report {
	s.analysisMu.Lock()
	defer s.analysisMu.Unlock()

	start := time.Now()
	snap := s.Snapshot()
	r := Report{
		SessionID:     s.ID,
		CreatedAt:     start.UTC(),
		Pulses:        len(snap.Pulses),
		Frames:        len(snap.Frames),
		DroppedPulses: snap.DroppedPulses,
		DroppedFrames: snap.DroppedFrames,
		RSSIAnomalies: snap.RSSIAnomalies,
	}

	r.Hypothesis = a.infer(snap)
	r.Signal = signalStats(snap.Pulses, snap.Frames)
	r.Clusters = a.clusterer.KMeans(clustering.PulseFeatures(snap.Pulses), a.cfg.ClusterK)
	if len(snap.Frames) > 0 {
		assessment := a.assess(snap)
		r.Threat = &assessment
		if f, err := a.fingerprint(ctx, snap); err == nil {
			r.Fingerprint = &f
			if a.devices != nil {
				m := a.match(s, f, len(snap.Frames))
				r.Match = &m
			}
		} else {
			a.logger.Debug("fingerprint unavailable", zap.String("session_id", s.ID), zap.Error(err))
		}
	}

	elapsed := time.Since(start)
	r.DurationMS = float64(elapsed.Microseconds()) / 1000
	a.runs.Add(1)
	s.last.Store(&r)

	outcome := metrics.AnalysisOutcome{
		Seconds:          elapsed.Seconds(),
		KMeansIterations: r.Clusters.Iterations,
		Confidence:       r.Hypothesis.OverallConfidence,
		RiskLevel:        "NONE",
	}
	if r.Threat != nil {
		outcome.VulnerabilityScore = r.Threat.VulnerabilityScore
		outcome.RiskLevel = r.Threat.Level.String()
	}
	if r.Match != nil {
		outcome.Matched = r.Match.Matched
		outcome.Drift = r.Match.DriftDetected
	}
	metrics.ObserveAnalysis(outcome)

	a.logger.Info("session analyzed",
		zap.String("session_id", s.ID),
		zap.Int("pulses", r.Pulses),
		zap.Int("frames", r.Frames),
		zap.Stringer("modulation", r.Hypothesis.Modulation),
		zap.Uint8("confidence", r.Hypothesis.OverallConfidence),
		zap.Duration("elapsed", elapsed),
	)
	return r
}

// match учитывает наблюдение устройства только при новых кадрах в сессии.
// Повторный анализ того же захвата сопоставляет без изменения базы
func (a *Analyzer) match(s *Session, f fingerprint.RFFingerprint, frames int) fingerprint.MatchResult {
	if frames <= s.matchedFrames {
		return a.devices.Best(f)
	}
	s.matchedFrames = frames
	return a.devices.Match(f)
}

func (a *Analyzer) infer(snap Snapshot) inference.Hypothesis {
	e := inference.NewEngine(a.cfg.Inference, a.logger)
	for _, p := range snap.Pulses {
		e.AddPulse(p)
	}
	for _, f := range snap.Frames {
		e.AddFrame(f)
	}
	return e.Analyze()
}

func (a *Analyzer) assess(snap Snapshot) threat.Assessment {
	e := threat.NewEngine(a.cfg.Threat, a.logger)
	e.Start()
	for _, f := range snap.Frames {
		e.AddFrame(f)
	}
	return e.Assess()
}

// fingerprint строит отпечаток по кадрам снимка; при нехватке кадров
// до полного захвата отпечаток строится по тем, что есть
func (a *Analyzer) fingerprint(ctx context.Context, snap Snapshot) (fingerprint.RFFingerprint, error) {
	e := fingerprint.NewEngine(a.cfg.Fingerprint, nil, a.logger)
	e.StartCapture()
	for _, f := range snap.Frames {
		e.ProcessFrame(ctx, f)
	}
	f, err := e.Finish()
	if err != nil {
		return fingerprint.RFFingerprint{}, errors.Join(ErrNoFingerprint, err)
	}
	return f, nil
}
