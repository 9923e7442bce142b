package fingerprint

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/tworjaga/flipper-rf-lab/internal/models"
	"github.com/tworjaga/flipper-rf-lab/internal/ring"
	"github.com/tworjaga/flipper-rf-lab/internal/stats"
)

// State состояние захвата
type State int

const (
	StateIdle State = iota
	StateSampling
	StateAnalyzing
	StateMatching
	StateLearning
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateSampling:
		return "SAMPLING"
	case StateAnalyzing:
		return "ANALYZING"
	case StateMatching:
		return "MATCHING"
	case StateLearning:
		return "LEARNING"
	default:
		return "UNKNOWN"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

const (
	// DefaultSampleCount число кадров для полного отпечатка
	DefaultSampleCount = 1000
	// DefaultSlopeSamples емкость буфера отсчетов RSSI для крутизны фронтов
	DefaultSlopeSamples = 256
	// DefaultMinSamples минимум отсчетов для каждого вида анализа
	DefaultMinSamples = 10
	// rssiOffset сдвиг dBm в беззнаковый байт
	rssiOffset = 128
	maxPPM     = 255
)

// Config параметры захвата отпечатка
type Config struct {
	SampleCount  int
	SlopeSamples int
	MinSamples   int
}

func DefaultConfig() Config {
	return Config{
		SampleCount:  DefaultSampleCount,
		SlopeSamples: DefaultSlopeSamples,
		MinSamples:   DefaultMinSamples,
	}
}

// Engine захват и анализ отпечатка одного передатчика. База устройств общая
// и передается извне; сам движок не безопасен для параллельного использования
type Engine struct {
	cfg    Config
	logger *zap.Logger
	db     *Database

	state     State
	intervals *ring.Buffer[uint32]
	symbols   *ring.Buffer[uint32]
	slopes    *ring.Buffer[uint8]
	envelope  [SignatureLen]uint8

	framesCaptured uint32
	lastTimestamp  uint32
	haveTimestamp  bool

	current      RFFingerprint
	ready        bool
	learningName string
}

// NewEngine создает движок; db может быть nil, тогда сопоставление недоступно
func NewEngine(cfg Config, db *Database, logger *zap.Logger) *Engine {
	d := DefaultConfig()
	if cfg.SampleCount <= 0 {
		cfg.SampleCount = d.SampleCount
	}
	if cfg.SlopeSamples <= 0 {
		cfg.SlopeSamples = d.SlopeSamples
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = d.MinSamples
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:       cfg,
		logger:    logger,
		db:        db,
		intervals: ring.New[uint32](cfg.SampleCount, ring.DropNewest),
		symbols:   ring.New[uint32](cfg.SampleCount, ring.DropNewest),
		slopes:    ring.New[uint8](cfg.SlopeSamples, ring.DropNewest),
	}
}

func (e *Engine) reset() {
	e.intervals.Reset()
	e.symbols.Reset()
	e.slopes.Reset()
	e.envelope = [SignatureLen]uint8{}
	e.framesCaptured = 0
	e.lastTimestamp = 0
	e.haveTimestamp = false
	e.current = RFFingerprint{}
	e.ready = false
	e.learningName = ""
}

// StartCapture сбрасывает состояние и начинает сбор кадров
func (e *Engine) StartCapture() {
	e.reset()
	e.state = StateSampling
	e.logger.Info("fingerprint capture started")
}

// StopCapture прерывает сбор без анализа
func (e *Engine) StopCapture() {
	e.state = StateIdle
	e.logger.Info("fingerprint capture stopped")
}

// StartLearning начинает захват отпечатка для регистрации под именем
func (e *Engine) StartLearning(name string) error {
	name = NormalizeName(name)
	if name == "" {
		return ErrInvalidName
	}
	e.reset()
	e.state = StateLearning
	e.learningName = name
	e.logger.Info("fingerprint learning started", zap.String("device", name))
	return nil
}

// StopLearning завершает обучение: анализирует собранное и регистрирует устройство
func (e *Engine) StopLearning(ctx context.Context) (RFFingerprint, int, error) {
	if e.state != StateLearning {
		return RFFingerprint{}, -1, fmt.Errorf("%w: not learning", ErrNotReady)
	}
	e.generate()
	return e.register(ctx)
}

func (e *Engine) register(ctx context.Context) (RFFingerprint, int, error) {
	name := e.learningName
	e.learningName = ""
	if e.db == nil {
		return e.current, -1, fmt.Errorf("register %s: no device database", name)
	}
	id, err := e.db.Add(ctx, e.current, name)
	if err != nil {
		return e.current, -1, err
	}
	return e.current, id, nil
}

func (e *Engine) collecting() bool {
	return e.state == StateSampling || e.state == StateLearning
}

// IsCapturing true во время сбора кадров
func (e *Engine) IsCapturing() bool { return e.collecting() }

func (e *Engine) State() State { return e.state }

// ProcessFrame учитывает кадр: интервал до предыдущего кадра, время символа
// и точку огибающей RSSI. По достижении SampleCount кадров строится отпечаток
func (e *Engine) ProcessFrame(ctx context.Context, f models.Frame) {
	if !e.collecting() {
		return
	}

	if e.haveTimestamp {
		e.intervals.Push(f.TimestampUS - e.lastTimestamp)
	}
	e.lastTimestamp = f.TimestampUS
	e.haveTimestamp = true

	if f.Length > 0 {
		e.symbols.Push(f.DurationUS / uint32(f.Length))
	}

	level := rssiLevel(f.RSSIdBm)
	e.envelope[e.framesCaptured%SignatureLen] = level
	e.slopes.Push(level)
	e.framesCaptured++

	if e.framesCaptured >= uint32(e.cfg.SampleCount) {
		learning := e.state == StateLearning
		e.generate()
		e.logger.Info("fingerprint capture complete", zap.Uint32("frames", e.framesCaptured))
		if learning {
			if _, _, err := e.register(ctx); err != nil {
				e.logger.Error("failed to register learned device", zap.Error(err))
			}
		}
	}
}

// AddRSSISample добавляет отдельный отсчет RSSI для оценки крутизны фронтов
func (e *Engine) AddRSSISample(rssi uint8) bool {
	if !e.collecting() {
		return false
	}
	ok, _ := e.slopes.Push(rssi)
	return ok
}

func rssiLevel(dbm int16) uint8 {
	v := int(dbm) + rssiOffset
	return uint8(max(0, min(v, 255)))
}

// Finish строит отпечаток по уже собранным кадрам, не дожидаясь SampleCount
func (e *Engine) Finish() (RFFingerprint, error) {
	if e.ready {
		return e.current, nil
	}
	if !e.collecting() || e.framesCaptured == 0 {
		return RFFingerprint{}, ErrNotReady
	}
	if e.state == StateLearning {
		return RFFingerprint{}, fmt.Errorf("%w: use StopLearning in learning mode", ErrNotReady)
	}
	e.generate()
	return e.current, nil
}

// Fingerprint последний построенный отпечаток
func (e *Engine) Fingerprint() (RFFingerprint, bool) {
	return e.current, e.ready
}

// Progress процент собранных кадров; вне сбора 100
func (e *Engine) Progress() uint8 {
	if !e.collecting() {
		return 100
	}
	return uint8(min(uint64(e.framesCaptured)*100/uint64(e.cfg.SampleCount), 100))
}

func (e *Engine) FramesCaptured() uint32 { return e.framesCaptured }

// Match сопоставляет построенный отпечаток с базой устройств
func (e *Engine) Match() (MatchResult, error) {
	if !e.ready {
		return MatchResult{DeviceID: -1}, ErrNotReady
	}
	if e.db == nil {
		return MatchResult{DeviceID: -1}, nil
	}
	res := e.db.Match(e.current)
	if res.Matched {
		e.logger.Info("device matched",
			zap.String("device", res.Name),
			zap.Uint8("confidence", res.Confidence),
		)
	}
	return res, nil
}

// generate анализ собранных данных; состояние проходит Analyzing и замирает в Matching
func (e *Engine) generate() {
	e.state = StateAnalyzing
	var f RFFingerprint
	minSamples := e.cfg.MinSamples

	if e.intervals.Len() >= minSamples {
		s := stats.Summarize(e.intervals.Items())
		f.DriftMean = s.Mean
		f.DriftVariance = s.Variance
	}

	if e.slopes.Len() >= minSamples {
		f.RiseSlopeAvg, f.FallSlopeAvg = slopeAverages(e.slopes.Items())
	}

	if e.symbols.Len() >= minSamples {
		s := stats.Summarize(e.symbols.Items())
		if s.Mean > 0 {
			ppm := uint64(s.StdDev) * 1_000_000 / uint64(s.Mean)
			f.ClockStabilityPPM = uint8(min(ppm, maxPPM))
		}
	}

	f.RSSISignature = e.envelope
	e.current = f.Sealed()
	e.ready = true
	e.state = StateMatching
}

// slopeAverages средние положительные и отрицательные приращения между соседними отсчетами
func slopeAverages(samples []uint8) (rise, fall uint16) {
	var riseSum, fallSum, riseN, fallN uint32
	for i := 1; i < len(samples); i++ {
		d := int32(samples[i]) - int32(samples[i-1])
		switch {
		case d > 0:
			riseSum += uint32(d)
			riseN++
		case d < 0:
			fallSum += uint32(-d)
			fallN++
		}
	}
	if riseN > 0 {
		rise = uint16(riseSum / riseN)
	}
	if fallN > 0 {
		fall = uint16(fallSum / fallN)
	}
	return rise, fall
}
