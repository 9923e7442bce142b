// Package inference строит гипотезу о неизвестном радиопротоколе
// по длительностям импульсов и захваченным кадрам
package inference

import (
	"go.uber.org/zap"

	"github.com/tworjaga/flipper-rf-lab/internal/models"
	"github.com/tworjaga/flipper-rf-lab/internal/ring"
)

// Engine накапливает импульсы и кадры одной сессии и выполняет анализ.
// Не безопасен для одновременного использования из нескольких горутин
type Engine struct {
	cfg    Config
	logger *zap.Logger

	pulses *ring.Buffer[models.Pulse]
	frames *ring.Buffer[models.Frame]

	marks    TimingHistogram
	spaces   TimingHistogram
	clusters []PulseCluster

	hyp Hypothesis
}

// NewEngine создает движок. Переполнение буферов отбрасывает новые отсчеты
func NewEngine(cfg Config, logger *zap.Logger) *Engine {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:    cfg,
		logger: logger,
		pulses: ring.New[models.Pulse](cfg.PulseCapacity, ring.DropNewest),
		frames: ring.New[models.Frame](cfg.FrameCapacity, ring.DropNewest),
	}
}

// AddPulse false если буфер импульсов заполнен
func (e *Engine) AddPulse(p models.Pulse) bool {
	ok, _ := e.pulses.Push(p)
	return ok
}

// AddFrame false если буфер кадров заполнен
func (e *Engine) AddFrame(f models.Frame) bool {
	ok, _ := e.frames.Push(f)
	return ok
}

func (e *Engine) PulseCount() int { return e.pulses.Len() }
func (e *Engine) FrameCount() int { return e.frames.Len() }

// Ready true, если данных достаточно для полного анализа
func (e *Engine) Ready() bool {
	return e.pulses.Len() >= e.cfg.MinPulses || e.frames.Len() >= e.cfg.MinFrames
}

// Reset очищает накопленные данные и гипотезу
func (e *Engine) Reset() {
	e.pulses.Reset()
	e.frames.Reset()
	e.marks, e.spaces = TimingHistogram{}, TimingHistogram{}
	e.clusters = nil
	e.hyp = Hypothesis{}
}

// Analyze выполняет полный конвейер. Если данных недостаточно, а кадр есть,
// выполняется быстрый анализ последнего кадра; без данных гипотеза пустая
func (e *Engine) Analyze() Hypothesis {
	if !e.Ready() {
		if last, ok := e.frames.Last(); ok {
			e.hyp = QuickAnalyze(last)
			e.logger.Info("insufficient data, quick analysis used",
				zap.Int("pulses", e.pulses.Len()),
				zap.Int("frames", e.frames.Len()),
			)
			return e.hyp
		}
		e.logger.Warn("insufficient data for analysis", zap.Int("pulses", e.pulses.Len()))
		e.hyp = Hypothesis{}
		return e.hyp
	}

	pulses := e.pulses.Items()
	frames := e.frames.Items()
	var h Hypothesis

	e.buildHistograms(pulses)
	e.clusterPulses()
	e.detectModulation(&h, pulses)
	e.detectEncoding(&h, pulses, frames)
	e.analyzeTiming(&h, pulses)
	e.detectPreamble(&h, frames)
	e.estimateFrameStructure(&h, frames)
	e.synthesize(&h)

	e.hyp = h
	e.logger.Info("protocol analysis complete",
		zap.Stringer("modulation", h.Modulation),
		zap.Stringer("encoding", h.Encoding),
		zap.Uint32("baud", h.BaudRate),
		zap.Uint8("confidence", h.OverallConfidence),
	)
	return h
}

// Hypothesis последняя построенная гипотеза
func (e *Engine) Hypothesis() Hypothesis { return e.hyp }

// Confidence общая уверенность последней гипотезы
func (e *Engine) Confidence() uint8 { return e.hyp.OverallConfidence }

// Clusters кластеры символов последнего анализа
func (e *Engine) Clusters() []PulseCluster {
	return append([]PulseCluster(nil), e.clusters...)
}

// Histograms гистограммы меток и пауз последнего анализа
func (e *Engine) Histograms() (marks, spaces TimingHistogram) {
	return e.marks, e.spaces
}
