// Package threat оценивает защищенность радиопротокола по захваченным
// кадрам: энтропия, статичные поля, контрольные суммы, rolling code и повторы
package threat

import (
	"bytes"
	"math/bits"

	"go.uber.org/zap"

	fp "github.com/tworjaga/flipper-rf-lab/internal/fixedpoint"
	"github.com/tworjaga/flipper-rf-lab/internal/models"
	"github.com/tworjaga/flipper-rf-lab/internal/ring"
	"github.com/tworjaga/flipper-rf-lab/internal/stats"
)

const (
	// DefaultFrameCapacity число кадров в анализе
	DefaultFrameCapacity = 256
	// DefaultMinCRCFrames минимум кадров для поиска CRC
	DefaultMinCRCFrames = 5
	// DefaultRollingMinValues минимум значений поля для проверки rolling code
	DefaultRollingMinValues = 10
	// DefaultRollingMaxValues сколько первых кадров участвует в проверке rolling code
	DefaultRollingMaxValues = 100

	// MaxPreambleBytes предел длины общей преамбулы
	MaxPreambleBytes = 4
	// MaxFixedFields предел числа статичных полей
	MaxFixedFields = 8
	// MaxReplayPairs сколько пар повторов сохраняется
	MaxReplayPairs = 10

	minCRCFrameLen   = 3
	rollingFieldSize = 4
	// staticThreshold доля статичных бит, выше которой поток считается статичным
	staticThreshold = 80
	// crcMatchPercent доля кадров, на которых CRC должен сойтись
	crcMatchPercent = 80
)

// Config емкости и пороги анализа
type Config struct {
	FrameCapacity    int
	MinCRCFrames     int
	RollingMinValues int
	RollingMaxValues int
}

func DefaultConfig() Config {
	return Config{
		FrameCapacity:    DefaultFrameCapacity,
		MinCRCFrames:     DefaultMinCRCFrames,
		RollingMinValues: DefaultRollingMinValues,
		RollingMaxValues: DefaultRollingMaxValues,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.FrameCapacity <= 0 {
		c.FrameCapacity = d.FrameCapacity
	}
	if c.MinCRCFrames <= 0 {
		c.MinCRCFrames = d.MinCRCFrames
	}
	if c.RollingMinValues <= 0 {
		c.RollingMinValues = d.RollingMinValues
	}
	if c.RollingMaxValues < c.RollingMinValues {
		c.RollingMaxValues = max(d.RollingMaxValues, c.RollingMinValues)
	}
	return c
}

// Engine накапливает полезные нагрузки одной сессии и строит оценку.
// Не безопасен для одновременного использования
type Engine struct {
	cfg    Config
	logger *zap.Logger

	state    State
	payloads *ring.Buffer[[]byte]
	freq     [256]uint32

	staticMask [models.MaxFrameBytes]byte
	minLen     int

	result Assessment
}

// NewEngine создает движок; кадры сверх емкости отбрасываются
func NewEngine(cfg Config, logger *zap.Logger) *Engine {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:      cfg,
		logger:   logger,
		payloads: ring.New[[]byte](cfg.FrameCapacity, ring.DropNewest),
	}
}

// Start сбрасывает накопленные данные и начинает сбор
func (e *Engine) Start() {
	e.payloads.Reset()
	e.freq = [256]uint32{}
	e.staticMask = [models.MaxFrameBytes]byte{}
	e.minLen = 0
	e.result = Assessment{}
	e.state = StateCollecting
	e.logger.Info("threat analysis started")
}

// Stop возвращает движок в состояние ожидания, данные сохраняются
func (e *Engine) Stop() {
	e.state = StateIdle
}

func (e *Engine) State() State { return e.state }

// IsAnalyzing true вне состояния ожидания
func (e *Engine) IsAnalyzing() bool { return e.state != StateIdle }

// AddFrame добавляет полезную нагрузку кадра
func (e *Engine) AddFrame(f models.Frame) bool {
	return e.AddPayload(f.Payload())
}

// AddPayload копирует не более MaxFrameBytes байт; false если буфер заполнен
func (e *Engine) AddPayload(data []byte) bool {
	if e.state == StateIdle || e.state == StateComplete {
		e.state = StateCollecting
	}
	n := min(len(data), models.MaxFrameBytes)
	p := append([]byte(nil), data[:n]...)
	ok, _ := e.payloads.Push(p)
	if !ok {
		return false
	}
	for _, b := range p {
		e.freq[b]++
	}
	return true
}

func (e *Engine) FrameCount() int { return e.payloads.Len() }

// Dropped число кадров, не поместившихся в буфер
func (e *Engine) Dropped() uint64 { return e.payloads.Dropped() }

// Entropy энтропия по всем накопленным байтам, бит на байт
func (e *Engine) Entropy() fp.Fixed {
	return stats.EntropyFromFrequencies(&e.freq)
}

// IsUnique true, если такой нагрузки среди накопленных кадров нет
func (e *Engine) IsUnique(data []byte) bool {
	for _, p := range e.payloads.Items() {
		if bytes.Equal(p, data) {
			return false
		}
	}
	return true
}

// Assess выполняет все этапы анализа и возвращает оценку
func (e *Engine) Assess() Assessment {
	frames := e.payloads.Items()
	var a Assessment
	a.FrameCount = len(frames)

	e.state = StateAnalyzingEntropy
	a.Entropy = e.Entropy()
	a.EntropyPerByte = a.Entropy.Float()
	a.EntropyBits = uint8(fp.MulSat(a.Entropy, fp.FromInt(8)).Int())

	e.state = StateAnalyzingPatterns
	a.StaticRatio = e.detectStaticPatterns(frames)
	a.IsStatic = a.StaticRatio > staticThreshold
	a.Preamble, a.PreambleLength = detectPreamble(frames)
	a.FixedFields = e.fixedFields()

	e.state = StateAnalyzingCRC
	if m, pos, ok := detectCRC(frames, e.cfg.MinCRCFrames); ok {
		a.HasChecksum = true
		a.CRCName = m.Name
		a.CRCPosition = pos
		e.logger.Info("checksum detected", zap.String("crc", m.Name), zap.Int("position", pos))
	}
	if off, ok := detectRollingCode(frames, e.cfg.RollingMinValues, e.cfg.RollingMaxValues); ok {
		a.HasRollingCode = true
		a.RollingCodeField = Field{Offset: off, Length: rollingFieldSize}
		e.logger.Info("rolling code detected", zap.Int("offset", off))
	}
	a.ReplayPairs = detectReplay(frames)
	a.ReplayVulnerable = len(a.ReplayPairs) > 0

	e.state = StateAssessing
	a.VulnerabilityScore = Score(a.factors())
	a.Level = RiskFromScore(a.VulnerabilityScore)
	a.Report = Report(a)

	e.result = a
	e.state = StateComplete
	e.logger.Info("threat assessment complete",
		zap.Stringer("risk", a.Level),
		zap.Uint16("score", a.VulnerabilityScore),
		zap.Int("frames", a.FrameCount),
	)
	return a
}

// Assessment последняя построенная оценка
func (e *Engine) Assessment() Assessment { return e.result }

// Report текст последней оценки
func (e *Engine) Report() string { return e.result.Report }

// StaticRatio доля статичных бит последней оценки
func (e *Engine) StaticRatio() uint8 { return e.result.StaticRatio }

// detectStaticPatterns сравнивает кадры с первым на общей длине и
// возвращает долю бит, не менявшихся ни в одном кадре
func (e *Engine) detectStaticPatterns(frames [][]byte) uint8 {
	e.staticMask = [models.MaxFrameBytes]byte{}
	e.minLen = 0
	if len(frames) < 2 {
		return 0
	}
	minLen := len(frames[0])
	for _, f := range frames[1:] {
		minLen = min(minLen, len(f))
	}
	if minLen == 0 {
		return 0
	}

	for i := 0; i < minLen; i++ {
		e.staticMask[i] = 0xFF
	}
	ref := frames[0]
	for _, f := range frames[1:] {
		for i := 0; i < minLen; i++ {
			e.staticMask[i] &^= ref[i] ^ f[i]
		}
	}
	e.minLen = minLen

	var static int
	for i := 0; i < minLen; i++ {
		static += bits.OnesCount8(e.staticMask[i])
	}
	return uint8(static * 100 / (minLen * 8))
}

// fixedFields серии полностью статичных байт по маске последнего анализа
func (e *Engine) fixedFields() []Field {
	var out []Field
	start := -1
	for i := 0; i <= e.minLen && len(out) < MaxFixedFields; i++ {
		static := i < e.minLen && e.staticMask[i] == 0xFF
		switch {
		case static && start < 0:
			start = i
		case !static && start >= 0:
			out = append(out, Field{Offset: start, Length: i - start})
			start = -1
		}
	}
	return out
}

// detectPreamble общий префикс кадров, не длиннее MaxPreambleBytes; нужно два кадра
func detectPreamble(frames [][]byte) (uint32, uint8) {
	if len(frames) < 2 {
		return 0, 0
	}
	var n int
	for n < MaxPreambleBytes {
		if n >= len(frames[0]) {
			break
		}
		b := frames[0][n]
		same := true
		for _, f := range frames[1:] {
			if n >= len(f) || f[n] != b {
				same = false
				break
			}
		}
		if !same {
			break
		}
		n++
	}
	var v uint32
	for i := 0; i < n; i++ {
		v = v<<8 | uint32(frames[0][i])
	}
	return v, uint8(n)
}

// detectCRC перебирает таблицу полиномов; первая модель, сошедшаяся
// хотя бы на 80% кадров, считается найденной
func detectCRC(frames [][]byte, minFrames int) (CRCModel, int, bool) {
	if len(frames) < minFrames {
		return CRCModel{}, -1, false
	}
	for _, m := range crcTable {
		matches := 0
		var pos int
		for _, f := range frames {
			if p := m.findCRCPosition(f); p >= 0 {
				matches++
				pos = p
			}
		}
		if matches*100 >= len(frames)*crcMatchPercent {
			return m, pos, true
		}
	}
	return CRCModel{}, -1, false
}

// detectRollingCode ищет 32-битное поле по смещениям, кратным 4, которое
// не является счетчиком и не повторяется периодически
func detectRollingCode(frames [][]byte, minValues, maxValues int) (int, bool) {
	if len(frames) < minValues {
		return -1, false
	}
	maxLen := 0
	for _, f := range frames {
		maxLen = max(maxLen, len(f))
	}
	values := make([]uint32, 0, maxValues)
	for off := 0; off+rollingFieldSize <= maxLen; off += rollingFieldSize {
		values = values[:0]
		for _, f := range frames {
			if len(values) == maxValues {
				break
			}
			if off+rollingFieldSize <= len(f) {
				values = append(values, uint32(f[off])<<24|uint32(f[off+1])<<16|uint32(f[off+2])<<8|uint32(f[off+3]))
			}
		}
		if len(values) < minValues {
			continue
		}
		if isCounter(values) || isPeriodic(values) {
			continue
		}
		return off, true
	}
	return -1, false
}

// isCounter true, если каждый шаг равен 0 или ±1, все шаги одинаковы
// или последовательность монотонна. Пропуски счетчика между захватами
// дают монотонный ряд с неравными шагами
func isCounter(v []uint32) bool {
	if len(v) < 2 {
		return true
	}
	step := v[1] - v[0]
	small, constant := true, true
	up, down := true, true
	for i := 1; i < len(v); i++ {
		d := v[i] - v[i-1]
		if d != 0 && d != 1 && d != 0xFFFFFFFF {
			small = false
		}
		if d != step {
			constant = false
		}
		if v[i] < v[i-1] {
			up = false
		}
		if v[i] > v[i-1] {
			down = false
		}
	}
	return small || constant || up || down
}

// isPeriodic true, если последовательность повторяется с периодом не больше половины длины
func isPeriodic(v []uint32) bool {
	for period := 1; period <= len(v)/2; period++ {
		repeating := true
		for i := period; i < len(v); i++ {
			if v[i] != v[i%period] {
				repeating = false
				break
			}
		}
		if repeating {
			return true
		}
	}
	return false
}

// detectReplay пары побайтно одинаковых кадров, не более MaxReplayPairs
func detectReplay(frames [][]byte) []ReplayPair {
	var out []ReplayPair
	for i := 0; i < len(frames) && len(out) < MaxReplayPairs; i++ {
		for j := i + 1; j < len(frames) && len(out) < MaxReplayPairs; j++ {
			if bytes.Equal(frames[i], frames[j]) {
				out = append(out, ReplayPair{First: i, Second: j})
			}
		}
	}
	return out
}
