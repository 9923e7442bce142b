package stats

import (
	fp "github.com/tworjaga/flipper-rf-lab/internal/fixedpoint"
	"github.com/tworjaga/flipper-rf-lab/internal/ring"
)

const (
	// MaxFIRTaps максимальная длина FIR фильтра
	MaxFIRTaps = 8
	// MaxIIROrder максимальный порядок IIR фильтра
	MaxIIROrder = 4
)

// FIR фильтр с конечной импульсной характеристикой
type FIR struct {
	taps    [MaxFIRTaps]fp.Fixed
	history [MaxFIRTaps]fp.Fixed
	n       int
	pos     int
}

// NewFIR создает фильтр с заданными коэффициентами
func NewFIR(taps ...fp.Fixed) (*FIR, error) {
	if len(taps) == 0 || len(taps) > MaxFIRTaps {
		return nil, ErrTooManyTaps
	}
	f := &FIR{n: len(taps)}
	copy(f.taps[:], taps)
	return f, nil
}

// Process пропускает отсчет через фильтр
func (f *FIR) Process(x fp.Fixed) fp.Fixed {
	f.history[f.pos] = x
	var acc int64
	idx := f.pos
	for i := 0; i < f.n; i++ {
		acc += int64(f.taps[i]) * int64(f.history[idx])
		idx--
		if idx < 0 {
			idx = f.n - 1
		}
	}
	f.pos = (f.pos + 1) % f.n
	return fp.Fixed(clampRaw((acc + int64(fp.Half)) >> fp.FracBits))
}

func (f *FIR) Reset() {
	f.history = [MaxFIRTaps]fp.Fixed{}
	f.pos = 0
}

// IIR фильтр прямой формы I:
// y[n] = Σ b[i]·x[n-i] − Σ a[i]·y[n-i], a[0] подразумевается равным 1
type IIR struct {
	b     [MaxIIROrder + 1]fp.Fixed
	a     [MaxIIROrder + 1]fp.Fixed
	x     [MaxIIROrder + 1]fp.Fixed
	y     [MaxIIROrder + 1]fp.Fixed
	order int
}

// NewIIR создает фильтр; len(b) == len(a) == order+1
func NewIIR(b, a []fp.Fixed) (*IIR, error) {
	order := len(b) - 1
	if order < 1 || order > MaxIIROrder || len(a) != len(b) {
		return nil, ErrInvalidOrder
	}
	f := &IIR{order: order}
	copy(f.b[:], b)
	copy(f.a[:], a)
	return f, nil
}

func (f *IIR) Process(in fp.Fixed) fp.Fixed {
	for i := f.order; i > 0; i-- {
		f.x[i] = f.x[i-1]
		f.y[i] = f.y[i-1]
	}
	f.x[0] = in

	var acc int64
	acc += int64(f.b[0]) * int64(f.x[0])
	for i := 1; i <= f.order; i++ {
		acc += int64(f.b[i]) * int64(f.x[i])
		acc -= int64(f.a[i]) * int64(f.y[i])
	}
	out := fp.Fixed(clampRaw((acc + int64(fp.Half)) >> fp.FracBits))
	f.y[0] = out
	return out
}

func (f *IIR) Reset() {
	f.x = [MaxIIROrder + 1]fp.Fixed{}
	f.y = [MaxIIROrder + 1]fp.Fixed{}
}

// MovingAverage скользящее среднее по окну фиксированного размера
type MovingAverage struct {
	window *ring.Buffer[fp.Fixed]
	sum    int64
}

func NewMovingAverage(size int) *MovingAverage {
	return &MovingAverage{window: ring.New[fp.Fixed](size, ring.DropOldest)}
}

// Add добавляет значение и возвращает текущее среднее
func (m *MovingAverage) Add(x fp.Fixed) fp.Fixed {
	if m.window.Full() {
		m.sum -= int64(m.window.At(0))
	}
	m.window.Push(x)
	m.sum += int64(x)
	return m.Value()
}

func (m *MovingAverage) Value() fp.Fixed {
	if m.window.Len() == 0 {
		return 0
	}
	return fp.Fixed(m.sum / int64(m.window.Len()))
}

func (m *MovingAverage) Count() int { return m.window.Len() }
