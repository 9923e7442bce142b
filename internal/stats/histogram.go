package stats

// MaxHistogramBins максимальное разрешение гистограммы
const MaxHistogramBins = 256

// Histogram гистограмма с фиксированным числом бинов и диапазоном [min, max)
type Histogram struct {
	bins      []uint32
	min, max  int64
	total     uint64
	peakBin   int
	peakCount uint32
}

// NewHistogram создает гистограмму. Значения вне диапазона попадают в крайние бины
func NewHistogram(numBins int, min, max int64) (*Histogram, error) {
	if numBins <= 0 || numBins > MaxHistogramBins {
		return nil, ErrInvalidBins
	}
	if max <= min {
		return nil, ErrInvalidRange
	}
	return &Histogram{
		bins: make([]uint32, numBins),
		min:  min,
		max:  max,
	}, nil
}

// binIndex возвращает индекс бина с прижатием к краям
func (h *Histogram) binIndex(v int64) int {
	if v < h.min {
		return 0
	}
	if v >= h.max {
		return len(h.bins) - 1
	}
	return int((v - h.min) * int64(len(h.bins)) / (h.max - h.min))
}

// Add добавляет значение
func (h *Histogram) Add(v int64) {
	i := h.binIndex(v)
	h.bins[i]++
	h.total++
	if h.bins[i] > h.peakCount {
		h.peakCount = h.bins[i]
		h.peakBin = i
	}
}

// BinCenter возвращает середину бина i (целочисленно)
func (h *Histogram) BinCenter(i int) int64 {
	span := h.max - h.min
	lo := h.min + span*int64(i)/int64(len(h.bins))
	hi := h.min + span*int64(i+1)/int64(len(h.bins))
	return (lo + hi) / 2
}

// Peak возвращает индекс и счетчик самого заполненного бина
func (h *Histogram) Peak() (bin int, count uint32) {
	return h.peakBin, h.peakCount
}

// Percentile значение (середина бина), ниже которого лежит p процентов отсчетов
func (h *Histogram) Percentile(p int) int64 {
	if h.total == 0 {
		return h.min
	}
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	target := (h.total*uint64(p) + 99) / 100
	if target == 0 {
		target = 1
	}
	var acc uint64
	for i, c := range h.bins {
		acc += uint64(c)
		if acc >= target {
			return h.BinCenter(i)
		}
	}
	return h.BinCenter(len(h.bins) - 1)
}

// Median медиана по гистограмме
func (h *Histogram) Median() int64 {
	return h.Percentile(50)
}

// Mode середина пикового бина
func (h *Histogram) Mode() int64 {
	if h.total == 0 {
		return h.min
	}
	return h.BinCenter(h.peakBin)
}

// Bin возвращает счетчик бина
func (h *Histogram) Bin(i int) uint32 {
	if i < 0 || i >= len(h.bins) {
		return 0
	}
	return h.bins[i]
}

func (h *Histogram) NumBins() int  { return len(h.bins) }
func (h *Histogram) Total() uint64 { return h.total }

// BinWidth ширина бина (не меньше 1)
func (h *Histogram) BinWidth() int64 {
	w := (h.max - h.min) / int64(len(h.bins))
	if w < 1 {
		return 1
	}
	return w
}

// Reset обнуляет счетчики
func (h *Histogram) Reset() {
	for i := range h.bins {
		h.bins[i] = 0
	}
	h.total = 0
	h.peakBin = 0
	h.peakCount = 0
}
