package inference

import (
	"github.com/tworjaga/flipper-rf-lab/internal/stats"
)

// TimingHistogram гистограмма длительностей импульсов одного уровня
type TimingHistogram struct {
	MinUS uint16
	MaxUS uint16
	hist  *stats.Histogram
}

// newTimingHistogram число бинов равно диапазону длительностей, но не больше 256.
// Для вырожденного диапазона используется один бин
func newTimingHistogram(widths []uint16) TimingHistogram {
	if len(widths) == 0 {
		return TimingHistogram{}
	}
	lo, hi := widths[0], widths[0]
	for _, w := range widths[1:] {
		lo = min(lo, w)
		hi = max(hi, w)
	}
	span := int64(hi) - int64(lo)
	bins := int(min(span, stats.MaxHistogramBins))
	upper := int64(hi)
	if span == 0 {
		bins, upper = 1, int64(lo)+1
	}
	// диапазон и число бинов корректны по построению
	h, _ := stats.NewHistogram(bins, int64(lo), upper)
	for _, w := range widths {
		h.Add(int64(w))
	}
	return TimingHistogram{MinUS: lo, MaxUS: hi, hist: h}
}

func (t TimingHistogram) Total() uint64 {
	if t.hist == nil {
		return 0
	}
	return t.hist.Total()
}

func (t TimingHistogram) NumBins() int {
	if t.hist == nil {
		return 0
	}
	return t.hist.NumBins()
}

func (t TimingHistogram) Bin(i int) uint32 {
	if t.hist == nil {
		return 0
	}
	return t.hist.Bin(i)
}

// BinWidthUS ширина бина в микросекундах
func (t TimingHistogram) BinWidthUS() uint16 {
	if t.hist == nil {
		return 1
	}
	return uint16(t.hist.BinWidth())
}

// CenterUS длительность, соответствующая бину i
func (t TimingHistogram) CenterUS(i int) uint16 {
	if t.hist == nil {
		return 0
	}
	return uint16(t.hist.BinCenter(i))
}

// Peak самый заполненный бин
func (t TimingHistogram) Peak() (bin int, count uint32) {
	if t.hist == nil {
		return 0, 0
	}
	return t.hist.Peak()
}
