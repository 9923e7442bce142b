package analytics

import (
	"math"

	"github.com/tworjaga/flipper-rf-lab/internal/ring"
)

const (
	// RSSIWindowSize окно скользящей статистики уровня сигнала
	RSSIWindowSize = 50
	// RSSIAnomalyZScore порог аномалии уровня (> 2σ)
	RSSIAnomalyZScore = 2.0
	// rssiMinSamples до стольких отсчетов аномалии не ищутся
	rssiMinSamples = 10
)

// RSSIWindow скользящее окно уровней сигнала с накопленными суммами
type RSSIWindow struct {
	buf   *ring.Buffer[int16]
	sum   int64
	sumSq int64
}

func NewRSSIWindow(size int) *RSSIWindow {
	return &RSSIWindow{buf: ring.New[int16](size, ring.DropOldest)}
}

// Add добавляет отсчет, вытесняя самый старый при заполненном окне
func (w *RSSIWindow) Add(dbm int16) {
	if w.buf.Full() {
		old := int64(w.buf.At(0))
		w.sum -= old
		w.sumSq -= old * old
	}
	w.buf.Push(dbm)
	v := int64(dbm)
	w.sum += v
	w.sumSq += v * v
}

func (w *RSSIWindow) Count() int { return w.buf.Len() }

func (w *RSSIWindow) Mean() float64 {
	if w.buf.Len() == 0 {
		return 0
	}
	return float64(w.sum) / float64(w.buf.Len())
}

// StdDev выборочное стандартное отклонение
func (w *RSSIWindow) StdDev() float64 {
	n := int64(w.buf.Len())
	if n < 2 {
		return 0
	}
	// n·Σx² − (Σx)² в целых, без потери точности
	num := n*w.sumSq - w.sum*w.sum
	if num <= 0 {
		return 0
	}
	return math.Sqrt(float64(num) / float64(n*(n-1)))
}

// ZScore отклонение уровня от среднего окна в σ; 0 при нулевом разбросе
func (w *RSSIWindow) ZScore(dbm int16) float64 {
	sd := w.StdDev()
	if sd == 0 {
		return 0
	}
	return (float64(dbm) - w.Mean()) / sd
}

// Anomalous true, если окно заполнено достаточно и |z| превышает порог
func (w *RSSIWindow) Anomalous(dbm int16) bool {
	return w.Count() >= rssiMinSamples && math.Abs(w.ZScore(dbm)) > RSSIAnomalyZScore
}
