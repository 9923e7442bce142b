package clustering

import (
	fp "github.com/tworjaga/flipper-rf-lab/internal/fixedpoint"
	"github.com/tworjaga/flipper-rf-lab/internal/models"
)

// DTWMaxLength длина, до которой усекаются последовательности
const DTWMaxLength = 128

// DTWResult результат упрощенного сравнения последовательностей
type DTWResult struct {
	Distance   fp.Fixed `json:"distance"`
	PathLength int      `json:"path_length"`
}

// DTW упрощенное сравнение: обе последовательности усекаются до DTWMaxLength,
// результат равен среднему модулю разности по более короткой длине.
// Выравнивание динамическим программированием не выполняется
func DTW(a, b []fp.Fixed) DTWResult {
	if len(a) > DTWMaxLength {
		a = a[:DTWMaxLength]
	}
	if len(b) > DTWMaxLength {
		b = b[:DTWMaxLength]
	}
	n := min(len(a), len(b))
	if n == 0 {
		return DTWResult{}
	}
	var total int64
	for i := 0; i < n; i++ {
		total += int64(absDiff(a[i], b[i]))
	}
	return DTWResult{Distance: fromRaw(uint64(total / int64(n))), PathLength: n}
}

// PulseDTW сравнивает ширины двух последовательностей импульсов
func PulseDTW(a, b []models.Pulse) fp.Fixed {
	return DTW(pulseWidths(a), pulseWidths(b)).Distance
}

func pulseWidths(pulses []models.Pulse) []fp.Fixed {
	n := min(len(pulses), DTWMaxLength)
	out := make([]fp.Fixed, n)
	for i := 0; i < n; i++ {
		out[i] = fp.FromIntSat(int64(pulses[i].WidthUS))
	}
	return out
}

// FullDTW выравнивание с матрицей путей не реализовано
func FullDTW(a, b []fp.Fixed) (DTWResult, error) {
	return DTWResult{}, ErrUnsupported
}

// Dendrogram результат иерархической кластеризации
type Dendrogram struct {
	Merges []Merge `json:"merges"`
}

// Merge объединение двух кластеров на заданном расстоянии
type Merge struct {
	Left, Right int
	Distance    fp.Fixed
}

// Hierarchical иерархическая кластеризация не реализована
func Hierarchical(points []DataPoint, metric Metric) (Dendrogram, error) {
	return Dendrogram{}, ErrUnsupported
}
