package stats

import (
	"sort"

	fp "github.com/tworjaga/flipper-rf-lab/internal/fixedpoint"
)

// Summary сводная статистика по целочисленным отсчетам (микросекунды)
type Summary struct {
	Mean     uint32 `json:"mean"`
	Variance uint32 `json:"variance"`
	StdDev   uint32 `json:"std_dev"`
	Min      uint32 `json:"min"`
	Max      uint32 `json:"max"`
	Median   uint32 `json:"median"`
}

// Summarize считает статистику в целых числах; дисперсия по генеральной
// совокупности насыщается на MaxUint32. Вход не изменяется
func Summarize(data []uint32) Summary {
	if len(data) == 0 {
		return Summary{}
	}

	var s Summary
	var sum uint64
	s.Min, s.Max = data[0], data[0]
	for _, v := range data {
		sum += uint64(v)
		if v < s.Min {
			s.Min = v
		}
		if v > s.Max {
			s.Max = v
		}
	}
	n := uint64(len(data))
	s.Mean = uint32(sum / n)

	var acc uint64
	for _, v := range data {
		d := int64(v) - int64(s.Mean)
		acc += uint64(d * d)
	}
	variance := acc / n
	if variance > 0xFFFFFFFF {
		variance = 0xFFFFFFFF
	}
	s.Variance = uint32(variance)
	s.StdDev = uint32(fp.ISqrt64(acc / n))

	sorted := make([]uint32, len(data))
	copy(sorted, data)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		s.Median = sorted[mid]
	} else {
		s.Median = uint32((uint64(sorted[mid-1]) + uint64(sorted[mid])) / 2)
	}
	return s
}
