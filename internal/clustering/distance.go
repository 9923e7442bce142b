package clustering

import (
	"math"
	"math/bits"

	fp "github.com/tworjaga/flipper-rf-lab/internal/fixedpoint"
)

// Metric метрика расстояния между точками
type Metric int

const (
	MetricEuclidean Metric = iota
	MetricManhattan
	MetricCosine
)

func (m Metric) String() string {
	switch m {
	case MetricEuclidean:
		return "euclidean"
	case MetricManhattan:
		return "manhattan"
	case MetricCosine:
		return "cosine"
	default:
		return "unknown"
	}
}

// Distance вычисляет расстояние выбранной метрикой
func (m Metric) Distance(a, b DataPoint) fp.Fixed {
	switch m {
	case MetricManhattan:
		return Manhattan(a, b)
	case MetricCosine:
		return Cosine(a, b)
	default:
		return Euclidean(a, b)
	}
}

// squaredRaw квадрат евклидова расстояния в Q32 без потери точности
func squaredRaw(a, b DataPoint) uint64 {
	dx := absDiff(a.X, b.X)
	dy := absDiff(a.Y, b.Y)
	sx, sy := dx*dx, dy*dy
	if sx > math.MaxUint64-sy {
		return math.MaxUint64
	}
	return sx + sy
}

func absDiff(a, b fp.Fixed) uint64 {
	d := int64(a) - int64(b)
	if d < 0 {
		d = -d
	}
	return uint64(d)
}

func fromRaw(v uint64) fp.Fixed {
	if v > math.MaxInt32 {
		return fp.Max
	}
	return fp.Fixed(v)
}

// Euclidean евклидово расстояние с насыщением
func Euclidean(a, b DataPoint) fp.Fixed {
	return fromRaw(fp.ISqrt64(squaredRaw(a, b)))
}

// SquaredEuclidean квадрат расстояния в Q16 с насыщением
func SquaredEuclidean(a, b DataPoint) fp.Fixed {
	return fromRaw(squaredRaw(a, b) >> fp.FracBits)
}

// Manhattan сумма модулей разностей координат
func Manhattan(a, b DataPoint) fp.Fixed {
	return fromRaw(absDiff(a.X, b.X) + absDiff(a.Y, b.Y))
}

// Cosine возвращает 1 - косинусное сходство.
// Для вектора нулевой длины возвращает fp.Max
func Cosine(a, b DataPoint) fp.Fixed {
	zero := DataPoint{}
	na := int64(fp.ISqrt64(squaredRaw(a, zero)))
	nb := int64(fp.ISqrt64(squaredRaw(b, zero)))
	if na == 0 || nb == 0 {
		return fp.Max
	}
	// скалярное произведение в Q32
	dot := addSat64(int64(a.X)*int64(b.X), int64(a.Y)*int64(b.Y))
	neg := dot < 0
	mag := uint64(dot)
	if neg {
		mag = uint64(-dot)
	}
	den := uint64(na) * uint64(nb)
	sim := fp.One
	if hi, lo := bits.Mul64(mag, uint64(fp.One)); hi < den {
		if q, _ := bits.Div64(hi, lo, den); q < uint64(fp.One) {
			sim = fp.Fixed(q)
		}
	}
	if neg {
		sim = -sim
	}
	return fp.SubSat(fp.One, sim)
}

func addSat64(a, b int64) int64 {
	if a > 0 && b > math.MaxInt64-a {
		return math.MaxInt64
	}
	if a < 0 && b < -math.MaxInt64-a {
		return -math.MaxInt64
	}
	return a + b
}
