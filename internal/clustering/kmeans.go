// Package clustering группирует временные признаки сигнала методом k-средних
package clustering

import (
	"go.uber.org/zap"

	fp "github.com/tworjaga/flipper-rf-lab/internal/fixedpoint"
)

const (
	// KMax максимальное число кластеров
	KMax = 5
	// DefaultK используется при недопустимом k
	DefaultK = 3
	// DefaultMaxIterations предел итераций k-means
	DefaultMaxIterations = 100
)

// convergenceThreshold суммарное смещение центроидов, ниже которого алгоритм сошелся (0.5%)
const convergenceThreshold = fp.One / 200

// DataPoint двумерный вектор признаков
type DataPoint struct {
	X fp.Fixed `json:"x"`
	Y fp.Fixed `json:"y"`
}

// Centroid центр кластера и его статистика
type Centroid struct {
	X          fp.Fixed `json:"x"`
	Y          fp.Fixed `json:"y"`
	PointCount int      `json:"point_count"`
	Inertia    fp.Fixed `json:"inertia"`
}

// Result результат k-means. Assignments[i] номер кластера точки i
type Result struct {
	K            int        `json:"k"`
	Centroids    []Centroid `json:"centroids"`
	Assignments  []int      `json:"assignments"`
	Iterations   int        `json:"iterations"`
	Converged    bool       `json:"converged"`
	TotalInertia fp.Fixed   `json:"total_inertia"`
	Silhouette   fp.Fixed   `json:"silhouette"`
}

// Config параметры движка кластеризации
type Config struct {
	MaxIterations int
}

// DefaultConfig параметры по умолчанию
func DefaultConfig() Config {
	return Config{MaxIterations: DefaultMaxIterations}
}

// Engine выполняет кластеризацию. Состояния между вызовами не хранит
type Engine struct {
	cfg    Config
	logger *zap.Logger
}

// NewEngine создает движок; nil логгер заменяется на no-op
func NewEngine(cfg Config, logger *zap.Logger) *Engine {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{cfg: cfg, logger: logger}
}

// EffectiveK приводит k к допустимому диапазону: недопустимое k заменяется на 3,
// затем ограничивается числом точек
func EffectiveK(k, n int) int {
	if k < 1 || k > KMax {
		k = DefaultK
	}
	if k > n {
		k = n
	}
	return k
}

// KMeans кластеризует точки. Центроиды инициализируются первыми k точками,
// входной срез не изменяется
func (e *Engine) KMeans(points []DataPoint, k int) Result {
	n := len(points)
	k = EffectiveK(k, n)
	res := Result{K: k}
	if k == 0 {
		return res
	}

	centroids := make([]Centroid, k)
	for i := 0; i < k; i++ {
		centroids[i].X = points[i].X
		centroids[i].Y = points[i].Y
	}
	assignments := make([]int, n)
	sumX := make([]int64, k)
	sumY := make([]int64, k)

	for iter := 0; iter < e.cfg.MaxIterations; iter++ {
		assign(points, centroids, assignments)

		for c := range sumX {
			sumX[c], sumY[c] = 0, 0
		}
		for i, p := range points {
			c := assignments[i]
			sumX[c] += int64(p.X)
			sumY[c] += int64(p.Y)
		}

		var movement int64
		for c := range centroids {
			cnt := int64(centroids[c].PointCount)
			if cnt == 0 {
				continue
			}
			nx := fp.Fixed(sumX[c] / cnt)
			ny := fp.Fixed(sumY[c] / cnt)
			movement += int64(absDiff(nx, centroids[c].X) + absDiff(ny, centroids[c].Y))
			centroids[c].X, centroids[c].Y = nx, ny
		}

		res.Iterations = iter + 1
		if movement < int64(convergenceThreshold) {
			res.Converged = true
			break
		}
	}

	// финальное назначение согласовано с возвращаемыми центроидами
	res.TotalInertia = assign(points, centroids, assignments)
	res.Centroids = centroids
	res.Assignments = assignments
	res.Silhouette = Silhouette(points, res)

	e.logger.Debug("k-means finished",
		zap.Int("k", k),
		zap.Int("points", n),
		zap.Int("iterations", res.Iterations),
		zap.Bool("converged", res.Converged),
	)
	return res
}

// assign относит каждую точку к ближайшему центроиду (при равенстве побеждает меньший индекс)
// и пересчитывает число точек и инерцию кластеров. Возвращает суммарную инерцию
func assign(points []DataPoint, centroids []Centroid, assignments []int) fp.Fixed {
	for c := range centroids {
		centroids[c].PointCount = 0
		centroids[c].Inertia = 0
	}
	for i, p := range points {
		best := 0
		bestDist := uint64(0)
		for c := range centroids {
			d := squaredRaw(p, DataPoint{X: centroids[c].X, Y: centroids[c].Y})
			if c == 0 || d < bestDist {
				best, bestDist = c, d
			}
		}
		assignments[i] = best
		centroids[best].PointCount++
		centroids[best].Inertia = fp.AddSat(centroids[best].Inertia, fromRaw(bestDist>>fp.FracBits))
	}
	var total fp.Fixed
	for c := range centroids {
		total = fp.AddSat(total, centroids[c].Inertia)
	}
	return total
}

// Silhouette средний коэффициент силуэта; 0 при k < 2 или менее двух точек
func Silhouette(points []DataPoint, res Result) fp.Fixed {
	n := len(points)
	if res.K < 2 || n < 2 || len(res.Assignments) != n {
		return 0
	}

	sums := make([]int64, res.K)
	counts := make([]int64, res.K)
	var total int64
	for i := range points {
		for c := range sums {
			sums[c], counts[c] = 0, 0
		}
		for j := range points {
			if i == j {
				continue
			}
			c := res.Assignments[j]
			sums[c] += int64(Euclidean(points[i], points[j]))
			counts[c]++
		}

		own := res.Assignments[i]
		var a int64
		if counts[own] > 0 {
			a = sums[own] / counts[own]
		}
		b := int64(fp.Max)
		for c := range sums {
			if c == own || counts[c] == 0 {
				continue
			}
			if m := sums[c] / counts[c]; m < b {
				b = m
			}
		}

		maxAB := max(a, b)
		if maxAB > 0 {
			total += int64(fp.FromRatio(b-a, maxAB))
		}
	}
	return fp.Clamp(fp.Fixed(total/int64(n)), -fp.One, fp.One)
}

// OptimalK перебирает k в [kMin, kMax] и возвращает k с наибольшим силуэтом.
// При равенстве выбирается меньшее k
func (e *Engine) OptimalK(points []DataPoint, kMin, kMax int) (int, []fp.Fixed) {
	if kMin < 2 {
		kMin = 2
	}
	if kMax > KMax {
		kMax = KMax
	}
	if kMax > len(points) {
		kMax = len(points)
	}
	best := kMin
	if len(points) < kMin {
		best = len(points)
	}
	bestScore := fp.Min
	var scores []fp.Fixed
	for k := kMin; k <= kMax; k++ {
		s := e.KMeans(points, k).Silhouette
		scores = append(scores, s)
		if s > bestScore {
			best, bestScore = k, s
		}
	}
	return best, scores
}
