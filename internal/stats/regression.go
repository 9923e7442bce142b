package stats

import fp "github.com/tworjaga/flipper-rf-lab/internal/fixedpoint"

// MaxRegressionSamples емкость буфера регрессии
const MaxRegressionSamples = 1000

// Regression линейная регрессия методом наименьших квадратов.
// Буфер ограничен; при заполнении новые точки отклоняются
type Regression struct {
	xs, ys []fp.Fixed
	n      int

	slope       fp.Fixed
	intercept   fp.Fixed
	rSquared    fp.Fixed
	correlation fp.Fixed
}

// NewRegression создает регрессию заданной емкости (0 - емкость по умолчанию)
func NewRegression(capacity int) *Regression {
	if capacity <= 0 || capacity > MaxRegressionSamples {
		capacity = MaxRegressionSamples
	}
	return &Regression{
		xs: make([]fp.Fixed, capacity),
		ys: make([]fp.Fixed, capacity),
	}
}

// Add добавляет точку; false если буфер заполнен
func (r *Regression) Add(x, y fp.Fixed) bool {
	if r.n >= len(r.xs) {
		return false
	}
	r.xs[r.n] = x
	r.ys[r.n] = y
	r.n++
	return true
}

func (r *Regression) Count() int { return r.n }

// Fit пересчитывает коэффициенты. Для n < 2 все коэффициенты нулевые
func (r *Regression) Fit() {
	r.slope, r.intercept, r.rSquared, r.correlation = 0, 0, 0, 0
	if r.n < 2 {
		return
	}

	xs, ys := r.xs[:r.n], r.ys[:r.n]
	mx, my := meanRaw(xs), meanRaw(ys)

	// суммы в Q16
	var sxx, syy, sxy int64
	for i := range xs {
		dx := clampRaw(int64(xs[i]) - mx)
		dy := clampRaw(int64(ys[i]) - my)
		sxx += (dx * dx) >> fp.FracBits
		syy += (dy * dy) >> fp.FracBits
		sxy += (dx * dy) >> fp.FracBits
	}

	if sxx == 0 {
		r.intercept = fp.Fixed(my)
		return
	}

	r.slope = ratio(sxy, sxx)
	r.intercept = fp.SubSat(fp.Fixed(my), fp.MulSat(r.slope, fp.Fixed(mx)))

	if syy > 0 {
		sx := sqrtQ16(sxx)
		sy := sqrtQ16(syy)
		r.correlation = fp.Clamp(ratio(int64(ratio(sxy, sx)), sy), -fp.One, fp.One)
		r.rSquared = fp.Mul(r.correlation, r.correlation)
	}
}

func (r *Regression) Slope() fp.Fixed       { return r.slope }
func (r *Regression) Intercept() fp.Fixed   { return r.intercept }
func (r *Regression) RSquared() fp.Fixed    { return r.rSquared }
func (r *Regression) Correlation() fp.Fixed { return r.correlation }

// Predict вычисляет y для x за O(1)
func (r *Regression) Predict(x fp.Fixed) fp.Fixed {
	return fp.AddSat(r.intercept, fp.MulSat(r.slope, x))
}

// Reset очищает буфер
func (r *Regression) Reset() {
	r.n = 0
	r.slope, r.intercept, r.rSquared, r.correlation = 0, 0, 0, 0
}

func meanRaw(xs []fp.Fixed) int64 {
	if len(xs) == 0 {
		return 0
	}
	var sum int64
	for _, x := range xs {
		sum += int64(x)
	}
	return sum / int64(len(xs))
}

func clampRaw(v int64) int64 {
	if v > int64(fp.Max) {
		return int64(fp.Max)
	}
	if v < int64(fp.Min) {
		return int64(fp.Min)
	}
	return v
}

// ratio делит два значения Q16 без переполнения сдвига
func ratio(num, den int64) fp.Fixed {
	for num >= 1<<46 || num <= -(1<<46) {
		num >>= 1
		den >>= 1
	}
	return fp.FromRatio(num, den)
}

// sqrtQ16 корень из неотрицательного значения Q16
func sqrtQ16(v int64) int64 {
	if v <= 0 {
		return 0
	}
	if v < 1<<46 {
		return int64(fp.ISqrt64(uint64(v) << fp.FracBits))
	}
	return int64(fp.ISqrt64(uint64(v))) << 8
}
