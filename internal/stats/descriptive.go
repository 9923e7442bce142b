package stats

import (
	"sort"

	fp "github.com/tworjaga/flipper-rf-lab/internal/fixedpoint"
)

// Mean среднее арифметическое; 0 для пустого набора
func Mean(xs []fp.Fixed) fp.Fixed {
	return fp.Fixed(meanRaw(xs))
}

// Variance выборочная дисперсия (n-1)
func Variance(xs []fp.Fixed) fp.Fixed {
	if len(xs) < 2 {
		return 0
	}
	m := meanRaw(xs)
	var acc int64
	for _, x := range xs {
		d := clampRaw(int64(x) - m)
		acc += (d * d) >> fp.FracBits
	}
	return ratio(acc, int64(len(xs)-1)<<fp.FracBits)
}

func StdDev(xs []fp.Fixed) fp.Fixed {
	return fp.Sqrt(Variance(xs))
}

// Median медиана; вход не изменяется
func Median(xs []fp.Fixed) fp.Fixed {
	if len(xs) == 0 {
		return 0
	}
	s := sortedCopy(xs)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return fp.Fixed((int64(s[mid-1]) + int64(s[mid])) / 2)
}

// Mode наиболее частое значение; при равенстве берется меньшее
func Mode(xs []fp.Fixed) fp.Fixed {
	if len(xs) == 0 {
		return 0
	}
	s := sortedCopy(xs)
	best, bestCount := s[0], 0
	for i := 0; i < len(s); {
		j := i
		for j < len(s) && s[j] == s[i] {
			j++
		}
		if j-i > bestCount {
			best, bestCount = s[i], j-i
		}
		i = j
	}
	return best
}

// Range разность максимума и минимума
func Range(xs []fp.Fixed) fp.Fixed {
	if len(xs) == 0 {
		return 0
	}
	lo, hi := xs[0], xs[0]
	for _, x := range xs[1:] {
		if x < lo {
			lo = x
		}
		if x > hi {
			hi = x
		}
	}
	return fp.SubSat(hi, lo)
}

// centralMoments возвращает m2, m3, m4 (по генеральной совокупности)
func centralMoments(xs []fp.Fixed) (m2, m3, m4 fp.Fixed) {
	m := fp.Fixed(meanRaw(xs))
	var a2, a3, a4 int64
	for _, x := range xs {
		d := fp.SubSat(x, m)
		d2 := fp.MulSat(d, d)
		a2 += int64(d2)
		a3 += int64(fp.MulSat(d2, d))
		a4 += int64(fp.MulSat(d2, d2))
	}
	n := int64(len(xs))
	return fp.Fixed(clampRaw(a2 / n)), fp.Fixed(clampRaw(a3 / n)), fp.Fixed(clampRaw(a4 / n))
}

// Skewness коэффициент асимметрии
func Skewness(xs []fp.Fixed) fp.Fixed {
	if len(xs) < 3 {
		return 0
	}
	m2, m3, _ := centralMoments(xs)
	if m2 == 0 {
		return 0
	}
	return fp.Div(m3, fp.MulSat(m2, fp.Sqrt(m2)))
}

// Kurtosis эксцесс (нормальное распределение дает 0)
func Kurtosis(xs []fp.Fixed) fp.Fixed {
	if len(xs) < 4 {
		return 0
	}
	m2, _, m4 := centralMoments(xs)
	if m2 == 0 {
		return 0
	}
	return fp.SubSat(fp.Div(m4, fp.MulSat(m2, m2)), 3*fp.One)
}

// Covariance выборочная ковариация по общей длине
func Covariance(xs, ys []fp.Fixed) fp.Fixed {
	n := min(len(xs), len(ys))
	if n < 2 {
		return 0
	}
	mx, my := meanRaw(xs[:n]), meanRaw(ys[:n])
	var acc int64
	for i := 0; i < n; i++ {
		acc += (clampRaw(int64(xs[i])-mx) * clampRaw(int64(ys[i])-my)) >> fp.FracBits
	}
	return ratio(acc, int64(n-1)<<fp.FracBits)
}

// Correlation коэффициент корреляции Пирсона в [-1, 1]
func Correlation(xs, ys []fp.Fixed) fp.Fixed {
	n := min(len(xs), len(ys))
	if n < 2 {
		return 0
	}
	r := NewRegression(n)
	for i := 0; i < n; i++ {
		r.Add(xs[i], ys[i])
	}
	r.Fit()
	return r.Correlation()
}

// CrossCorrelation среднее произведение a[i]*b[i+lag]
func CrossCorrelation(a, b []fp.Fixed, lag int) fp.Fixed {
	if lag < 0 {
		a, b, lag = b, a, -lag
	}
	n := min(len(a), len(b)-lag)
	if n <= 0 {
		return 0
	}
	var acc int64
	for i := 0; i < n; i++ {
		acc += int64(fp.MulSat(a[i], b[i+lag]))
	}
	return fp.Fixed(clampRaw(acc / int64(n)))
}

func sortedCopy(xs []fp.Fixed) []fp.Fixed {
	s := make([]fp.Fixed, len(xs))
	copy(s, xs)
	sort.Slice(s, func(i, j int) bool { return s[i] < s[j] })
	return s
}
