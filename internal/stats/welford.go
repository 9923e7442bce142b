// Package stats содержит онлайн-статистику, гистограммы, регрессию,
// энтропию и цифровые фильтры поверх арифметики Q15.16
package stats

import fp "github.com/tworjaga/flipper-rf-lab/internal/fixedpoint"

// Welford вычисляет среднее и дисперсию за один проход с памятью O(1)
type Welford struct {
	n    uint32
	mean fp.Fixed
	m2   fp.Fixed
	min  fp.Fixed
	max  fp.Fixed
}

// Add добавляет отсчет
func (w *Welford) Add(x fp.Fixed) {
	w.n++
	if w.n == 1 {
		w.min, w.max = x, x
	} else {
		if x < w.min {
			w.min = x
		}
		if x > w.max {
			w.max = x
		}
	}

	delta := fp.SubSat(x, w.mean)
	w.mean = fp.AddSat(w.mean, delta/fp.Fixed(w.n))
	w.m2 = fp.AddSat(w.m2, fp.MulSat(delta, fp.SubSat(x, w.mean)))
}

func (w *Welford) Count() uint32  { return w.n }
func (w *Welford) Mean() fp.Fixed { return w.mean }
func (w *Welford) Min() fp.Fixed  { return w.min }
func (w *Welford) Max() fp.Fixed  { return w.max }

// Variance выборочная дисперсия (n-1); 0 при n < 2
func (w *Welford) Variance() fp.Fixed {
	if w.n < 2 {
		return 0
	}
	return w.m2 / fp.Fixed(w.n-1)
}

// StdDev стандартное отклонение
func (w *Welford) StdDev() fp.Fixed {
	return fp.Sqrt(w.Variance())
}

// Reset сбрасывает накопленную статистику
func (w *Welford) Reset() {
	*w = Welford{}
}
