package stats

import fp "github.com/tworjaga/flipper-rf-lab/internal/fixedpoint"

// коэффициенты Абрамовица-Стиган 7.1.26
var (
	erfP  = fp.FromFloat(0.3275911)
	erfA1 = fp.FromFloat(0.254829592)
	erfA2 = fp.FromFloat(-0.284496736)
	erfA3 = fp.FromFloat(1.421413741)
	erfA4 = fp.FromFloat(-1.453152027)
	erfA5 = fp.FromFloat(1.061405429)

	sqrt2     = fp.FromFloat(1.41421356)
	sqrtTwoPi = fp.FromFloat(2.50662827)
)

// Erf функция ошибок, абсолютная погрешность около 1e-4
func Erf(x fp.Fixed) fp.Fixed {
	neg := x < 0
	x = fp.Abs(x)

	t := fp.Div(fp.One, fp.One+fp.Mul(erfP, x))
	poly := fp.Mul(erfA5, t)
	poly = fp.Mul(poly+erfA4, t)
	poly = fp.Mul(poly+erfA3, t)
	poly = fp.Mul(poly+erfA2, t)
	poly = fp.Mul(poly+erfA1, t)

	y := fp.One - fp.Mul(poly, fp.Exp(-fp.MulSat(x, x)))
	if neg {
		return -y
	}
	return y
}

// NormalCDF функция распределения N(mean, std)
func NormalCDF(x, mean, std fp.Fixed) fp.Fixed {
	if std <= 0 {
		if x < mean {
			return 0
		}
		return fp.One
	}
	z := fp.Div(fp.SubSat(x, mean), fp.Mul(std, sqrt2))
	return fp.Mul(fp.Half, fp.One+Erf(z))
}

// NormalPDF плотность N(mean, std)
func NormalPDF(x, mean, std fp.Fixed) fp.Fixed {
	if std <= 0 {
		return 0
	}
	z := fp.Div(fp.SubSat(x, mean), std)
	e := fp.Exp(-fp.Mul(fp.Half, fp.MulSat(z, z)))
	return fp.Div(e, fp.Mul(std, sqrtTwoPi))
}
