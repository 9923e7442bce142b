// Package fixedpoint реализует детерминированную арифметику Q15.16
// Все функции чистые: одинаковые аргументы всегда дают одинаковый результат
package fixedpoint

import (
	"math"
	"math/bits"
)

// Fixed число в формате Q15.16 (16 бит целой части со знаком, 16 бит дробной)
type Fixed int32

const (
	// FracBits количество дробных бит
	FracBits = 16

	One  Fixed = 1 << FracBits
	Half Fixed = One >> 1

	Max Fixed = math.MaxInt32
	Min Fixed = math.MinInt32

	Pi     Fixed = 205887
	TwoPi  Fixed = 411775
	HalfPi Fixed = 102944
	E      Fixed = 178145
	Ln2    Fixed = 45426
	Ln10   Fixed = 150902

	log10of2 Fixed = 19728

	// expClamp граница аргумента exp, за которой результат насыщается
	expClamp Fixed = 11 << FracBits
	// expTerms количество членов ряда Тейлора
	expTerms = 12
	// sqrtIterations максимум итераций Ньютона
	sqrtIterations = 8

	speedOfLight = 299792458
)

// FromInt переводит целое в Fixed (с переполнением)
func FromInt(n int) Fixed {
	return Fixed(int32(n) << FracBits)
}

// FromIntSat переводит целое в Fixed с насыщением
func FromIntSat(n int64) Fixed {
	if n > math.MaxInt16 {
		return Max
	}
	if n < math.MinInt16 {
		return Min
	}
	return Fixed(int32(n) << FracBits)
}

// FromFloat переводит float64 в Fixed с округлением и насыщением
func FromFloat(f float64) Fixed {
	return saturate(int64(math.Round(f * float64(One))))
}

// FromRatio возвращает num/den без промежуточного float
func FromRatio(num, den int64) Fixed {
	if den == 0 {
		if num >= 0 {
			return Max
		}
		return Min
	}
	return saturate(roundDiv(num<<FracBits, den))
}

// Float возвращает значение как float64
func (x Fixed) Float() float64 {
	return float64(x) / float64(One)
}

// Int возвращает целую часть (округление вниз)
func (x Fixed) Int() int {
	return int(x >> FracBits)
}

// Raw возвращает внутреннее представление
func (x Fixed) Raw() int32 {
	return int32(x)
}

func saturate(v int64) Fixed {
	if v > math.MaxInt32 {
		return Max
	}
	if v < math.MinInt32 {
		return Min
	}
	return Fixed(v)
}

// roundDiv делит с округлением к ближайшему
func roundDiv(num, den int64) int64 {
	half := den / 2
	if half < 0 {
		half = -half
	}
	if (num < 0) != (den < 0) {
		return (num - half) / den
	}
	return (num + half) / den
}

// Add складывает без насыщения
func Add(a, b Fixed) Fixed { return a + b }

// Sub вычитает без насыщения
func Sub(a, b Fixed) Fixed { return a - b }

// Mul умножает через 64-битный промежуточный результат с округлением
func Mul(a, b Fixed) Fixed {
	p := int64(a) * int64(b)
	return Fixed((p + int64(Half)) >> FracBits)
}

// Div делит с округлением; деление на ноль дает крайнее значение нужного знака
func Div(a, b Fixed) Fixed {
	if b == 0 {
		if a >= 0 {
			return Max
		}
		return Min
	}
	return saturate(roundDiv(int64(a)<<FracBits, int64(b)))
}

// AddSat складывает с насыщением
func AddSat(a, b Fixed) Fixed {
	return saturate(int64(a) + int64(b))
}

// SubSat вычитает с насыщением
func SubSat(a, b Fixed) Fixed {
	return saturate(int64(a) - int64(b))
}

// MulSat умножает с насыщением
func MulSat(a, b Fixed) Fixed {
	p := int64(a) * int64(b)
	return saturate((p + int64(Half)) >> FracBits)
}

// Abs модуль с насыщением для Min
func Abs(x Fixed) Fixed {
	if x == Min {
		return Max
	}
	if x < 0 {
		return -x
	}
	return x
}

func (x Fixed) Floor() Fixed {
	return x &^ (One - 1)
}

func (x Fixed) Ceil() Fixed {
	if x&(One-1) == 0 {
		return x
	}
	return SubSat(x.Floor(), -One)
}

// Round округляет до ближайшего целого (половина вверх)
func (x Fixed) Round() Fixed {
	return AddSat(x, Half).Floor()
}

func Clamp(x, lo, hi Fixed) Fixed {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// Sqrt квадратный корень методом Ньютона; для x <= 0 возвращает 0
func Sqrt(x Fixed) Fixed {
	if x <= 0 {
		return 0
	}
	return Fixed(isqrtRound(uint64(x) << FracBits))
}

// isqrtRound целочисленный корень с округлением к ближайшему.
// Начальное приближение сверху по длине числа в битах, поэтому
// восьми итераций хватает на весь диапазон.
func isqrtRound(n uint64) uint64 {
	if n == 0 {
		return 0
	}
	g := uint64(1) << ((bits.Len64(n) + 1) / 2)
	if g > math.MaxUint32 {
		g = math.MaxUint32
	}
	for i := 0; i < sqrtIterations; i++ {
		next := (g + n/g) / 2
		if next >= g {
			break
		}
		g = next
	}
	for g*g > n {
		g--
	}
	if n-g*g > g {
		g++
	}
	return g
}

// ISqrt64 целочисленный корень для внутренних вычислений расстояний
func ISqrt64(n uint64) uint64 {
	return isqrtRound(n)
}

// Exp экспонента рядом Тейлора после приведения аргумента по ln2
func Exp(x Fixed) Fixed {
	if x > expClamp {
		return Max
	}
	if x < -expClamp {
		return 0
	}
	if x == 0 {
		return One
	}

	// x = k*ln2 + r, |r| <= ln2/2
	k := int(roundDiv(int64(x), int64(Ln2)))
	r := x - Fixed(k)*Ln2

	sum, term := One, One
	for n := 1; n < expTerms; n++ {
		term = Mul(term, r) / Fixed(n)
		if term == 0 {
			break
		}
		sum += term
	}

	if k >= 0 {
		if k >= 31 {
			return Max
		}
		return saturate(int64(sum) << uint(k))
	}
	if -k >= 31 {
		return 0
	}
	return sum >> uint(-k)
}

// log2Mantissa интерполирует log2(1+f/65536) по таблице
func log2Mantissa(f uint32) int32 {
	idx := f >> 8
	frac := int32(f & 0xFF)
	lo, hi := log2Table[idx], log2Table[idx+1]
	return lo + ((hi-lo)*frac)>>8
}

// Log2 двоичный логарифм по таблице; для x <= 0 возвращает Min
func Log2(x Fixed) Fixed {
	if x <= 0 {
		return Min
	}
	// нормализация мантиссы к [1,2)
	k := bits.Len32(uint32(x)) - (FracBits + 1)
	var m uint32
	if k >= 0 {
		m = uint32(x) >> uint(k)
	} else {
		m = uint32(x) << uint(-k)
	}
	return Fixed(int32(k)<<FracBits + log2Mantissa(m-uint32(One)))
}

// Log2Uint двоичный логарифм целого числа; для 0 возвращает Min
func Log2Uint(n uint64) Fixed {
	if n == 0 {
		return Min
	}
	k := bits.Len64(n) - 1
	var m uint64
	if k >= FracBits {
		m = n >> uint(k-FracBits)
	} else {
		m = n << uint(FracBits-k)
	}
	return Fixed(int32(k)<<FracBits + log2Mantissa(uint32(m)-uint32(One)))
}

// Log натуральный логарифм
func Log(x Fixed) Fixed {
	if x <= 0 {
		return Min
	}
	return Mul(Log2(x), Ln2)
}

func Log10(x Fixed) Fixed {
	if x <= 0 {
		return Min
	}
	return Mul(Log2(x), log10of2)
}

// Pow возводит x в степень y через exp(y*ln x)
func Pow(x, y Fixed) Fixed {
	if y == 0 {
		return One
	}
	if x <= 0 {
		return 0
	}
	return Exp(MulSat(y, Log(x)))
}

// reduceAngle приводит угол к [0, 2π)
func reduceAngle(x int64) int64 {
	x %= int64(TwoPi)
	if x < 0 {
		x += int64(TwoPi)
	}
	return x
}

// Sin по таблице из 256 точек с линейной интерполяцией
func Sin(x Fixed) Fixed {
	a := reduceAngle(int64(x))
	// позиция в таблице в формате Q16
	pos := (a << (8 + FracBits)) / int64(TwoPi)
	i := int(pos>>FracBits) & 0xFF
	frac := pos & int64(One-1)
	lo := int64(sinTable[i])
	hi := int64(sinTable[(i+1)&0xFF])
	return Fixed(lo + ((hi-lo)*frac)>>FracBits)
}

// Cos(x) = Sin(x + π/2)
func Cos(x Fixed) Fixed {
	return Sin(Fixed(reduceAngle(int64(x) + int64(HalfPi))))
}

func Tan(x Fixed) Fixed {
	return Div(Sin(x), Cos(x))
}

// Atan полиномиальная аппроксимация, ошибка около 0.0015 рад
func Atan(x Fixed) Fixed {
	if x < 0 {
		return -Atan(Abs(x))
	}
	if x > One {
		return HalfPi - Atan(Div(One, x))
	}
	// π/4·x − x(x−1)(0.2447 + 0.0663x)
	c1 := FromFloat(0.2447)
	c2 := FromFloat(0.0663)
	quarterPi := Pi / 4
	poly := Mul(Mul(x, x-One), c1+Mul(c2, x))
	return Mul(quarterPi, x) - poly
}

func Atan2(y, x Fixed) Fixed {
	switch {
	case x > 0:
		return Atan(Div(y, x))
	case x < 0 && y >= 0:
		return Atan(Div(y, x)) + Pi
	case x < 0:
		return Atan(Div(y, x)) - Pi
	case y > 0:
		return HalfPi
	case y < 0:
		return -HalfPi
	}
	return 0
}

// Asin для |x| > 1 насыщается до ±π/2
func Asin(x Fixed) Fixed {
	if x >= One {
		return HalfPi
	}
	if x <= -One {
		return -HalfPi
	}
	return Atan2(x, Sqrt(One-Mul(x, x)))
}

func Acos(x Fixed) Fixed {
	return HalfPi - Asin(x)
}

// RSSIToDBm переводит линейную мощность в дБм; для неположительной мощности -100 дБм
func RSSIToDBm(linear Fixed) Fixed {
	if linear <= 0 {
		return FromInt(-100)
	}
	return MulSat(FromInt(10), Log10(linear))
}

// DBmToLinear 10^(dBm/10)
func DBmToLinear(dbm Fixed) Fixed {
	return Pow(FromInt(10), Div(dbm, FromInt(10)))
}

// DBRatio отношение мощностей в дБ
func DBRatio(power1, power0 Fixed) Fixed {
	if power0 == 0 {
		return Max
	}
	return RSSIToDBm(Div(power1, power0))
}

// FreqToWavelength длина волны в метрах для частоты в герцах
func FreqToWavelength(freqHz uint32) Fixed {
	if freqHz == 0 {
		return Max
	}
	return saturate(roundDiv(int64(speedOfLight)<<FracBits, int64(freqHz)))
}
