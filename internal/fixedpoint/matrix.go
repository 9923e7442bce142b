package fixedpoint

import "math"

// MaxDim максимальная размерность матриц и векторов
const MaxDim = 8

// Matrix матрица до 8x8 без динамической памяти
type Matrix struct {
	Rows, Cols int
	Data       [MaxDim][MaxDim]Fixed
}

// Vector вектор до 8 элементов
type Vector struct {
	N    int
	Data [MaxDim]Fixed
}

// NewMatrix создает нулевую матрицу rows x cols
func NewMatrix(rows, cols int) (Matrix, error) {
	if rows <= 0 || cols <= 0 || rows > MaxDim || cols > MaxDim {
		return Matrix{}, ErrDimension
	}
	return Matrix{Rows: rows, Cols: cols}, nil
}

// Identity единичная матрица n x n
func Identity(n int) (Matrix, error) {
	m, err := NewMatrix(n, n)
	if err != nil {
		return m, err
	}
	for i := 0; i < n; i++ {
		m.Data[i][i] = One
	}
	return m, nil
}

// NewVector создает вектор из значений
func NewVector(values ...Fixed) (Vector, error) {
	if len(values) == 0 || len(values) > MaxDim {
		return Vector{}, ErrDimension
	}
	v := Vector{N: len(values)}
	copy(v.Data[:], values)
	return v, nil
}

func (m Matrix) At(r, c int) Fixed { return m.Data[r][c] }

func (m *Matrix) Set(r, c int, v Fixed) { m.Data[r][c] = v }

func MatAdd(a, b Matrix) (Matrix, error) {
	if a.Rows != b.Rows || a.Cols != b.Cols {
		return Matrix{}, ErrDimension
	}
	out := Matrix{Rows: a.Rows, Cols: a.Cols}
	for i := 0; i < a.Rows; i++ {
		for j := 0; j < a.Cols; j++ {
			out.Data[i][j] = a.Data[i][j] + b.Data[i][j]
		}
	}
	return out, nil
}

func MatSub(a, b Matrix) (Matrix, error) {
	if a.Rows != b.Rows || a.Cols != b.Cols {
		return Matrix{}, ErrDimension
	}
	out := Matrix{Rows: a.Rows, Cols: a.Cols}
	for i := 0; i < a.Rows; i++ {
		for j := 0; j < a.Cols; j++ {
			out.Data[i][j] = a.Data[i][j] - b.Data[i][j]
		}
	}
	return out, nil
}

// MatMul перемножает матрицы, накопление в 64 битах
func MatMul(a, b Matrix) (Matrix, error) {
	if a.Cols != b.Rows {
		return Matrix{}, ErrDimension
	}
	out := Matrix{Rows: a.Rows, Cols: b.Cols}
	for i := 0; i < a.Rows; i++ {
		for j := 0; j < b.Cols; j++ {
			var acc int64
			for k := 0; k < a.Cols; k++ {
				acc += int64(a.Data[i][k]) * int64(b.Data[k][j])
			}
			out.Data[i][j] = saturate((acc + int64(Half)) >> FracBits)
		}
	}
	return out, nil
}

func MatScale(m Matrix, s Fixed) Matrix {
	out := Matrix{Rows: m.Rows, Cols: m.Cols}
	for i := 0; i < m.Rows; i++ {
		for j := 0; j < m.Cols; j++ {
			out.Data[i][j] = MulSat(m.Data[i][j], s)
		}
	}
	return out
}

func Transpose(m Matrix) Matrix {
	out := Matrix{Rows: m.Cols, Cols: m.Rows}
	for i := 0; i < m.Rows; i++ {
		for j := 0; j < m.Cols; j++ {
			out.Data[j][i] = m.Data[i][j]
		}
	}
	return out
}

// MatVec умножает матрицу на вектор
func MatVec(m Matrix, v Vector) (Vector, error) {
	if m.Cols != v.N {
		return Vector{}, ErrDimension
	}
	out := Vector{N: m.Rows}
	for i := 0; i < m.Rows; i++ {
		var acc int64
		for k := 0; k < m.Cols; k++ {
			acc += int64(m.Data[i][k]) * int64(v.Data[k])
		}
		out.Data[i] = saturate((acc + int64(Half)) >> FracBits)
	}
	return out, nil
}

// Det2 определитель матрицы 2x2
func Det2(m Matrix) (Fixed, error) {
	if m.Rows != 2 || m.Cols != 2 {
		return 0, ErrDimension
	}
	return SubSat(Mul(m.Data[0][0], m.Data[1][1]), Mul(m.Data[0][1], m.Data[1][0])), nil
}

// Det3 определитель матрицы 3x3 разложением по первой строке
func Det3(m Matrix) (Fixed, error) {
	if m.Rows != 3 || m.Cols != 3 {
		return 0, ErrDimension
	}
	d := m.Data
	a := Mul(d[0][0], Mul(d[1][1], d[2][2])-Mul(d[1][2], d[2][1]))
	b := Mul(d[0][1], Mul(d[1][0], d[2][2])-Mul(d[1][2], d[2][0]))
	c := Mul(d[0][2], Mul(d[1][0], d[2][1])-Mul(d[1][1], d[2][0]))
	return AddSat(SubSat(a, b), c), nil
}

// Inverse2 обратная матрица 2x2
func Inverse2(m Matrix) (Matrix, error) {
	det, err := Det2(m)
	if err != nil {
		return Matrix{}, err
	}
	if det == 0 {
		return Matrix{}, ErrSingular
	}
	out := Matrix{Rows: 2, Cols: 2}
	out.Data[0][0] = Div(m.Data[1][1], det)
	out.Data[0][1] = Div(-m.Data[0][1], det)
	out.Data[1][0] = Div(-m.Data[1][0], det)
	out.Data[1][1] = Div(m.Data[0][0], det)
	return out, nil
}

// Inverse3 не реализована
func Inverse3(m Matrix) (Matrix, error) {
	if m.Rows != 3 || m.Cols != 3 {
		return Matrix{}, ErrDimension
	}
	return Matrix{}, ErrUnsupported
}

func VecAdd(a, b Vector) (Vector, error) {
	if a.N != b.N {
		return Vector{}, ErrDimension
	}
	out := Vector{N: a.N}
	for i := 0; i < a.N; i++ {
		out.Data[i] = a.Data[i] + b.Data[i]
	}
	return out, nil
}

func VecSub(a, b Vector) (Vector, error) {
	if a.N != b.N {
		return Vector{}, ErrDimension
	}
	out := Vector{N: a.N}
	for i := 0; i < a.N; i++ {
		out.Data[i] = a.Data[i] - b.Data[i]
	}
	return out, nil
}

func VecScale(v Vector, s Fixed) Vector {
	out := Vector{N: v.N}
	for i := 0; i < v.N; i++ {
		out.Data[i] = MulSat(v.Data[i], s)
	}
	return out
}

// Dot скалярное произведение
func Dot(a, b Vector) (Fixed, error) {
	if a.N != b.N {
		return 0, ErrDimension
	}
	var acc int64
	for i := 0; i < a.N; i++ {
		acc += int64(a.Data[i]) * int64(b.Data[i])
	}
	return saturate((acc + int64(Half)) >> FracBits), nil
}

// Norm евклидова норма вектора
func Norm(v Vector) Fixed {
	var acc uint64
	for i := 0; i < v.N; i++ {
		x := int64(v.Data[i])
		sq := uint64(x * x)
		if acc > math.MaxUint64-sq {
			acc = math.MaxUint64
			break
		}
		acc += sq
	}
	// acc в Q32, корень сразу дает Q16
	return saturate(int64(isqrtRound(acc)))
}

// Normalize возвращает единичный вектор; нулевой вектор остается нулевым
func Normalize(v Vector) Vector {
	n := Norm(v)
	if n == 0 {
		return v
	}
	out := Vector{N: v.N}
	for i := 0; i < v.N; i++ {
		out.Data[i] = Div(v.Data[i], n)
	}
	return out
}
