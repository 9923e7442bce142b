package fixedpoint

import "errors"

var (
	// ErrUnsupported операция объявлена, но не реализована
	ErrUnsupported = errors.New("operation not supported")
	// ErrDimension несовместимые размеры матриц или векторов
	ErrDimension = errors.New("dimension mismatch")
	// ErrSingular вырожденная матрица
	ErrSingular = errors.New("singular matrix")
)
