package clustering

import (
	"errors"

	fp "github.com/tworjaga/flipper-rf-lab/internal/fixedpoint"
)

var (
	// ErrUnsupported иерархическая кластеризация и полный DTW не реализованы
	ErrUnsupported = fp.ErrUnsupported
	// ErrEmptyDataset нет точек для кластеризации
	ErrEmptyDataset = errors.New("empty dataset")
)
