package stats

import "errors"

var (
	// ErrInvalidRange некорректный диапазон гистограммы
	ErrInvalidRange = errors.New("invalid histogram range")
	// ErrInvalidBins количество бинов вне допустимых пределов
	ErrInvalidBins = errors.New("invalid histogram bin count")
	// ErrTooManyTaps фильтр FIR длиннее MaxFIRTaps
	ErrTooManyTaps = errors.New("too many FIR taps")
	// ErrInvalidOrder порядок IIR вне [1, MaxIIROrder]
	ErrInvalidOrder = errors.New("invalid IIR order")
)
