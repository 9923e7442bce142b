// Package ring реализует контейнеры фиксированной емкости с явной политикой переполнения
package ring

import "errors"

// ErrFull буфер заполнен и политика Reject отклонила элемент
var ErrFull = errors.New("ring buffer full")

// Policy определяет поведение при переполнении
type Policy int

const (
	// DropNewest отбрасывает новый элемент
	DropNewest Policy = iota
	// DropOldest вытесняет самый старый элемент
	DropOldest
	// Reject отклоняет элемент с ошибкой ErrFull
	Reject
)

func (p Policy) String() string {
	switch p {
	case DropNewest:
		return "drop-newest"
	case DropOldest:
		return "drop-oldest"
	case Reject:
		return "reject"
	default:
		return "unknown"
	}
}

// Buffer кольцевой буфер; память выделяется один раз при создании
type Buffer[T any] struct {
	items   []T
	policy  Policy
	head    int // индекс самого старого элемента
	count   int
	dropped uint64
}

// New создает буфер заданной емкости (минимум 1)
func New[T any](capacity int, policy Policy) *Buffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer[T]{
		items:  make([]T, capacity),
		policy: policy,
	}
}

// Push добавляет элемент. Возвращает false, если элемент не сохранен
func (b *Buffer[T]) Push(item T) (bool, error) {
	size := len(b.items)
	if b.count < size {
		b.items[(b.head+b.count)%size] = item
		b.count++
		return true, nil
	}

	switch b.policy {
	case DropOldest:
		b.items[b.head] = item
		b.head = (b.head + 1) % size
		b.dropped++
		return true, nil
	case Reject:
		b.dropped++
		return false, ErrFull
	default:
		b.dropped++
		return false, nil
	}
}

// At возвращает i-й элемент от самого старого
func (b *Buffer[T]) At(i int) T {
	return b.items[(b.head+i)%len(b.items)]
}

// Items копирует содержимое в порядке поступления
func (b *Buffer[T]) Items() []T {
	out := make([]T, b.count)
	for i := 0; i < b.count; i++ {
		out[i] = b.At(i)
	}
	return out
}

// Last возвращает последний добавленный элемент
func (b *Buffer[T]) Last() (T, bool) {
	var zero T
	if b.count == 0 {
		return zero, false
	}
	return b.At(b.count - 1), true
}

func (b *Buffer[T]) Len() int        { return b.count }
func (b *Buffer[T]) Cap() int        { return len(b.items) }
func (b *Buffer[T]) Full() bool      { return b.count == len(b.items) }
func (b *Buffer[T]) Dropped() uint64 { return b.dropped }
func (b *Buffer[T]) Policy() Policy  { return b.policy }

// Reset очищает буфер, не освобождая память
func (b *Buffer[T]) Reset() {
	var zero T
	for i := range b.items {
		b.items[i] = zero
	}
	b.head = 0
	b.count = 0
	b.dropped = 0
}
