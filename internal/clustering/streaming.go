package clustering

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/tworjaga/flipper-rf-lab/internal/ring"
)

// DefaultReclusterInterval число новых точек между перекластеризациями
const DefaultReclusterInterval = 50

// Streaming накапливает точки и периодически перекластеризует их.
// Последний завершенный результат доступен без блокировки приема точек
type Streaming struct {
	engine   *Engine
	k        int
	interval int

	mu      sync.Mutex
	buf     *ring.Buffer[DataPoint]
	pending int
	pool    *Pool

	latest atomic.Pointer[Result]
	runs   atomic.Uint64
}

// NewStreaming создает потоковую кластеризацию. Без пула перекластеризация
// выполняется синхронно внутри Add
func NewStreaming(engine *Engine, k, capacity, interval int) *Streaming {
	if capacity <= 0 {
		capacity = DefaultDatasetCapacity
	}
	if interval <= 0 {
		interval = DefaultReclusterInterval
	}
	s := &Streaming{
		engine:   engine,
		k:        k,
		interval: interval,
		buf:      ring.New[DataPoint](capacity, ring.DropNewest),
	}
	s.latest.Store(&Result{})
	return s
}

// UsePool передает перекластеризацию общему пулу воркеров
func (s *Streaming) UsePool(p *Pool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pool = p
}

// Detach отключает поток от пула и снимает ожидающий снимок
func (s *Streaming) Detach() {
	s.mu.Lock()
	p := s.pool
	s.pool = nil
	s.mu.Unlock()
	if p != nil {
		p.cancel(s)
	}
}

// Add добавляет точку. Возвращает false, если буфер заполнен
func (s *Streaming) Add(p DataPoint) bool {
	s.mu.Lock()
	ok, _ := s.buf.Push(p)
	if !ok {
		s.mu.Unlock()
		return false
	}
	s.pending++
	if s.pending < s.interval {
		s.mu.Unlock()
		return true
	}
	s.pending = 0
	snapshot := s.buf.Items()
	pool := s.pool
	s.mu.Unlock()

	// закрытый пул не принимает снимки, тогда считаем сами
	if pool == nil || !pool.submit(s, snapshot) {
		s.recluster(snapshot)
	}
	return true
}

func (s *Streaming) recluster(points []DataPoint) {
	res := s.engine.KMeans(points, s.k)
	s.runs.Add(1)
	// буфер только растет, поэтому результат по более короткому снимку устарел
	for {
		cur := s.latest.Load()
		if len(cur.Assignments) > len(res.Assignments) {
			return
		}
		if s.latest.CompareAndSwap(cur, &res) {
			return
		}
	}
}

// Flush перекластеризует накопленные точки немедленно
func (s *Streaming) Flush() Result {
	s.mu.Lock()
	snapshot := s.buf.Items()
	s.pending = 0
	s.mu.Unlock()
	s.recluster(snapshot)
	return *s.latest.Load()
}

// Latest последний завершенный результат
func (s *Streaming) Latest() Result {
	return *s.latest.Load()
}

// Runs число выполненных перекластеризаций
func (s *Streaming) Runs() uint64 {
	return s.runs.Load()
}

func (s *Streaming) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Len()
}

// Reset очищает буфер и результат
func (s *Streaming) Reset() {
	s.mu.Lock()
	s.buf.Reset()
	s.pending = 0
	pool := s.pool
	s.mu.Unlock()
	if pool != nil {
		pool.cancel(s)
	}
	s.latest.Store(&Result{})
	s.engine.logger.Debug("streaming clustering reset", zap.Int("k", s.k))
}
