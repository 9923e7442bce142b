package clustering

import (
	"sync"

	"go.uber.org/zap"
)

// DefaultPoolWorkers число воркеров перекластеризации по умолчанию
const DefaultPoolWorkers = 2

// Pool фиксированный набор воркеров перекластеризации, общий для всех
// потоков. На каждый поток в очереди хранится не больше одного снимка:
// новый снимок заменяет еще не обработанный
type Pool struct {
	logger *zap.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	pending map[*Streaming][]DataPoint
	order   []*Streaming
	closed  bool

	wg      sync.WaitGroup
	workers int
}

// NewPool запускает n воркеров
func NewPool(n int, logger *zap.Logger) *Pool {
	if n <= 0 {
		n = DefaultPoolWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pool{
		logger:  logger,
		pending: make(map[*Streaming][]DataPoint),
		workers: n,
	}
	p.cond = sync.NewCond(&p.mu)
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	logger.Info("recluster pool started", zap.Int("workers", n))
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		for len(p.order) == 0 && !p.closed {
			p.cond.Wait()
		}
		if p.closed {
			p.mu.Unlock()
			return
		}
		s := p.order[0]
		p.order[0] = nil
		p.order = p.order[1:]
		snapshot := p.pending[s]
		delete(p.pending, s)
		p.mu.Unlock()

		s.recluster(snapshot)
	}
}

// submit ставит снимок потока в очередь; false после Close
func (p *Pool) submit(s *Streaming, snapshot []DataPoint) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	if _, waiting := p.pending[s]; !waiting {
		p.order = append(p.order, s)
	}
	p.pending[s] = snapshot
	p.cond.Signal()
	return true
}

// cancel убирает ожидающий снимок потока
func (p *Pool) cancel(s *Streaming) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, waiting := p.pending[s]; !waiting {
		return
	}
	delete(p.pending, s)
	for i, q := range p.order {
		if q == s {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
}

// Pending число потоков, ожидающих перекластеризации
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.order)
}

func (p *Pool) Workers() int { return p.workers }

// Close останавливает воркеров; ожидающие снимки не обрабатываются
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.order = nil
	clear(p.pending)
	p.cond.Broadcast()
	p.mu.Unlock()
	p.wg.Wait()
	p.logger.Info("recluster pool stopped")
}
