package analytics

import (
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/tworjaga/flipper-rf-lab/internal/clustering"
)

// DefaultMaxSessions предел одновременных сессий
const DefaultMaxSessions = 64

// Registry активные сессии захвата
type Registry struct {
	mu        sync.RWMutex
	sessions  map[string]*Session
	max       int
	cfg       SessionConfig
	clusterer *clustering.Engine
	pool      *clustering.Pool
	closed    bool
	logger    *zap.Logger
}

// NewRegistry создает реестр и запускает общий пул перекластеризации.
// Число горутин не растет с числом сессий
func NewRegistry(maxSessions int, cfg SessionConfig, clusterer *clustering.Engine, logger *zap.Logger) *Registry {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if clusterer == nil {
		clusterer = clustering.NewEngine(clustering.DefaultConfig(), logger)
	}
	return &Registry{
		sessions:  make(map[string]*Session),
		max:       maxSessions,
		cfg:       cfg,
		clusterer: clusterer,
		pool:      clustering.NewPool(cfg.ReclusterWorkers, logger),
		logger:    logger,
	}
}

// Create открывает новую сессию
func (r *Registry) Create() (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrRegistryClosed
	}
	if len(r.sessions) >= r.max {
		return nil, ErrTooManySessions
	}
	s := NewSession(r.cfg, r.clusterer, r.pool)
	r.sessions[s.ID] = s
	r.logger.Info("session created", zap.String("session_id", s.ID))
	return s, nil
}

func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Delete закрывает и удаляет сессию
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	s.Close()
	r.logger.Info("session deleted", zap.String("session_id", id))
	return nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// IDs идентификаторы сессий в лексикографическом порядке
func (r *Registry) IDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	slices.Sort(ids)
	return ids
}

// Close закрывает все сессии и останавливает пул
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
	r.pool.Close()
}
