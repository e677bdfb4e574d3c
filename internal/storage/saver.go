package storage

import (
	"context"
	"sync"
	"time"

	"securitysystem/internal/alarm"

	"go.uber.org/zap"
)

const saveTimeout = 5 * time.Second

// Saver writes controller state in the background. It implements
// alarm.Persister; when several states arrive while a write is in
// progress only the latest one is written.
type Saver struct {
	store  *Store
	logger *zap.Logger

	mu      sync.Mutex
	pending *alarm.PersistedState

	wake    chan struct{}
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// NewSaver starts the background writer
func NewSaver(store *Store, logger *zap.Logger) *Saver {
	s := &Saver{
		store:   store,
		logger:  logger.Named("storage"),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go s.run()
	return s
}

// Persist implements alarm.Persister
func (s *Saver) Persist(ps alarm.PersistedState) {
	s.mu.Lock()
	s.pending = &ps
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Saver) run() {
	defer close(s.stopped)
	for {
		select {
		case <-s.wake:
			s.flush()
		case <-s.done:
			s.flush()
			return
		}
	}
}

func (s *Saver) flush() {
	s.mu.Lock()
	ps := s.pending
	s.pending = nil
	s.mu.Unlock()

	if ps == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	if err := s.store.SaveState(ctx, *ps); err != nil {
		s.logger.Error("Failed to save state", zap.Error(err))
		return
	}
	s.logger.Debug("State saved",
		zap.String("current", ps.CurrentState.String()),
		zap.String("target", ps.TargetState.String()))
}

// Close writes any pending state and stops the writer
func (s *Saver) Close() {
	s.once.Do(func() {
		close(s.done)
	})
	<-s.stopped
}
