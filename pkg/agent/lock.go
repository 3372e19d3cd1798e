package agent

import (
	"context"
	"errors"
	"sync"
)

// ErrTurnInProgress is returned when a session is already busy with a turn.
var ErrTurnInProgress = errors.New("turn already in progress")

// Locker allows one turn per session at a time. Acquire fails with
// ErrTurnInProgress instead of waiting.
type Locker interface {
	Acquire(ctx context.Context, sessionID string) (release func(), err error)
}

// LocalLocker is an in-process Locker.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

var _ Locker = (*LocalLocker)(nil)

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]bool)}
}

func (l *LocalLocker) Acquire(ctx context.Context, sessionID string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[sessionID] {
		return nil, ErrTurnInProgress
	}
	l.held[sessionID] = true
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, sessionID)
			l.mu.Unlock()
		})
	}, nil
}
