package training

import (
	"errors"
	"fmt"
	"sync"
)

// ErrModelBusy is returned when a model is already held by a run.
var ErrModelBusy = errors.New("model is busy")

// Locks tracks which models are held and by whom.
type Locks struct {
	mu   sync.Mutex
	held map[string]string
}

// NewLocks returns an empty lock table.
func NewLocks() *Locks {
	return &Locks{held: make(map[string]string)}
}

// TryLock takes name for owner, failing with ErrModelBusy if anyone holds it.
func (l *Locks) TryLock(name, owner string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if holder, ok := l.held[name]; ok {
		return fmt.Errorf("%w: model '%s' is held by %s", ErrModelBusy, name, holder)
	}
	l.held[name] = owner
	return nil
}

// Unlock releases name if owner holds it.
func (l *Locks) Unlock(name, owner string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[name] == owner {
		delete(l.held, name)
	}
}

// Holder returns the owner of name, if any.
func (l *Locks) Holder(name string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	owner, ok := l.held[name]
	return owner, ok
}
