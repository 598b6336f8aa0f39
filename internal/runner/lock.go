package runner

import "sync/atomic"

// Lock is a non-blocking mutual exclusion guard
type Lock struct {
	state atomic.Int32 // 0 = free, 1 = held
}

// TryAcquire takes the lock if it is free and reports whether it did
func (l *Lock) TryAcquire() bool {
	return l.state.CompareAndSwap(0, 1)
}

// Release frees the lock. Only the holder may call it.
func (l *Lock) Release() {
	l.state.Store(0)
}

// Held reports whether the lock is currently taken
func (l *Lock) Held() bool {
	return l.state.Load() == 1
}
