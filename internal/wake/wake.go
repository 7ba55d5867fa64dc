// Package wake abstracts the platform keep-awake handle held while a
// submission is in flight.
package wake

import "sync"

// Lock is a platform keep-awake resource. Acquire and Release must both be
// idempotent; the engine releases on every exit path.
type Lock interface {
	Acquire()
	Release()
}

// Nop is the default lock on platforms without a power-management hook.
type Nop struct{}

func (Nop) Acquire() {}
func (Nop) Release() {}

// Counting tracks balance for tests and for wrapping real platform hooks.
type Counting struct {
	mu   sync.Mutex
	held bool

	Acquires int
	Releases int
}

func (c *Counting) Acquire() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.held {
		c.held = true
		c.Acquires++
	}
}

func (c *Counting) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.held {
		c.held = false
		c.Releases++
	}
}

// Held reports whether the lock is currently held.
func (c *Counting) Held() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.held
}
