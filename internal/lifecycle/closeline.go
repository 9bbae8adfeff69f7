// Package lifecycle orders the shutdown of long-lived resources.
package lifecycle

import (
	"errors"
	"fmt"
	"sync"

	"fabrikmcp/internal/log"
)

type closer struct {
	name string
	fn   func() error
}

// CloseLine is a line of closers that are closed sequentially, in the order
// they were added. It is safe to call Close more than once.
type CloseLine struct {
	mu      sync.Mutex
	closers []closer
}

// Add adds a closer that cannot fail.
func (c *CloseLine) Add(name string, fn func()) {
	c.AddE(name, func() error {
		fn()
		return nil
	})
}

// AddE adds a closer whose error is logged and reported by Close.
func (c *CloseLine) AddE(name string, fn func() error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closers = append(c.closers, closer{name: name, fn: fn})
}

// Close runs every closer and empties the line. All closers run even if
// some fail; their errors are joined.
func (c *CloseLine) Close() error {
	c.mu.Lock()
	closers := c.closers
	c.closers = nil
	c.mu.Unlock()

	var errs []error
	for _, cl := range closers {
		if cl.fn == nil {
			continue
		}
		log.Debugf("closing %s", cl.name)
		if err := cl.fn(); err != nil {
			log.Errorf("failed to close %s: %v", cl.name, err)
			errs = append(errs, fmt.Errorf("%s: %w", cl.name, err))
		}
	}
	return errors.Join(errs...)
}

// Len reports how many closers are pending.
func (c *CloseLine) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.closers)
}
