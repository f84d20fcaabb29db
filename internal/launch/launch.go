// Package launch holds state that lives exactly as long as the process:
// one-shot guards for launch-time checks and log-once latches. A single
// Context is built at start-up and handed to the components that need it.
package launch

import "sync"

// Context is process-lifetime state. The zero value is not usable; call New.
type Context struct {
	mu   sync.Mutex
	done map[string]bool
}

func New() *Context {
	return &Context{done: make(map[string]bool)}
}

// FirstTime reports true the first time it is called with name and false
// on every later call, across goroutines.
func (c *Context) FirstTime(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done[name] {
		return false
	}
	c.done[name] = true
	return true
}

// Seen reports whether name has already been latched.
func (c *Context) Seen(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done[name]
}
