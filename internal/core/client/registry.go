package client

import "sync"

// Registry is a concurrency-safe collection of the connected clients, keyed by ID.
type Registry struct {
	mu      sync.RWMutex
	clients map[uint64]*Client
}

func NewRegistry() *Registry {
	return &Registry{clients: make(map[uint64]*Client)}
}

func (r *Registry) Add(c *Client) {
	r.mu.Lock()
	r.clients[c.ID()] = c
	r.mu.Unlock()
}

func (r *Registry) Remove(c *Client) {
	r.mu.Lock()
	delete(r.clients, c.ID())
	r.mu.Unlock()
}

func (r *Registry) Lookup(id uint64) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[id]
	return c, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// CloseAll closes every registered client's connection.
func (r *Registry) CloseAll() {
	r.mu.RLock()
	clients := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		clients = append(clients, c)
	}
	r.mu.RUnlock()

	for _, c := range clients {
		_ = c.Close()
	}
}
