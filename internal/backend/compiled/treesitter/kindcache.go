package treesitter

import "sync"

// kindNameCache memoizes a symbol id's C-string kind name, read once per
// symbol per parser instance via tw_node_type (a wasm call) rather than on
// every node visited. Kept per-Parser, not process-global: distinct
// languages loaded into the same process assign unrelated meanings to the
// same numeric symbol id.
type kindNameCache struct {
	mu    sync.RWMutex
	names map[uint16]string
}

func newKindNameCache() *kindNameCache {
	return &kindNameCache{names: make(map[uint16]string)}
}

func (c *kindNameCache) lookup(symbol uint16) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	name, ok := c.names[symbol]
	return name, ok
}

func (c *kindNameCache) remember(symbol uint16, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.names[symbol] = name
}
