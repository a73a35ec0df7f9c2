package nodes

import (
	"context"
	"sort"
	"sync"

	"github.com/ringlink/ringlink/internal/errors"
	"github.com/ringlink/ringlink/internal/logging"
)

// Registry holds every known node and routes commands to them.
type Registry struct {
	mu     sync.RWMutex
	nodes  map[string]Node
	logger *logging.Logger
}

func NewRegistry() *Registry {
	return &Registry{
		nodes:  make(map[string]Node),
		logger: logging.NewLogger(),
	}
}

// Add registers a node. Returns false when the address is already taken;
// the existing node is kept.
func (r *Registry) Add(n Node) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.nodes[n.Address()]; exists {
		return false
	}
	r.nodes[n.Address()] = n
	return true
}

// Get returns the node at address.
func (r *Registry) Get(address string) (Node, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.nodes[address]
	return n, ok
}

// Addresses returns all node addresses, sorted.
func (r *Registry) Addresses() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.nodes))
	for addr := range r.nodes {
		out = append(out, addr)
	}
	sort.Strings(out)
	return out
}

// DeviceNodeCount counts nodes other than the controller.
func (r *Registry) DeviceNodeCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, n := range r.nodes {
		if n.Kind() != KindController {
			count++
		}
	}
	return count
}

// Dispatch routes one command to the node at address through its dispatch
// table.
func (r *Registry) Dispatch(ctx context.Context, address string, cmd Command) error {
	node, ok := r.Get(address)
	if !ok {
		return &errors.ErrNodeNotFound{Address: address}
	}
	handler, ok := node.Handlers()[cmd]
	if !ok {
		return &errors.ErrUnknownCommand{Address: address, Command: string(cmd)}
	}
	r.logger.Debug("dispatching node command", "address", address, "cmd", string(cmd))
	return handler(ctx)
}

// Each calls fn for every node. The registry lock is not held during fn.
func (r *Registry) Each(fn func(Node)) {
	r.mu.RLock()
	snapshot := make([]Node, 0, len(r.nodes))
	for _, n := range r.nodes {
		snapshot = append(snapshot, n)
	}
	r.mu.RUnlock()
	for _, n := range snapshot {
		fn(n)
	}
}
