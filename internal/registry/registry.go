// Package registry defines the service-discovery contract every
// component uses to publish itself and to locate peers (the Access
// Gateway locating a healthy Orchestrator, the Push Proxy locating a
// gateway holding a user's session, and so on). Grounded on the
// teacher's service/registry/registry.go.
package registry

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Instance is one registered process.
type Instance struct {
	Service   string
	ID        string
	Address   string
	Port      int
	Metadata  map[string]string // region/zone/weight/node_id/...
	Ephemeral bool
}

// RegisterOptions configures how an instance is announced.
type RegisterOptions struct {
	TTL          time.Duration
	WarmupWeight int
}

// Registry is the read/write contract for service discovery.
type Registry interface {
	Register(ctx context.Context, inst Instance, opt RegisterOptions) error
	Deregister(ctx context.Context, service, id string) error
	List(ctx context.Context, service string) ([]Instance, error)
	Watch(ctx context.Context, service string) (Watcher, error)
	UpdateTTL(checkID string, note string, status string) error
	Close() error
}

// Watcher streams instance-list updates for a single service name.
type Watcher interface {
	Next() ([]Instance, error)
	Stop() error
}

var ErrStopped = errors.New("registry: watcher stopped")

// SWRR is a smooth weighted round-robin load balancer over an
// instance list, used by callers that need to pick one instance per
// call (e.g. the orchestrator client picking an orchestrator
// instance). Weight is read from Metadata["weight"], default 1.
type SWRR struct {
	mu   sync.Mutex
	list []*swrrItem
}

type swrrItem struct {
	inst      Instance
	weight    int
	current   int
	effective bool
}

func NewSWRR() *SWRR { return &SWRR{} }

func parseWeight(meta map[string]string) int {
	if meta == nil {
		return 1
	}
	wstr, ok := meta["weight"]
	if !ok || wstr == "" {
		return 1
	}
	n, sign := 0, 1
	for i, c := range wstr {
		if i == 0 && c == '-' {
			sign = -1
			continue
		}
		if c < '0' || c > '9' {
			return 1
		}
		n = n*10 + int(c-'0')
	}
	n *= sign
	if n <= 0 {
		return 1
	}
	return n
}

func (b *SWRR) Update(insts []Instance) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.list = b.list[:0]
	for _, in := range insts {
		b.list = append(b.list, &swrrItem{inst: in, weight: parseWeight(in.Metadata), effective: true})
	}
}

func (b *SWRR) Next() (Instance, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.list) == 0 {
		return Instance{}, false
	}
	var total int
	var best *swrrItem
	for _, it := range b.list {
		if !it.effective || it.weight <= 0 {
			continue
		}
		it.current += it.weight
		total += it.weight
		if best == nil || it.current > best.current {
			best = it
		}
	}
	if best == nil {
		return Instance{}, false
	}
	best.current -= total
	return best.inst, true
}
