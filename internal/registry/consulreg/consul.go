// Package consulreg implements internal/registry.Registry over
// Consul's agent/health HTTP API, ported from the teacher's
// service/registry/consul.go.
package consulreg

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/consul/api"

	"github.com/flare152/flare-im-core/internal/registry"
)

type ConsulRegistry struct {
	cli *api.Client
}

func New(addr string) (*ConsulRegistry, error) {
	cfg := api.DefaultConfig()
	if addr != "" {
		cfg.Address = addr
	}
	cli, err := api.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &ConsulRegistry{cli: cli}, nil
}

// Register reports the instance with active TTL health: the caller is
// responsible for calling UpdateTTL more often than the check window.
func (r *ConsulRegistry) Register(ctx context.Context, inst registry.Instance, opt registry.RegisterOptions) error {
	ttl := opt.TTL
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	check := &api.AgentServiceCheck{
		TTL:                            ttl.String(),
		DeregisterCriticalServiceAfter: "1m",
	}
	reg := &api.AgentServiceRegistration{
		Name:    inst.Service,
		ID:      inst.ID,
		Address: inst.Address,
		Port:    inst.Port,
		Meta:    inst.Metadata,
		Check:   check,
	}
	return r.cli.Agent().ServiceRegister(reg)
}

func (r *ConsulRegistry) Deregister(ctx context.Context, _ string, id string) error {
	return r.cli.Agent().ServiceDeregister(id)
}

func (r *ConsulRegistry) List(ctx context.Context, service string) ([]registry.Instance, error) {
	entries, _, err := r.cli.Health().Service(service, "", true, &api.QueryOptions{RequireConsistent: true})
	if err != nil {
		return nil, err
	}
	out := make([]registry.Instance, 0, len(entries))
	for _, e := range entries {
		out = append(out, registry.Instance{
			Service:  service,
			ID:       e.Service.ID,
			Address:  e.Service.Address,
			Port:     e.Service.Port,
			Metadata: e.Service.Meta,
		})
	}
	return out, nil
}

type consulWatcher struct {
	r       *ConsulRegistry
	service string
	lastIdx uint64
}

func (w *consulWatcher) Next() ([]registry.Instance, error) {
	q := &api.QueryOptions{WaitTime: 10 * time.Minute}
	if w.lastIdx != 0 {
		q.WaitIndex = w.lastIdx
	}
	entries, meta, err := w.r.cli.Health().Service(w.service, "", true, q)
	if err != nil {
		return nil, err
	}
	if meta != nil {
		w.lastIdx = meta.LastIndex
	}
	out := make([]registry.Instance, 0, len(entries))
	for _, e := range entries {
		out = append(out, registry.Instance{
			Service:  w.service,
			ID:       e.Service.ID,
			Address:  e.Service.Address,
			Port:     e.Service.Port,
			Metadata: e.Service.Meta,
		})
	}
	return out, nil
}

func (w *consulWatcher) Stop() error { return nil }

func (r *ConsulRegistry) Watch(ctx context.Context, service string) (registry.Watcher, error) {
	return &consulWatcher{r: r, service: service}, nil
}

func (r *ConsulRegistry) UpdateTTL(checkID string, note string, status string) error {
	return r.cli.Agent().UpdateTTL(checkID, note, status)
}

func (r *ConsulRegistry) Close() error { return nil }

func HealthCheckID(serviceID string) string {
	return fmt.Sprintf("service:%s", serviceID)
}
