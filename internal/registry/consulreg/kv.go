package consulreg

import (
	"context"

	"github.com/hashicorp/consul/api"
)

// KV implements hooks.CentralKV over Consul's key/value store, the
// central-KV tier of the Hook Engine's config precedence chain
// (spec.md §4.6).
type KV struct {
	cli *api.Client
}

func NewKV(addr string) (*KV, error) {
	cfg := api.DefaultConfig()
	if addr != "" {
		cfg.Address = addr
	}
	cli, err := api.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &KV{cli: cli}, nil
}

func (k *KV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	pair, _, err := k.cli.KV().Get(key, (&api.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return nil, false, err
	}
	if pair == nil {
		return nil, false, nil
	}
	return pair.Value, true, nil
}

func (k *KV) Put(ctx context.Context, key string, value []byte) error {
	_, err := k.cli.KV().Put(&api.KVPair{Key: key, Value: value}, (&api.WriteOptions{}).WithContext(ctx))
	return err
}
