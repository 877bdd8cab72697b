package hooks

import (
	"context"
	"sort"
	"time"

	"github.com/flare152/flare-im-core/internal/errs"
	"github.com/flare152/flare-im-core/internal/logging"
	"github.com/flare152/flare-im-core/internal/model"
)

// Invoker is a bound hook implementation: given a resolved Context it
// runs the extension and returns a Result or an error. Each
// transport.go implementation produces Invokers from model.HookConfig.
type Invoker func(ctx context.Context, hctx *Context) (Result, error)

// registration pairs a config with its resolved invoker so the engine
// can sort and filter without re-resolving on every call.
type registration struct {
	cfg     model.HookConfig
	invoker Invoker
}

// Engine holds the resolved hook chains for every HookPoint, rebuilt
// wholesale on each ConfigSource reload tick (spec.md §4.6).
type Engine struct {
	chains map[model.HookPoint][]registration
	build  func(model.HookConfig) (Invoker, error)
}

func NewEngine(build func(model.HookConfig) (Invoker, error)) *Engine {
	return &Engine{chains: map[model.HookPoint][]registration{}, build: build}
}

// Reload replaces every chain from a fresh config snapshot, ordering
// each HookPoint's chain by Priority ascending, InsertSeq as
// tie-break (lower priority value runs first, matching the teacher's
// registry.go insertion-order convention generalized to priorities).
func (e *Engine) Reload(configs []model.HookConfig) error {
	next := map[model.HookPoint][]registration{}
	for _, cfg := range configs {
		inv, err := e.build(cfg)
		if err != nil {
			return errs.WrapMsg(err, "hooks: build invoker", "hook", cfg.Name)
		}
		next[cfg.HookType] = append(next[cfg.HookType], registration{cfg: cfg, invoker: inv})
	}
	for point := range next {
		chain := next[point]
		sort.Slice(chain, func(i, j int) bool {
			if chain[i].cfg.Priority != chain[j].cfg.Priority {
				return chain[i].cfg.Priority < chain[j].cfg.Priority
			}
			return chain[i].cfg.InsertSeq < chain[j].cfg.InsertSeq
		})
		next[point] = chain
	}
	e.chains = next
	return nil
}

// Matches reports whether a hook's selector accepts this invocation's
// context (spec.md §4.6: tenant/conversation-type/message-type/
// sender/tags, every populated field must match; empty means "any").
func Matches(sel model.HookSelector, hctx *Context) bool {
	if len(sel.Tenants) > 0 && !containsStr(sel.Tenants, hctx.TenantID) {
		return false
	}
	if len(sel.ConversationTypes) > 0 && !containsConvType(sel.ConversationTypes, hctx.ConversationType) {
		return false
	}
	if len(sel.MessageTypes) > 0 {
		if hctx.Message == nil || !containsKind(sel.MessageTypes, hctx.Message.Kind) {
			return false
		}
	}
	if len(sel.SenderIDs) > 0 && !containsStr(sel.SenderIDs, hctx.SenderID) {
		return false
	}
	for k, v := range sel.Tags {
		if hctx.Tags[k] != v {
			return false
		}
	}
	return true
}

func containsStr(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func containsConvType(list []model.ConversationType, v model.ConversationType) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func containsKind(list []model.MessageKind, v model.MessageKind) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// Run executes point's chain in priority order. A fail-fast hook's
// error (or Allow=false) stops the chain and is returned to the
// caller; a retry hook is retried up to MaxRetries with the hook's
// own timeout per attempt; an ignore hook's error is logged and
// treated as an allow so optional integrations can't block the
// pipeline (spec.md §4.6 error-policy semantics).
func (e *Engine) Run(ctx context.Context, point model.HookPoint, hctx *Context) (Result, error) {
	chain := e.chains[point]
	final := Result{Allow: true}
	for _, reg := range chain {
		if !Matches(reg.cfg.Selector, hctx) {
			continue
		}
		res, err := e.invokeWithPolicy(ctx, reg, hctx)
		if err != nil {
			return Result{Allow: false, Reason: err.Error()}, err
		}
		if !res.Allow {
			return res, nil
		}
		for k, v := range res.Annotations {
			if hctx.Annotations == nil {
				hctx.Annotations = map[string]string{}
			}
			hctx.Annotations[k] = v
		}
		final.Annotations = hctx.Annotations
	}
	return final, nil
}

func (e *Engine) invokeWithPolicy(ctx context.Context, reg registration, hctx *Context) (Result, error) {
	timeout := time.Duration(reg.cfg.TimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	attempts := 1
	if reg.cfg.ErrorPolicy == model.HookRetry {
		attempts = reg.cfg.MaxRetries + 1
		if attempts < 1 {
			attempts = 1
		}
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		res, err := reg.invoker(callCtx, hctx)
		cancel()
		if err == nil {
			if !res.Allow && reg.cfg.RequireSuccess {
				return res, errs.ErrFailedPrecondition.WithDetail("hook " + reg.cfg.Name + " denied").Wrap()
			}
			return res, nil
		}
		lastErr = err
		logging.Warnf("hooks: invoke failed hook=%s attempt=%d err=%v", reg.cfg.Name, i+1, err)
	}

	switch reg.cfg.ErrorPolicy {
	case model.HookIgnore:
		return Result{Allow: true}, nil
	default: // fail-fast and exhausted retry both propagate
		return Result{Allow: false}, lastErr
	}
}
