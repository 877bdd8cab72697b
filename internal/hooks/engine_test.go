package hooks

import (
	"context"
	"errors"
	"testing"

	"github.com/flare152/flare-im-core/internal/model"
)

func buildFromResult(results map[string]func() (Result, error)) func(model.HookConfig) (Invoker, error) {
	return func(cfg model.HookConfig) (Invoker, error) {
		fn, ok := results[cfg.Name]
		if !ok {
			return nil, errors.New("no fixture for hook " + cfg.Name)
		}
		return func(ctx context.Context, hctx *Context) (Result, error) {
			return fn()
		}, nil
	}
}

func TestMatchesEmptySelectorAllowsAny(t *testing.T) {
	sel := model.HookSelector{}
	hctx := &Context{TenantID: "t1", SenderID: "u1"}
	if !Matches(sel, hctx) {
		t.Fatal("expected empty selector to match anything")
	}
}

func TestMatchesFiltersByTenant(t *testing.T) {
	sel := model.HookSelector{Tenants: []string{"t1", "t2"}}
	if !Matches(sel, &Context{TenantID: "t1"}) {
		t.Fatal("expected t1 to match")
	}
	if Matches(sel, &Context{TenantID: "t3"}) {
		t.Fatal("expected t3 to not match")
	}
}

func TestMatchesFiltersByTags(t *testing.T) {
	sel := model.HookSelector{Tags: map[string]string{"env": "prod"}}
	if !Matches(sel, &Context{Tags: map[string]string{"env": "prod", "region": "us"}}) {
		t.Fatal("expected superset of tags to match")
	}
	if Matches(sel, &Context{Tags: map[string]string{"env": "staging"}}) {
		t.Fatal("expected mismatched tag value to fail")
	}
	if Matches(sel, &Context{Tags: nil}) {
		t.Fatal("expected missing tag to fail")
	}
}

func TestReloadOrdersChainByPriorityThenInsertSeq(t *testing.T) {
	var order []string
	build := func(cfg model.HookConfig) (Invoker, error) {
		name := cfg.Name
		return func(ctx context.Context, hctx *Context) (Result, error) {
			order = append(order, name)
			return Result{Allow: true}, nil
		}, nil
	}
	e := NewEngine(build)
	err := e.Reload([]model.HookConfig{
		{Name: "second", HookType: model.HookPreSend, Priority: 10, InsertSeq: 1},
		{Name: "first", HookType: model.HookPreSend, Priority: 5, InsertSeq: 2},
		{Name: "third-by-insert", HookType: model.HookPreSend, Priority: 10, InsertSeq: 2},
	})
	if err != nil {
		t.Fatalf("Reload failed: %v", err)
	}

	if _, err := e.Run(context.Background(), model.HookPreSend, &Context{}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	want := []string{"first", "second", "third-by-insert"}
	if len(order) != len(want) {
		t.Fatalf("expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, order)
		}
	}
}

func TestRunStopsChainOnDeny(t *testing.T) {
	var ran []string
	build := func(cfg model.HookConfig) (Invoker, error) {
		name := cfg.Name
		return func(ctx context.Context, hctx *Context) (Result, error) {
			ran = append(ran, name)
			if name == "deny-me" {
				return Result{Allow: false, Reason: "blocked"}, nil
			}
			return Result{Allow: true}, nil
		}, nil
	}
	e := NewEngine(build)
	if err := e.Reload([]model.HookConfig{
		{Name: "deny-me", HookType: model.HookPreSend, Priority: 1},
		{Name: "never-runs", HookType: model.HookPreSend, Priority: 2},
	}); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}

	res, err := e.Run(context.Background(), model.HookPreSend, &Context{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if res.Allow {
		t.Fatal("expected deny result")
	}
	if len(ran) != 1 || ran[0] != "deny-me" {
		t.Fatalf("expected chain to stop after deny, ran=%v", ran)
	}
}

func TestRunSkipsNonMatchingSelector(t *testing.T) {
	var ran []string
	build := func(cfg model.HookConfig) (Invoker, error) {
		name := cfg.Name
		return func(ctx context.Context, hctx *Context) (Result, error) {
			ran = append(ran, name)
			return Result{Allow: true}, nil
		}, nil
	}
	e := NewEngine(build)
	if err := e.Reload([]model.HookConfig{
		{Name: "tenant-only", HookType: model.HookPreSend, Selector: model.HookSelector{Tenants: []string{"other-tenant"}}},
		{Name: "global", HookType: model.HookPreSend},
	}); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}

	if _, err := e.Run(context.Background(), model.HookPreSend, &Context{TenantID: "t1"}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(ran) != 1 || ran[0] != "global" {
		t.Fatalf("expected only the global hook to run, ran=%v", ran)
	}
}

func TestInvokeWithPolicyIgnorePolicySwallowsError(t *testing.T) {
	e := NewEngine(buildFromResult(map[string]func() (Result, error){
		"flaky": func() (Result, error) { return Result{}, errors.New("boom") },
	}))
	if err := e.Reload([]model.HookConfig{
		{Name: "flaky", HookType: model.HookPreSend, ErrorPolicy: model.HookIgnore},
	}); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}

	res, err := e.Run(context.Background(), model.HookPreSend, &Context{})
	if err != nil {
		t.Fatalf("expected ignore policy to swallow error, got %v", err)
	}
	if !res.Allow {
		t.Fatal("expected ignore policy to produce an allow result")
	}
}

func TestInvokeWithPolicyFailFastPropagatesError(t *testing.T) {
	e := NewEngine(buildFromResult(map[string]func() (Result, error){
		"strict": func() (Result, error) { return Result{}, errors.New("boom") },
	}))
	if err := e.Reload([]model.HookConfig{
		{Name: "strict", HookType: model.HookPreSend, ErrorPolicy: model.HookFailFast},
	}); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}

	if _, err := e.Run(context.Background(), model.HookPreSend, &Context{}); err == nil {
		t.Fatal("expected fail-fast policy to propagate the error")
	}
}

func TestInvokeWithPolicyRetriesUpToMaxRetries(t *testing.T) {
	attempts := 0
	e := NewEngine(func(cfg model.HookConfig) (Invoker, error) {
		return func(ctx context.Context, hctx *Context) (Result, error) {
			attempts++
			if attempts < 3 {
				return Result{}, errors.New("transient")
			}
			return Result{Allow: true}, nil
		}, nil
	})
	if err := e.Reload([]model.HookConfig{
		{Name: "retrying", HookType: model.HookPreSend, ErrorPolicy: model.HookRetry, MaxRetries: 5},
	}); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}

	res, err := e.Run(context.Background(), model.HookPreSend, &Context{})
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if !res.Allow {
		t.Fatal("expected allow after eventual success")
	}
	if attempts != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", attempts)
	}
}

func TestRunOnUnknownHookPointReturnsAllow(t *testing.T) {
	e := NewEngine(func(cfg model.HookConfig) (Invoker, error) { return nil, nil })
	res, err := e.Run(context.Background(), model.HookPoint("nonexistent"), &Context{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Allow {
		t.Fatal("expected default allow for an empty chain")
	}
}
