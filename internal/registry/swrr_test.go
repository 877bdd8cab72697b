package registry

import "testing"

func TestSWRREmptyReturnsFalse(t *testing.T) {
	b := NewSWRR()
	if _, ok := b.Next(); ok {
		t.Fatal("expected Next on empty balancer to report false")
	}
}

func TestSWRRDistributesByWeight(t *testing.T) {
	b := NewSWRR()
	b.Update([]Instance{
		{ID: "a", Metadata: map[string]string{"weight": "3"}},
		{ID: "b", Metadata: map[string]string{"weight": "1"}},
	})

	counts := map[string]int{}
	for i := 0; i < 400; i++ {
		inst, ok := b.Next()
		if !ok {
			t.Fatal("expected a pick")
		}
		counts[inst.ID]++
	}

	if counts["a"] <= counts["b"] {
		t.Fatalf("expected heavier-weighted instance to be picked more often, got a=%d b=%d", counts["a"], counts["b"])
	}
	ratio := float64(counts["a"]) / float64(counts["b"])
	if ratio < 2.5 || ratio > 3.5 {
		t.Fatalf("expected roughly 3:1 distribution, got ratio=%.2f (a=%d b=%d)", ratio, counts["a"], counts["b"])
	}
}

func TestSWRRDefaultWeightIsOne(t *testing.T) {
	b := NewSWRR()
	b.Update([]Instance{{ID: "x"}, {ID: "y", Metadata: map[string]string{"weight": "bogus"}}})
	counts := map[string]int{}
	for i := 0; i < 100; i++ {
		inst, _ := b.Next()
		counts[inst.ID]++
	}
	if counts["x"] != 50 || counts["y"] != 50 {
		t.Fatalf("expected equal 50/50 split for default weight 1, got x=%d y=%d", counts["x"], counts["y"])
	}
}

func TestSWRRUpdateReplacesList(t *testing.T) {
	b := NewSWRR()
	b.Update([]Instance{{ID: "a"}})
	inst, ok := b.Next()
	if !ok || inst.ID != "a" {
		t.Fatalf("expected a, got %+v ok=%v", inst, ok)
	}
	b.Update([]Instance{{ID: "b"}})
	inst, ok = b.Next()
	if !ok || inst.ID != "b" {
		t.Fatalf("expected b after update, got %+v ok=%v", inst, ok)
	}
}
