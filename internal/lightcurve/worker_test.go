package lightcurve

import (
	"context"
	"testing"
)

// TestWorkerPoolMapOrder verifies results come back in index order regardless of
// which worker produced them.
func TestWorkerPoolMapOrder(t *testing.T) {
	pool := NewWorkerPool(4, testLogger())

	out, err := pool.Map(context.Background(), 100, func(i int) sampleResult {
		return sampleResult{sample: DerivedSample{Index: i, RawMag: float64(-i)}}
	})
	if err != nil {
		t.Fatalf("Map failed: %v", err)
	}
	if len(out) != 100 {
		t.Fatalf("got %d results, want 100", len(out))
	}
	for i, r := range out {
		if r.index != i || r.sample.Index != i || r.sample.RawMag != float64(-i) {
			t.Errorf("result %d out of place: %+v", i, r)
		}
	}
}

// TestWorkerPoolCancellation verifies the worker pool respects context cancellation.
func TestWorkerPoolCancellation(t *testing.T) {
	pool := NewWorkerPool(2, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := pool.Map(ctx, 1000, func(i int) sampleResult { return sampleResult{} })
	if err == nil {
		t.Fatal("expected error with cancelled context")
	}
}

func TestWorkerPoolEmpty(t *testing.T) {
	pool := NewWorkerPool(0, testLogger())
	out, err := pool.Map(context.Background(), 0, func(i int) sampleResult {
		t.Fatal("fn called for empty input")
		return sampleResult{}
	})
	if err != nil || out != nil {
		t.Errorf("Map(0) = %v, %v; want nil, nil", out, err)
	}
}
