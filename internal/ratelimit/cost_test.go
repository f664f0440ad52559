package ratelimit

import "testing"

func TestDefaultCostMonotoneInBytes(t *testing.T) {
	if DefaultCost(200, 0.1) <= DefaultCost(100, 0.1) {
		t.Fatalf("cost must increase with payload size")
	}
}

func TestDefaultCostMonotoneInFillRatio(t *testing.T) {
	low := DefaultCost(1000, 0.1)
	high := DefaultCost(1000, 0.95)
	if high <= low {
		t.Fatalf("cost must increase with fill ratio: low=%d high=%d", low, high)
	}
}

func TestOracleCoversAcceptsExactAndOverpayment(t *testing.T) {
	o := NewOracle(nil)
	cost := o.Cost(500, 0.5)
	if !o.Covers(cost, 500, 0.5) {
		t.Fatalf("exact payment must cover")
	}
	if !o.Covers(cost+1, 500, 0.5) {
		t.Fatalf("overpayment must cover")
	}
	if o.Covers(cost-1, 500, 0.5) {
		t.Fatalf("underpayment must not cover")
	}
}

func TestOracleUsesCustomCostFunc(t *testing.T) {
	calls := 0
	o := NewOracle(func(bytes uint64, fillRatio float64) uint64 {
		calls++
		return bytes
	})
	if o.Cost(42, 0.1) != 42 {
		t.Fatalf("custom cost func must be used")
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}
