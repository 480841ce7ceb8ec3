package registry

import (
	"sync"
	"testing"
	"time"

	"github.com/byteowlz/kokorox/internal/onnx"
)

func TestNewRequiresStandardVariant(t *testing.T) {
	_, err := New(map[Variant]*onnx.Engine{})
	if err == nil {
		t.Fatal("expected error when standard variant is missing")
	}
}

func TestAcquireReleaseSerializes(t *testing.T) {
	std := onnx.NewEngineWithRunner("standard", nil)

	r, err := New(map[Variant]*onnx.Engine{VariantStandard: std})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	lease, err := r.AcquireActive()
	if err != nil {
		t.Fatalf("AcquireActive: %v", err)
	}

	acquired := make(chan struct{})

	var wg sync.WaitGroup

	wg.Add(1)

	go func() {
		defer wg.Done()

		l2, err := r.AcquireActive()
		if err != nil {
			t.Errorf("second AcquireActive: %v", err)

			return
		}

		close(acquired)
		l2.Release()
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire should have blocked while first lease is held")
	case <-time.After(50 * time.Millisecond):
	}

	lease.Release()
	wg.Wait()
}

func TestAcquireReplicasRunConcurrently(t *testing.T) {
	a := onnx.NewEngineWithRunner("standard", nil)
	b := onnx.NewEngineWithRunner("standard", nil)

	r, err := NewPool(map[Variant][]*onnx.Engine{VariantStandard: {a, b}})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}

	l1, err := r.AcquireActive()
	if err != nil {
		t.Fatalf("first AcquireActive: %v", err)
	}

	// With two replicas, a second acquire must not block behind the first.
	acquired := make(chan *Lease, 1)

	go func() {
		l2, err := r.AcquireActive()
		if err != nil {
			t.Errorf("second AcquireActive: %v", err)

			return
		}

		acquired <- l2
	}()

	select {
	case l2 := <-acquired:
		if l2.Engine() == l1.Engine() {
			t.Fatal("expected the second lease to land on the other replica")
		}

		l2.Release()
	case <-time.After(time.Second):
		t.Fatal("second acquire blocked despite a free replica")
	}

	l1.Release()
}

func TestSetActiveSwitchesVariant(t *testing.T) {
	std := onnx.NewEngineWithRunner("standard", nil)
	quant := onnx.NewEngineWithRunner("standard", nil)

	r, err := New(map[Variant]*onnx.Engine{VariantStandard: std, VariantQuantized: quant})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if r.Active() != VariantStandard {
		t.Fatalf("Active() = %v, want %v", r.Active(), VariantStandard)
	}

	if err := r.SetActive(VariantQuantized); err != nil {
		t.Fatalf("SetActive: %v", err)
	}

	if r.Active() != VariantQuantized {
		t.Fatalf("Active() = %v, want %v", r.Active(), VariantQuantized)
	}
}

func TestSetActiveUnknownVariant(t *testing.T) {
	std := onnx.NewEngineWithRunner("standard", nil)

	r, err := New(map[Variant]*onnx.Engine{VariantStandard: std})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := r.SetActive(Variant("missing")); err == nil {
		t.Fatal("expected error for unknown variant")
	}
}
