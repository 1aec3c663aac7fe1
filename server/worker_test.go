package server

import (
	"sync"
	"testing"

	"github.com/rendlang/rend/core"
)

func TestWorkerDo(t *testing.T) {
	w := NewInterpWorker(core.NewInterp(core.Options{}))
	defer w.Stop()

	v, err := w.Do(func(in *core.Interp) interface{} {
		return in.UnboxInteger("19 + 23")
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if v.(int64) != 42 {
		t.Errorf("Do = %v, want 42", v)
	}
}

func TestWorkerSerializesAccess(t *testing.T) {
	w := NewInterpWorker(core.NewInterp(core.Options{}))
	defer w.Stop()

	if _, err := w.Do(func(in *core.Interp) interface{} {
		in.Elide("counter: 0")
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Do(func(in *core.Interp) interface{} {
				in.Elide("counter: counter + 1")
				return nil
			})
		}()
	}
	wg.Wait()

	v, err := w.Do(func(in *core.Interp) interface{} {
		return in.UnboxInteger("counter")
	})
	if err != nil {
		t.Fatal(err)
	}
	if v.(int64) != 20 {
		t.Errorf("counter = %v, want 20", v)
	}
}

func TestWorkerRecoversPanics(t *testing.T) {
	w := NewInterpWorker(core.NewInterp(core.Options{}))
	defer w.Stop()

	_, err := w.Do(func(in *core.Interp) interface{} {
		panic("deliberate")
	})
	if err == nil {
		t.Fatal("a panicking fn should surface as an error")
	}

	// the worker keeps serving afterward
	v, err := w.Do(func(in *core.Interp) interface{} { return 1 })
	if err != nil || v.(int) != 1 {
		t.Errorf("Do after panic = %v, %v", v, err)
	}
}
