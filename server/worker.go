package server

import (
	"fmt"

	"github.com/rendlang/rend/core"
)

// workRequest represents a unit of work to run on the interpreter
// goroutine.
type workRequest struct {
	fn   func(*core.Interp) interface{}
	done chan workResult
}

// workResult holds the return value from an interpreter operation.
type workResult struct {
	value interface{}
	err   error
}

// InterpWorker serializes all interpreter access through a single
// goroutine. One Interp serves one goroutine; every service handler
// must go through the worker to avoid data races.
type InterpWorker struct {
	in       *core.Interp
	requests chan workRequest
	quit     chan struct{}
}

// NewInterpWorker creates an InterpWorker and starts the processing
// goroutine.
func NewInterpWorker(in *core.Interp) *InterpWorker {
	w := &InterpWorker{
		in:       in,
		requests: make(chan workRequest, 64),
		quit:     make(chan struct{}),
	}
	go w.loop()
	return w
}

// loop processes requests sequentially on a dedicated goroutine.
func (w *InterpWorker) loop() {
	for {
		select {
		case req := <-w.requests:
			req.done <- w.execute(req.fn)
		case <-w.quit:
			return
		}
	}
}

// execute runs a function against the interpreter. Handlers rescue
// evaluation failures themselves; the recover here is a backstop for
// internal panics only.
func (w *InterpWorker) execute(fn func(*core.Interp) interface{}) workResult {
	var result workResult
	func() {
		defer func() {
			if r := recover(); r != nil {
				result.err = fmt.Errorf("%v", r)
			}
		}()
		result.value = fn(w.in)
	}()
	return result
}

// Do submits a function for execution on the interpreter goroutine and
// blocks until it completes.
func (w *InterpWorker) Do(fn func(*core.Interp) interface{}) (interface{}, error) {
	req := workRequest{
		fn:   fn,
		done: make(chan workResult, 1),
	}
	w.requests <- req
	result := <-req.done
	return result.value, result.err
}

// Stop shuts down the worker goroutine.
func (w *InterpWorker) Stop() {
	close(w.quit)
}

// Halt requests interpreter cancellation. Unlike Do, this does not
// queue behind running work; Halt is the one Interp entry point safe
// from other goroutines.
func (w *InterpWorker) Halt() {
	w.in.Halt()
}
