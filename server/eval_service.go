package server

import (
	"context"
	"fmt"

	"connectrpc.com/connect"

	"github.com/rendlang/rend/core"
	"github.com/rendlang/rend/core/dist"
)

// Evaluation service procedure paths.
const (
	EvaluateProcedure      = "/rend.v1.EvaluationService/Evaluate"
	CheckSyntaxProcedure   = "/rend.v1.EvaluationService/CheckSyntax"
	ExportBlockProcedure   = "/rend.v1.EvaluationService/ExportBlock"
	ReleaseHandleProcedure = "/rend.v1.EvaluationService/ReleaseHandle"
)

// EvaluateRequest asks the server to evaluate source text.
type EvaluateRequest struct {
	Source  string `json:"source"`
	Session string `json:"session,omitempty"`
}

// ValueHandle is a server-side reference to an evaluation result.
type ValueHandle struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Display string `json:"display"`
}

// EvaluateResponse reports one evaluation.
type EvaluateResponse struct {
	Success bool         `json:"success"`
	Result  string       `json:"result,omitempty"`
	Error   string       `json:"error,omitempty"`
	Handle  *ValueHandle `json:"handle,omitempty"`
}

// CheckSyntaxRequest asks whether source text scans cleanly.
type CheckSyntaxRequest struct {
	Source string `json:"source"`
}

// CheckSyntaxResponse reports a syntax check.
type CheckSyntaxResponse struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// ExportBlockRequest asks for the wire encoding of scanned source.
type ExportBlockRequest struct {
	Source string `json:"source"`
}

// ExportBlockResponse carries the CBOR wire form of the scanned block,
// loadable by any interpreter via the dist package.
type ExportBlockResponse struct {
	Wire []byte `json:"wire"`
}

// ReleaseHandleRequest releases a value handle.
type ReleaseHandleRequest struct {
	ID string `json:"id"`
}

// ReleaseHandleResponse reports a release.
type ReleaseHandleResponse struct {
	Released bool `json:"released"`
}

// EvalService implements the evaluation procedures.
type EvalService struct {
	worker   *InterpWorker
	handles  *HandleStore
	sessions *SessionStore
	cache    *dist.ScanCache
}

// NewEvalService creates an EvalService. The cache may be nil.
func NewEvalService(worker *InterpWorker, handles *HandleStore, sessions *SessionStore, cache *dist.ScanCache) *EvalService {
	return &EvalService{
		worker:   worker,
		handles:  handles,
		sessions: sessions,
		cache:    cache,
	}
}

// Evaluate scans and evaluates an expression, returning its molded
// result and a handle that keeps the value alive.
func (s *EvalService) Evaluate(
	ctx context.Context,
	req *connect.Request[EvaluateRequest],
) (*connect.Response[EvaluateResponse], error) {
	source := req.Msg.Source
	if source == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("source is required"))
	}
	if req.Msg.Session != "" {
		if _, ok := s.sessions.Get(req.Msg.Session); !ok {
			return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("session %q not found", req.Msg.Session))
		}
	}

	result, err := s.worker.Do(func(in *core.Interp) interface{} {
		return s.evaluate(in, source, req.Msg.Session)
	})
	if err != nil {
		return connect.NewResponse(&EvaluateResponse{
			Success: false,
			Error:   err.Error(),
		}), nil
	}

	return connect.NewResponse(result.(*EvaluateResponse)), nil
}

// CheckSyntax scans source without evaluating it.
func (s *EvalService) CheckSyntax(
	ctx context.Context,
	req *connect.Request[CheckSyntaxRequest],
) (*connect.Response[CheckSyntaxResponse], error) {
	source := req.Msg.Source
	if source == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("source is required"))
	}

	result, err := s.worker.Do(func(in *core.Interp) interface{} {
		failure := in.RescueError(func() { in.Scan(source) })
		if failure != nil {
			return &CheckSyntaxResponse{Valid: false, Error: in.ErrorMessage(failure)}
		}
		return &CheckSyntaxResponse{Valid: true}
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	return connect.NewResponse(result.(*CheckSyntaxResponse)), nil
}

// ExportBlock scans source and returns its portable wire encoding, so
// other interpreters can load the block without rescanning.
func (s *EvalService) ExportBlock(
	ctx context.Context,
	req *connect.Request[ExportBlockRequest],
) (*connect.Response[ExportBlockResponse], error) {
	source := req.Msg.Source
	if source == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("source is required"))
	}

	result, err := s.worker.Do(func(in *core.Interp) interface{} {
		block, err := dist.ScanCached(in, s.cache, source)
		if err != nil {
			return err
		}
		in.GuardSeries(block)
		defer in.DropGuard()
		wire, err := dist.MarshalBlock(block)
		if err != nil {
			return err
		}
		return wire
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	if scanErr, ok := result.(error); ok {
		return nil, connect.NewError(connect.CodeInvalidArgument, scanErr)
	}

	return connect.NewResponse(&ExportBlockResponse{Wire: result.([]byte)}), nil
}

// ReleaseHandle releases a value handle so the value can be collected.
func (s *EvalService) ReleaseHandle(
	ctx context.Context,
	req *connect.Request[ReleaseHandleRequest],
) (*connect.Response[ReleaseHandleResponse], error) {
	if req.Msg.ID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("handle id is required"))
	}

	_, ok := s.handles.Lookup(req.Msg.ID)
	if ok {
		s.handles.Release(req.Msg.ID)
	}
	return connect.NewResponse(&ReleaseHandleResponse{Released: ok}), nil
}

// evaluate runs source, rescuing failures into the response. Must be
// called on the interpreter goroutine.
func (s *EvalService) evaluate(in *core.Interp, source, sessionID string) *EvaluateResponse {
	block, err := dist.ScanCached(in, s.cache, source)
	if err != nil {
		return &EvaluateResponse{Success: false, Error: err.Error()}
	}

	var h *core.Cell
	failure := in.RescueError(func() { h = in.Eval(block) })
	if failure != nil {
		return &EvaluateResponse{Success: false, Error: in.ErrorMessage(failure)}
	}
	if h == nil {
		return &EvaluateResponse{Success: true, Result: "null"}
	}

	display := in.MoldCell(h)
	typeName := h.Kind().String()
	id := s.handles.Create(h, typeName, display, sessionID)

	return &EvaluateResponse{
		Success: true,
		Result:  display,
		Handle: &ValueHandle{
			ID:      id,
			Type:    typeName,
			Display: display,
		},
	}
}
