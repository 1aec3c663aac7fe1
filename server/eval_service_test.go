package server

import (
	"context"
	"strings"
	"testing"

	"connectrpc.com/connect"

	"github.com/rendlang/rend/core"
	"github.com/rendlang/rend/core/dist"
)

func newTestEvalService(t *testing.T) (*EvalService, *SessionService) {
	t.Helper()
	w, handles, sessions := newTestStores(t)
	return NewEvalService(w, handles, sessions, nil), NewSessionService(sessions)
}

func TestEvaluate(t *testing.T) {
	svc, _ := newTestEvalService(t)

	resp, err := svc.Evaluate(context.Background(),
		connect.NewRequest(&EvaluateRequest{Source: "1 + 2"}))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	msg := resp.Msg
	if !msg.Success {
		t.Fatalf("Evaluate failed: %s", msg.Error)
	}
	if msg.Result != "3" {
		t.Errorf("Result = %q, want 3", msg.Result)
	}
	if msg.Handle == nil || msg.Handle.Type != "integer!" {
		t.Errorf("Handle = %+v, want integer!", msg.Handle)
	}
}

func TestEvaluateStatePersists(t *testing.T) {
	svc, _ := newTestEvalService(t)

	ctx := context.Background()
	if _, err := svc.Evaluate(ctx,
		connect.NewRequest(&EvaluateRequest{Source: "acc: 40"})); err != nil {
		t.Fatal(err)
	}
	resp, err := svc.Evaluate(ctx,
		connect.NewRequest(&EvaluateRequest{Source: "acc + 2"}))
	if err != nil {
		t.Fatal(err)
	}
	if resp.Msg.Result != "42" {
		t.Errorf("Result = %q, want 42", resp.Msg.Result)
	}
}

func TestEvaluateNullResult(t *testing.T) {
	svc, _ := newTestEvalService(t)

	resp, err := svc.Evaluate(context.Background(),
		connect.NewRequest(&EvaluateRequest{Source: "if false [1]"}))
	if err != nil {
		t.Fatal(err)
	}
	if !resp.Msg.Success || resp.Msg.Result != "null" {
		t.Errorf("null evaluation = %+v", resp.Msg)
	}
	if resp.Msg.Handle != nil {
		t.Error("null results should not allocate a handle")
	}
}

func TestEvaluateScriptError(t *testing.T) {
	svc, _ := newTestEvalService(t)

	resp, err := svc.Evaluate(context.Background(),
		connect.NewRequest(&EvaluateRequest{Source: "1 / 0"}))
	if err != nil {
		t.Fatal(err)
	}
	if resp.Msg.Success {
		t.Fatal("division by zero reported success")
	}
	if !strings.Contains(resp.Msg.Error, "divide") {
		t.Errorf("Error = %q, want a zero-divide message", resp.Msg.Error)
	}

	// the interpreter survives for the next request
	resp, err = svc.Evaluate(context.Background(),
		connect.NewRequest(&EvaluateRequest{Source: "2 + 2"}))
	if err != nil || resp.Msg.Result != "4" {
		t.Errorf("evaluation after error = %+v, %v", resp.Msg, err)
	}
}

func TestEvaluateEmptySource(t *testing.T) {
	svc, _ := newTestEvalService(t)

	_, err := svc.Evaluate(context.Background(),
		connect.NewRequest(&EvaluateRequest{}))
	if connect.CodeOf(err) != connect.CodeInvalidArgument {
		t.Errorf("empty source code = %v, want invalid_argument", connect.CodeOf(err))
	}
}

func TestEvaluateUnknownSession(t *testing.T) {
	svc, _ := newTestEvalService(t)

	_, err := svc.Evaluate(context.Background(),
		connect.NewRequest(&EvaluateRequest{Source: "1", Session: "s-404"}))
	if connect.CodeOf(err) != connect.CodeNotFound {
		t.Errorf("unknown session code = %v, want not_found", connect.CodeOf(err))
	}
}

func TestCheckSyntax(t *testing.T) {
	svc, _ := newTestEvalService(t)
	ctx := context.Background()

	resp, err := svc.CheckSyntax(ctx,
		connect.NewRequest(&CheckSyntaxRequest{Source: "a: [1 2 3]"}))
	if err != nil {
		t.Fatal(err)
	}
	if !resp.Msg.Valid {
		t.Errorf("valid source reported invalid: %s", resp.Msg.Error)
	}

	resp, err = svc.CheckSyntax(ctx,
		connect.NewRequest(&CheckSyntaxRequest{Source: "[broken"}))
	if err != nil {
		t.Fatal(err)
	}
	if resp.Msg.Valid {
		t.Error("unterminated block reported valid")
	}
	if resp.Msg.Error == "" {
		t.Error("invalid source should carry an error message")
	}
}

func TestReleaseHandleProcedureFlow(t *testing.T) {
	svc, _ := newTestEvalService(t)
	ctx := context.Background()

	resp, err := svc.Evaluate(ctx,
		connect.NewRequest(&EvaluateRequest{Source: "[1 2]"}))
	if err != nil {
		t.Fatal(err)
	}
	id := resp.Msg.Handle.ID

	rel, err := svc.ReleaseHandle(ctx,
		connect.NewRequest(&ReleaseHandleRequest{ID: id}))
	if err != nil {
		t.Fatal(err)
	}
	if !rel.Msg.Released {
		t.Error("first release reported not released")
	}

	rel, err = svc.ReleaseHandle(ctx,
		connect.NewRequest(&ReleaseHandleRequest{ID: id}))
	if err != nil {
		t.Fatal(err)
	}
	if rel.Msg.Released {
		t.Error("second release of the same handle reported released")
	}
}

func TestExportBlock(t *testing.T) {
	svc, _ := newTestEvalService(t)
	ctx := context.Background()

	resp, err := svc.ExportBlock(ctx,
		connect.NewRequest(&ExportBlockRequest{Source: "a: 1 [b 2]"}))
	if err != nil {
		t.Fatalf("ExportBlock: %v", err)
	}
	if len(resp.Msg.Wire) == 0 {
		t.Fatal("ExportBlock returned empty wire bytes")
	}

	// the wire bytes load into a fresh interpreter
	other := core.NewInterp(core.Options{})
	block, err := dist.UnmarshalBlock(other, resp.Msg.Wire)
	if err != nil {
		t.Fatalf("exported wire does not decode: %v", err)
	}
	if block.Len() != 3 {
		t.Errorf("decoded block length = %d, want 3", block.Len())
	}

	// broken source is the client's fault
	_, err = svc.ExportBlock(ctx,
		connect.NewRequest(&ExportBlockRequest{Source: "[broken"}))
	if connect.CodeOf(err) != connect.CodeInvalidArgument {
		t.Errorf("broken source code = %v, want invalid_argument", connect.CodeOf(err))
	}
}

func TestListSessions(t *testing.T) {
	_, sessionSvc := newTestEvalService(t)
	ctx := context.Background()

	resp, err := sessionSvc.ListSessions(ctx,
		connect.NewRequest(&ListSessionsRequest{}))
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Msg.Sessions) != 0 {
		t.Fatalf("fresh store lists %d sessions", len(resp.Msg.Sessions))
	}

	created, err := sessionSvc.CreateSession(ctx,
		connect.NewRequest(&CreateSessionRequest{Name: "one"}))
	if err != nil {
		t.Fatal(err)
	}

	resp, err = sessionSvc.ListSessions(ctx,
		connect.NewRequest(&ListSessionsRequest{}))
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Msg.Sessions) != 1 || resp.Msg.Sessions[0].ID != created.Msg.ID {
		t.Errorf("ListSessions = %+v", resp.Msg.Sessions)
	}
}

func TestSessionService(t *testing.T) {
	svc, sessionSvc := newTestEvalService(t)
	ctx := context.Background()

	created, err := sessionSvc.CreateSession(ctx,
		connect.NewRequest(&CreateSessionRequest{Name: "repl"}))
	if err != nil {
		t.Fatal(err)
	}
	if created.Msg.ID == "" || created.Msg.Name != "repl" {
		t.Fatalf("CreateSession = %+v", created.Msg)
	}

	// evaluating against the session works and owns the handle
	resp, err := svc.Evaluate(ctx, connect.NewRequest(&EvaluateRequest{
		Source:  "99",
		Session: created.Msg.ID,
	}))
	if err != nil || !resp.Msg.Success {
		t.Fatalf("session evaluate = %+v, %v", resp, err)
	}
	handleID := resp.Msg.Handle.ID

	destroyed, err := sessionSvc.DestroySession(ctx,
		connect.NewRequest(&DestroySessionRequest{ID: created.Msg.ID}))
	if err != nil {
		t.Fatal(err)
	}
	if !destroyed.Msg.Destroyed {
		t.Error("DestroySession reported not destroyed")
	}
	if _, ok := svc.handles.Lookup(handleID); ok {
		t.Error("session handle survived session destruction")
	}

	destroyed, _ = sessionSvc.DestroySession(ctx,
		connect.NewRequest(&DestroySessionRequest{ID: created.Msg.ID}))
	if destroyed.Msg.Destroyed {
		t.Error("destroying twice reported destroyed")
	}
}
