package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"connectrpc.com/connect"

	"github.com/rendlang/rend/core"
)

func newTestServer(t *testing.T, opts ...ServerOption) (*RendServer, *httptest.Server) {
	t.Helper()
	s := New(core.NewInterp(core.Options{}), opts...)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		s.Stop()
	})
	return s, ts
}

func TestServerEvaluateOverHTTP(t *testing.T) {
	_, ts := newTestServer(t)

	client := connect.NewClient[EvaluateRequest, EvaluateResponse](
		http.DefaultClient, ts.URL+EvaluateProcedure, connect.WithCodec(jsonCodec{}))

	resp, err := client.CallUnary(context.Background(),
		connect.NewRequest(&EvaluateRequest{Source: "3 * 4"}))
	if err != nil {
		t.Fatalf("CallUnary: %v", err)
	}
	if !resp.Msg.Success || resp.Msg.Result != "12" {
		t.Errorf("response = %+v", resp.Msg)
	}
}

func TestServerCheckSyntaxOverHTTP(t *testing.T) {
	_, ts := newTestServer(t)

	client := connect.NewClient[CheckSyntaxRequest, CheckSyntaxResponse](
		http.DefaultClient, ts.URL+CheckSyntaxProcedure, connect.WithCodec(jsonCodec{}))

	resp, err := client.CallUnary(context.Background(),
		connect.NewRequest(&CheckSyntaxRequest{Source: `"unterminated`}))
	if err != nil {
		t.Fatalf("CallUnary: %v", err)
	}
	if resp.Msg.Valid {
		t.Error("unterminated string reported valid")
	}
}

func TestServerSessionRoundTripOverHTTP(t *testing.T) {
	_, ts := newTestServer(t)
	ctx := context.Background()

	create := connect.NewClient[CreateSessionRequest, CreateSessionResponse](
		http.DefaultClient, ts.URL+CreateSessionProcedure, connect.WithCodec(jsonCodec{}))
	destroy := connect.NewClient[DestroySessionRequest, DestroySessionResponse](
		http.DefaultClient, ts.URL+DestroySessionProcedure, connect.WithCodec(jsonCodec{}))

	created, err := create.CallUnary(ctx, connect.NewRequest(&CreateSessionRequest{Name: "t"}))
	if err != nil {
		t.Fatal(err)
	}
	destroyed, err := destroy.CallUnary(ctx,
		connect.NewRequest(&DestroySessionRequest{ID: created.Msg.ID}))
	if err != nil {
		t.Fatal(err)
	}
	if !destroyed.Msg.Destroyed {
		t.Error("session round trip failed to destroy")
	}
}

func TestServerSweeperReleasesIdleHandles(t *testing.T) {
	s, _ := newTestServer(t, WithHandleTTL(10*time.Millisecond, 20*time.Millisecond))

	v, err := s.worker.Do(func(in *core.Interp) interface{} { return in.Integer(1) })
	if err != nil {
		t.Fatal(err)
	}
	id := s.handles.Create(v.(*core.Cell), "integer!", "1", "")

	deadline := time.Now().Add(2 * time.Second)
	for {
		s.handles.mu.RLock()
		_, alive := s.handles.handles[id]
		s.handles.mu.RUnlock()
		if !alive {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("sweeper never released the idle handle")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
