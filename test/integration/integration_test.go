package integration_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"connectrpc.com/connect"

	"github.com/rendlang/rend/config"
	"github.com/rendlang/rend/core"
	"github.com/rendlang/rend/core/dist"
	"github.com/rendlang/rend/server"
)

// evalJSON is a raw Connect JSON call against a mounted procedure.
func evalJSON(t *testing.T, baseURL, source string) *server.EvaluateResponse {
	t.Helper()
	client := connect.NewClient[server.EvaluateRequest, server.EvaluateResponse](
		http.DefaultClient, baseURL+server.EvaluateProcedure,
		connect.WithCodec(jsonCodec{}))
	resp, err := client.CallUnary(context.Background(),
		connect.NewRequest(&server.EvaluateRequest{Source: source}))
	if err != nil {
		t.Fatalf("evaluate %q: %v", source, err)
	}
	return resp.Msg
}

func TestFullPipeline(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "rend.toml"), []byte(`
[memory]
ballast-bytes = 1048576

[cache]
enabled = true
path = "scans.db"
`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.FindAndLoad(dir)
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	cache, err := dist.OpenCache(cfg.CachePath())
	if err != nil {
		t.Fatalf("cache: %v", err)
	}

	in := core.NewInterp(core.Options{Ballast: cfg.Memory.BallastBytes})
	srv := server.New(in, server.WithScanCache(cache))
	ts := httptest.NewServer(srv.Handler())
	defer func() {
		ts.Close()
		srv.Stop()
	}()

	// definitions persist across requests on the one interpreter
	resp := evalJSON(t, ts.URL, "double: func [n] [n * 2]")
	if !resp.Success {
		t.Fatalf("define failed: %s", resp.Error)
	}
	resp = evalJSON(t, ts.URL, "double 21")
	if resp.Result != "42" {
		t.Errorf("double 21 = %q, want 42", resp.Result)
	}

	// the same source again is served from the scan cache
	resp = evalJSON(t, ts.URL, "double 21")
	if resp.Result != "42" {
		t.Errorf("cached double 21 = %q, want 42", resp.Result)
	}

	// errors come back as structured failures, not broken connections
	resp = evalJSON(t, ts.URL, "1 / 0")
	if resp.Success || !strings.Contains(resp.Error, "divide") {
		t.Errorf("division error = %+v", resp)
	}

	// the cache database has entries on disk
	if fi, err := os.Stat(cfg.CachePath()); err != nil || fi.Size() == 0 {
		t.Errorf("scan cache not written: %v", err)
	}
}

func TestScriptExecution(t *testing.T) {
	in := core.NewInterp(core.Options{})

	script := `
fib: func [n] [
	either n < 2 [n] [(fib n - 1) + (fib n - 2)]
]
acc: copy []
i: 0
while [i < 10] [
	append acc fib i
	i: i + 1
]
acc
`
	block, err := dist.ScanCached(in, nil, script)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	h := in.Eval(block)
	if h == nil {
		t.Fatal("script yielded null")
	}
	if got := in.MoldCell(h); got != "[0 1 1 2 3 5 8 13 21 34]" {
		t.Errorf("fibonacci block = %q", got)
	}
	in.Release(h)
}

func TestWireFormatAcrossInterpreters(t *testing.T) {
	src := "greet: func [name] [append copy \"hello \" name] greet \"world\""

	one := core.NewInterp(core.Options{})
	block := one.Scan(src)
	one.GuardSeries(block)
	wire, err := dist.MarshalBlock(block)
	one.DropGuard()
	if err != nil {
		t.Fatal(err)
	}

	// a second interpreter rebuilds and runs the same program
	two := core.NewInterp(core.Options{})
	rebuilt, err := dist.UnmarshalBlock(two, wire)
	if err != nil {
		t.Fatal(err)
	}
	h := two.Eval(rebuilt)
	if h == nil {
		t.Fatal("transported program yielded null")
	}
	if got := two.Spell(h); got != "hello world" {
		t.Errorf("transported result = %q, want hello world", got)
	}
	two.Release(h)
}

// jsonCodec mirrors the server's codec for client-side calls.
type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(m any) ([]byte, error) {
	return json.Marshal(m)
}

func (jsonCodec) Unmarshal(data []byte, m any) error {
	return json.Unmarshal(data, m)
}
