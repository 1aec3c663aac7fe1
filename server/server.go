package server

import (
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/tliron/commonlog"

	"github.com/rendlang/rend/core"
	"github.com/rendlang/rend/core/dist"
)

var log = commonlog.GetLogger("rend.server")

// RendServer is the evaluation server wrapping a running interpreter.
// It serves Connect (HTTP/JSON) procedures on one port.
type RendServer struct {
	worker   *InterpWorker
	handles  *HandleStore
	sessions *SessionStore
	mux      *http.ServeMux

	cache       *dist.ScanCache
	stopSweeper func()
}

// ServerOption configures a RendServer.
type ServerOption func(*serverConfig)

type serverConfig struct {
	cache         *dist.ScanCache
	sweepInterval time.Duration
	handleTTL     time.Duration
}

// WithScanCache routes evaluation through a persistent scan cache.
func WithScanCache(cache *dist.ScanCache) ServerOption {
	return func(c *serverConfig) { c.cache = cache }
}

// WithHandleTTL overrides the handle sweep interval and TTL.
func WithHandleTTL(interval, ttl time.Duration) ServerOption {
	return func(c *serverConfig) {
		c.sweepInterval = interval
		c.handleTTL = ttl
	}
}

// New creates a RendServer wrapping the given interpreter. The
// interpreter must not be used from any other goroutine afterward.
func New(in *core.Interp, opts ...ServerOption) *RendServer {
	cfg := &serverConfig{
		sweepInterval: 5 * time.Minute,
		handleTTL:     30 * time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	worker := NewInterpWorker(in)
	handles := NewHandleStore(worker)
	sessions := NewSessionStore(handles)

	s := &RendServer{
		worker:   worker,
		handles:  handles,
		sessions: sessions,
		mux:      http.NewServeMux(),
		cache:    cfg.cache,
	}

	evalSvc := NewEvalService(worker, handles, sessions, cfg.cache)
	sessionSvc := NewSessionService(sessions)

	codec := connect.WithCodec(jsonCodec{})
	s.mux.Handle(EvaluateProcedure,
		connect.NewUnaryHandler(EvaluateProcedure, evalSvc.Evaluate, codec))
	s.mux.Handle(CheckSyntaxProcedure,
		connect.NewUnaryHandler(CheckSyntaxProcedure, evalSvc.CheckSyntax, codec))
	s.mux.Handle(ExportBlockProcedure,
		connect.NewUnaryHandler(ExportBlockProcedure, evalSvc.ExportBlock, codec))
	s.mux.Handle(ReleaseHandleProcedure,
		connect.NewUnaryHandler(ReleaseHandleProcedure, evalSvc.ReleaseHandle, codec))
	s.mux.Handle(CreateSessionProcedure,
		connect.NewUnaryHandler(CreateSessionProcedure, sessionSvc.CreateSession, codec))
	s.mux.Handle(ListSessionsProcedure,
		connect.NewUnaryHandler(ListSessionsProcedure, sessionSvc.ListSessions, codec))
	s.mux.Handle(DestroySessionProcedure,
		connect.NewUnaryHandler(DestroySessionProcedure, sessionSvc.DestroySession, codec))

	s.stopSweeper = handles.StartSweeper(cfg.sweepInterval, cfg.handleTTL)

	return s
}

// Handler returns the HTTP handler serving the Connect procedures.
func (s *RendServer) Handler() http.Handler {
	return s.mux
}

// ListenAndServe starts the HTTP server on the given address, in the
// form "host:port" or ":port".
func (s *RendServer) ListenAndServe(addr string) error {
	log.Noticef("evaluation server listening on %s", addr)
	log.Infof("  Connect (HTTP/JSON): http://%s%s", addr, EvaluateProcedure)
	return http.ListenAndServe(addr, s.mux)
}

// Stop shuts down the worker and background sweeper.
func (s *RendServer) Stop() {
	if s.stopSweeper != nil {
		s.stopSweeper()
	}
	s.worker.Stop()
	if s.cache != nil {
		s.cache.Close()
	}
}
