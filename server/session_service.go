package server

import (
	"context"
	"fmt"
	"time"

	"connectrpc.com/connect"
)

// Session service procedure paths.
const (
	CreateSessionProcedure  = "/rend.v1.SessionService/CreateSession"
	ListSessionsProcedure   = "/rend.v1.SessionService/ListSessions"
	DestroySessionProcedure = "/rend.v1.SessionService/DestroySession"
)

// CreateSessionRequest opens a session.
type CreateSessionRequest struct {
	Name string `json:"name,omitempty"`
}

// CreateSessionResponse reports the new session.
type CreateSessionResponse struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// ListSessionsRequest asks for all live sessions.
type ListSessionsRequest struct{}

// SessionInfo describes one live session.
type SessionInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name,omitempty"`
	Created string `json:"created"`
}

// ListSessionsResponse reports the live sessions.
type ListSessionsResponse struct {
	Sessions []SessionInfo `json:"sessions"`
}

// DestroySessionRequest closes a session and releases its handles.
type DestroySessionRequest struct {
	ID string `json:"id"`
}

// DestroySessionResponse reports the destruction.
type DestroySessionResponse struct {
	Destroyed bool `json:"destroyed"`
}

// SessionService implements the session procedures.
type SessionService struct {
	sessions *SessionStore
}

// NewSessionService creates a SessionService.
func NewSessionService(sessions *SessionStore) *SessionService {
	return &SessionService{sessions: sessions}
}

// CreateSession opens a new session.
func (s *SessionService) CreateSession(
	ctx context.Context,
	req *connect.Request[CreateSessionRequest],
) (*connect.Response[CreateSessionResponse], error) {
	session := s.sessions.Create(req.Msg.Name)
	return connect.NewResponse(&CreateSessionResponse{
		ID:   session.ID,
		Name: session.Name,
	}), nil
}

// ListSessions reports every live session.
func (s *SessionService) ListSessions(
	ctx context.Context,
	req *connect.Request[ListSessionsRequest],
) (*connect.Response[ListSessionsResponse], error) {
	sessions := s.sessions.List()
	resp := &ListSessionsResponse{Sessions: make([]SessionInfo, 0, len(sessions))}
	for _, session := range sessions {
		resp.Sessions = append(resp.Sessions, SessionInfo{
			ID:      session.ID,
			Name:    session.Name,
			Created: session.Created.Format(time.RFC3339),
		})
	}
	return connect.NewResponse(resp), nil
}

// DestroySession closes a session, releasing every handle it owns.
func (s *SessionService) DestroySession(
	ctx context.Context,
	req *connect.Request[DestroySessionRequest],
) (*connect.Response[DestroySessionResponse], error) {
	if req.Msg.ID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("session id is required"))
	}

	_, ok := s.sessions.Get(req.Msg.ID)
	if ok {
		s.sessions.Destroy(req.Msg.ID)
	}
	return connect.NewResponse(&DestroySessionResponse{Destroyed: ok}), nil
}
