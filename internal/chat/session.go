// Package chat maintains the linear conversation with the assistant
// endpoint. The transcript is held only in memory on the client side; the
// server keeps its own session history keyed by (user, session).
package chat

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"bookchat/internal/domain"
)

// Gateway is the session-facing subset of the backend client.
type Gateway interface {
	Chat(ctx context.Context, userID, sessionID, query string, dbName *string) (domain.ChatReply, error)
	ClearSession(ctx context.Context, userID, sessionID string) error
}

// State is the session's send state machine.
type State int

const (
	StateIdle State = iota
	StateSending
	StateError
)

// Session is a (user, session) scoped transcript with an optional
// collection scope for retrieval. Sends are serialized: sendMu holds for
// the whole round-trip so two concurrent sends cannot interleave their
// transcript appends, while mu guards the transcript itself so it stays
// readable mid-flight.
type Session struct {
	gw        Gateway
	log       *zap.Logger
	userID    string
	sessionID string

	sendMu sync.Mutex

	mu         sync.Mutex
	state      State
	messages   []domain.ChatMessage
	collection *string
}

// NewSession creates a session for the given identity. The identity token
// serves as both user id and session id.
func NewSession(gw Gateway, userID string, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{gw: gw, log: log, userID: userID, sessionID: userID}
}

// SetCollection scopes retrieval for subsequent sends to one collection.
// It does not affect messages already in the transcript.
func (s *Session) SetCollection(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collection = &name
}

// ClearCollection removes the retrieval scope: subsequent sends answer
// from general knowledge across all books.
func (s *Session) ClearCollection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collection = nil
}

// Collection returns the current scope, or "" when unscoped.
func (s *Session) Collection() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.collection == nil {
		return ""
	}
	return *s.collection
}

// State returns the current send state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Messages returns a copy of the transcript.
func (s *Session) Messages() []domain.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ChatMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

// Send submits one turn. Empty or whitespace-only text is a no-op
// returning domain.ErrEmptyMessage. The user message is appended before
// the network call resolves; on failure a system-role note is appended
// instead of rolling the user message back, so the question stays visible
// even though no answer arrived.
func (s *Session) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.ErrEmptyMessage
	}
	if s.userID == "" {
		return domain.ErrNoIdentity
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	s.mu.Lock()
	s.state = StateSending
	s.messages = append(s.messages, domain.ChatMessage{Role: domain.RoleUser, Content: text})
	scope := s.collection
	s.mu.Unlock()

	reply, err := s.gw.Chat(ctx, s.userID, s.sessionID, text, scope)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state = StateError
		s.messages = append(s.messages, domain.ChatMessage{
			Role:    domain.RoleSystem,
			Content: "The assistant could not be reached: " + err.Error(),
		})
		s.log.Warn("chat turn failed", zap.Error(err))
		return err
	}
	s.state = StateIdle
	s.messages = append(s.messages, domain.ChatMessage{
		Role:      domain.RoleAssistant,
		Content:   reply.Response,
		Artifacts: reply.Artifacts,
	})
	return nil
}

// Clear requests server-side session deletion and empties the local
// transcript whether or not that request succeeds: the session identity
// is reused, and a failed server-side clear must not block a fresh start.
// The failure is still returned so the caller can report that stale
// history may remain on the server.
func (s *Session) Clear(ctx context.Context) error {
	err := s.gw.ClearSession(ctx, s.userID, s.sessionID)
	s.mu.Lock()
	s.messages = nil
	s.state = StateIdle
	s.mu.Unlock()
	if err != nil {
		s.log.Warn("server-side session clear failed; local transcript reset anyway", zap.Error(err))
	}
	return err
}
