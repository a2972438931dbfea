package conversation

import (
	"context"

	"dispatch_bot_backend/internal/domain"
	"dispatch_bot_backend/internal/session"
	"dispatch_bot_backend/platform/logger"
)

// Turn is the handling of one inbound event for one sender. Engines read the
// event and identity, send replies and leave the next session on the turn;
// the router persists it afterwards.
type Turn struct {
	Event    Event
	Identity domain.Identity

	session *session.Session
	out     Messenger
	log     *logger.Logger
}

// NewTurn creates a turn. sess may be nil when the sender has no flow.
func NewTurn(ev Event, id domain.Identity, sess *session.Session, out Messenger, log *logger.Logger) *Turn {
	return &Turn{Event: ev, Identity: id, session: sess, out: out, log: log}
}

// Sender is the channel address of the event.
func (t *Turn) Sender() string {
	return t.Event.Sender
}

// Session returns the current session, nil when the flow ended or never started.
func (t *Turn) Session() *session.Session {
	return t.session
}

// State returns the current state, nil when there is none.
func (t *Turn) State() session.State {
	if t.session == nil {
		return nil
	}
	return t.session.State
}

// Data returns the payload, creating an empty session if needed.
func (t *Turn) Data() *session.Data {
	if t.session == nil {
		t.session = &session.Session{}
	}
	return &t.session.Data
}

// Enter moves to state keeping the accumulated payload.
func (t *Turn) Enter(state session.State) {
	if t.session == nil {
		t.session = &session.Session{}
	}
	t.session.State = state
}

// Start replaces the session with a fresh one.
func (t *Turn) Start(state session.State, data session.Data) {
	t.session = &session.Session{State: state, Data: data}
}

// End clears the session.
func (t *Turn) End() {
	t.session = nil
}

// Reply sends msg to the sender. Failures are logged only.
func (t *Turn) Reply(ctx context.Context, msg Message) {
	t.SendTo(ctx, t.Event.Sender, msg)
}

// Replyf sends a formatted text to the sender.
func (t *Turn) Replyf(ctx context.Context, format string, args ...any) {
	t.Reply(ctx, Text(format, args...))
}

// SendTo sends msg to another party. Failures are logged only.
func (t *Turn) SendTo(ctx context.Context, to string, msg Message) {
	if err := t.out.Send(ctx, to, msg); err != nil {
		t.log.WithContext(ctx).Warn("outbound send failed", "to", to, "error", err)
	}
}

// Log returns the context-scoped logger.
func (t *Turn) Log(ctx context.Context) *logger.Logger {
	return t.log.WithContext(ctx)
}

// Handler advances one engine for one turn.
type Handler interface {
	Handle(ctx context.Context, t *Turn) error
}

// Starter enters an engine's first state from another engine (menu choices,
// "repeat last interaction").
type Starter interface {
	Start(ctx context.Context, t *Turn) error
}
