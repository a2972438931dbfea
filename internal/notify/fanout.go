// Package notify sends side-channel messages to parties other than the
// sender of the current event and seeds their sessions.
package notify

import (
	"context"
	"fmt"
	"time"

	"dispatch_bot_backend/internal/conversation"
	"dispatch_bot_backend/internal/domain"
	"dispatch_bot_backend/internal/session"
	"dispatch_bot_backend/platform/logger"

	"golang.org/x/sync/errgroup"
)

// StaffDirectory lists the agents that receive queue notifications.
type StaffDirectory interface {
	AvailableAgents(ctx context.Context) ([]domain.Staff, error)
}

// Fanout delivers cross-party notifications.
type Fanout struct {
	out         conversation.Messenger
	sessions    *session.Store
	staff       StaffDirectory
	seedTimeout time.Duration
	log         *logger.Logger
}

// New creates a Fanout. seedTimeout bounds the wait for another sender's lock.
func New(out conversation.Messenger, sessions *session.Store, staff StaffDirectory, seedTimeout time.Duration, log *logger.Logger) *Fanout {
	return &Fanout{out: out, sessions: sessions, staff: staff, seedTimeout: seedTimeout, log: log}
}

// Send implements conversation.Messenger.
func (f *Fanout) Send(ctx context.Context, to string, msg conversation.Message) error {
	return f.out.Send(ctx, to, msg)
}

// Seed sets another party's session under that party's lock.
func (f *Fanout) Seed(ctx context.Context, to string, sess session.Session) error {
	ctx, cancel := context.WithTimeout(ctx, f.seedTimeout)
	defer cancel()
	if err := f.sessions.Seed(ctx, to, sess); err != nil {
		f.log.WithContext(ctx).Warn("seed session failed", "to", to, "state", sess.State, "error", err)
		return err
	}
	return nil
}

// NotifyAvailableAgents sends msgs, in order, to every available agent.
// Agents are notified concurrently. It returns how many agents were reached.
func (f *Fanout) NotifyAvailableAgents(ctx context.Context, msgs ...conversation.Message) (int, error) {
	agents, err := f.staff.AvailableAgents(ctx)
	if err != nil {
		return 0, fmt.Errorf("list available agents: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, agent := range agents {
		g.Go(func() error {
			for _, msg := range msgs {
				if err := f.out.Send(gctx, agent.Address, msg); err != nil {
					return fmt.Errorf("notify agent %d: %w", agent.ID, err)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		f.log.WithContext(ctx).Warn("agent fan-out incomplete", "error", err)
		return len(agents), err
	}
	return len(agents), nil
}
