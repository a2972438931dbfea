// Package orchestrator routes every inbound event to the engine that owns its
// sender and persists the resulting session.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"dispatch_bot_backend/internal/conversation"
	"dispatch_bot_backend/internal/domain"
	"dispatch_bot_backend/internal/session"
	"dispatch_bot_backend/platform/apperr"
	"dispatch_bot_backend/platform/logger"
	"dispatch_bot_backend/platform/phone"
)

const (
	retryLaterText = "Desculpe, ocorreu um erro ao processar sua mensagem. Por favor, tente novamente mais tarde."
	apologyText    = "Desculpe, algo deu errado do nosso lado. Vamos recomeçar: envie qualquer mensagem para continuar."
)

// Identifier classifies senders and records staff activity.
type Identifier interface {
	Identify(ctx context.Context, address string) (domain.Identity, error)
	TouchStaff(ctx context.Context, id domain.Identity) error
}

// Deduper reports redelivered events.
type Deduper interface {
	Seen(ctx context.Context, messageID string) (bool, error)
}

// CommandHandler runs slash commands. It reports false for unknown names.
type CommandHandler interface {
	HandleCommand(ctx context.Context, t *conversation.Turn, name, args string) (bool, error)
}

// OnboardingEngine greets senders without a session.
type OnboardingEngine interface {
	conversation.Starter
	conversation.Handler
}

// FinanceEngine handles finance states and agent finance commands.
type FinanceEngine interface {
	conversation.Handler
	CommandHandler
}

// DispatchEngine handles technician states, commands and buttons, and the
// customer's answer to an arrival notice.
type DispatchEngine interface {
	conversation.Handler
	CommandHandler
	HandleButton(ctx context.Context, t *conversation.Turn) error
	HandleCustomerButton(ctx context.Context, t *conversation.Turn) (bool, error)
}

// SupportEngine handles the support reason, agent commands and the relay of
// conversations held by an agent.
type SupportEngine interface {
	conversation.Handler
	CommandHandler
	RelayFromAgent(ctx context.Context, t *conversation.Turn) (bool, error)
	RelayFromCustomer(ctx context.Context, t *conversation.Turn) (bool, error)
}

// Deps wires the router. Dedup is optional.
type Deps struct {
	Identity   Identifier
	Sessions   *session.Store
	Dedup      Deduper
	Out        conversation.Messenger
	Onboarding OnboardingEngine
	Finance    FinanceEngine
	Dispatch   DispatchEngine
	Support    SupportEngine
	Rating     conversation.Handler
	Log        *logger.Logger

	// LockTimeout bounds the wait for the sender lock; EventTimeout bounds the
	// whole handling of an event started by Dispatch.
	LockTimeout  time.Duration
	EventTimeout time.Duration
}

// Router is the role router.
type Router struct {
	Deps
	wg sync.WaitGroup
}

// New creates the router.
func New(d Deps) *Router {
	if d.LockTimeout <= 0 {
		d.LockTimeout = 30 * time.Second
	}
	if d.EventTimeout <= 0 {
		d.EventTimeout = 2 * time.Minute
	}
	return &Router{Deps: d}
}

// Dispatch handles ev on its own goroutine. Wait drains them.
func (r *Router) Dispatch(ev conversation.Event) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), r.EventTimeout)
		defer cancel()
		if err := r.Handle(ctx, ev); err != nil {
			r.Log.Error("inbound event failed", "sender", ev.Sender, "message_id", ev.MessageID, "error", err)
		}
	}()
}

// Wait blocks until every dispatched event finished or ctx is done.
func (r *Router) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Handle runs one inbound event to completion: it classifies the sender,
// advances the owning engine once and stores the next session, all under the
// sender's lock. Engine failures are answered and logged, not returned.
func (r *Router) Handle(ctx context.Context, ev conversation.Event) error {
	if ev.IsGroup || phone.IsGroupOrBroadcast(ev.ChatID) || phone.IsGroupOrBroadcast(ev.Sender) {
		return nil
	}
	ev.Sender = phone.Address(ev.Sender)
	if ev.Sender == "" {
		return nil
	}

	ctx = context.WithValue(ctx, logger.SenderKey, ev.Sender)
	ctx = context.WithValue(ctx, logger.MessageIDKey, ev.MessageID)
	log := r.Log.WithContext(ctx)

	if r.Dedup != nil {
		dup, err := r.Dedup.Seen(ctx, ev.MessageID)
		if err != nil {
			log.Warn("dedup check failed", "error", err)
		}
		if dup {
			log.Debug("duplicate inbound event dropped")
			return nil
		}
	}

	lockCtx, cancel := context.WithTimeout(ctx, r.LockTimeout)
	unlock, err := r.Sessions.Lock(lockCtx, ev.Sender)
	cancel()
	if err != nil {
		return err
	}
	defer unlock()

	id, err := r.Identity.Identify(ctx, ev.Sender)
	if err != nil {
		r.sendQuietly(ctx, ev.Sender, conversation.Text(retryLaterText))
		return fmt.Errorf("identify sender: %w", err)
	}

	var current *session.Session
	if sess, ok := r.Sessions.Get(ev.Sender); ok {
		current = &sess
	}
	from := stateName(current)

	t := conversation.NewTurn(ev, id, current, r.Out, r.Log)
	route, err := r.run(ctx, t)
	if err != nil {
		r.fail(ctx, t, err)
	}

	next := t.Session()
	if next == nil || next.State == nil {
		r.Sessions.Delete(ev.Sender)
	} else {
		r.Sessions.Put(ev.Sender, *next)
	}
	log.InboundEvent(ev.Sender, id.Role.String(), route)
	log.Transition(ev.Sender, from, stateName(next))
	return nil
}

type panicError struct {
	value any
	stack []byte
}

func (e *panicError) Error() string {
	return fmt.Sprintf("panic: %v\n%s", e.value, e.stack)
}

// run routes the turn, turning a panic into an error.
func (r *Router) run(ctx context.Context, t *conversation.Turn) (route string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &panicError{value: p, stack: debug.Stack()}
		}
	}()
	return r.route(ctx, t)
}

// fail answers an engine failure. Input problems keep the state; anything
// else ends the flow.
func (r *Router) fail(ctx context.Context, t *conversation.Turn, err error) {
	log := r.Log.WithContext(ctx)
	if apperr.IsUserFacing(err) {
		log.Warn("engine rejected event", "error", err)
		r.sendQuietly(ctx, t.Sender(), conversation.Message{Text: apperr.MessageOf(err)})
		return
	}
	log.Error("engine failed", "state", stateName(t.Session()), "error", err)
	text := retryLaterText
	var pe *panicError
	if errors.As(err, &pe) {
		text = apologyText
	}
	r.sendQuietly(ctx, t.Sender(), conversation.Message{Text: text})
	t.End()
}

func (r *Router) sendQuietly(ctx context.Context, to string, msg conversation.Message) {
	if err := r.Out.Send(ctx, to, msg); err != nil {
		r.Log.WithContext(ctx).Warn("error reply not delivered", "to", to, "error", err)
	}
}

func stateName(s *session.Session) string {
	if s == nil || s.State == nil {
		return "none"
	}
	return s.State.String()
}
