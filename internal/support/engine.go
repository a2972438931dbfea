// Package support queues customers for a human agent and runs the agent side
// of the hand-off: claiming, finishing and relaying conversations.
package support

import (
	"context"
	"fmt"
	"unicode/utf8"

	"dispatch_bot_backend/internal/conversation"
	"dispatch_bot_backend/internal/domain"
	"dispatch_bot_backend/internal/rating"
	"dispatch_bot_backend/internal/session"
)

const minReasonLen = 5

// Store is the persistence the engine needs.
type Store interface {
	CreateTicket(ctx context.Context, client domain.Client, reason string) (int64, error)
	GetClientByAddress(ctx context.Context, address string) (domain.Client, error)
	ClaimClient(ctx context.Context, agentID int64, client domain.Client) (domain.ClaimResult, error)
	FinishTickets(ctx context.Context, agentID int64) (domain.FinishResult, error)
	AgentTicket(ctx context.Context, agentID int64) (domain.Ticket, error)
	ClientTicket(ctx context.Context, clientID int64) (domain.Ticket, error)
	WaitingTickets(ctx context.Context) ([]domain.Ticket, error)
}

// Broadcaster reaches every available agent.
type Broadcaster interface {
	NotifyAvailableAgents(ctx context.Context, msgs ...conversation.Message) (int, error)
}

// Rater prompts another customer for a rating.
type Rater interface {
	PromptOther(ctx context.Context, t *conversation.Turn, seeder rating.Seeder, to string, clientID int64, state rating.State, rc session.Rating, lead string) error
}

// Deps wires the engine.
type Deps struct {
	Store    Store
	Agents   Broadcaster
	Sessions rating.Seeder
	Rating   Rater
}

// Engine is the support engine.
type Engine struct {
	Deps
}

// New creates the engine.
func New(d Deps) *Engine {
	return &Engine{Deps: d}
}

// Start asks the customer of t why they need an agent.
func (e *Engine) Start(ctx context.Context, t *conversation.Turn) error {
	data := t.Data()
	t.Start(AwaitingSupportReason, session.Data{ClientID: data.ClientID, Name: data.Name, Address: data.Address})
	t.Replyf(ctx, "Por favor, descreva brevemente o motivo do seu contato para que possamos direcioná-lo ao melhor atendente.")
	return nil
}

// Handle advances the support flow by one event.
func (e *Engine) Handle(ctx context.Context, t *conversation.Turn) error {
	st, ok := t.State().(State)
	if !ok {
		return fmt.Errorf("support: unexpected state %v", t.State())
	}

	switch st {
	case AwaitingSupportReason:
		return e.onReason(ctx, t)
	default:
		return fmt.Errorf("support: unhandled state %s", st)
	}
}

func (e *Engine) onReason(ctx context.Context, t *conversation.Turn) error {
	reason := t.Event.Body()
	if utf8.RuneCountInString(reason) < minReasonLen {
		t.Replyf(ctx, "Por favor, descreva o motivo do contato com um pouco mais de detalhe.")
		return nil
	}

	data := t.Data()
	client := domain.Client{ID: data.ClientID, Name: data.Name, Address: t.Sender()}
	id, err := e.Store.CreateTicket(ctx, client, reason)
	if err != nil {
		return fmt.Errorf("queue support ticket: %w", err)
	}
	t.Replyf(ctx, "Sua solicitação de suporte foi registrada. Um de nossos atendentes entrará em contato em breve. Obrigado!")
	t.End()

	who := data.Name
	if who == "" {
		who = t.Sender()
	}
	n, err := e.Agents.NotifyAvailableAgents(ctx, conversation.Text(
		"🔔 Novo cliente na fila de espera: %s (%s). Motivo: %s\n\nPara atender, use:\n/falarcom %s",
		who, t.Sender(), reason, t.Sender(),
	))
	if err != nil {
		t.Log(ctx).Warn("queue notification incomplete", "ticket_id", id, "error", err)
	}
	t.Log(ctx).Info("support ticket queued", "ticket_id", id, "client_id", data.ClientID, "agents_notified", n)
	return nil
}
