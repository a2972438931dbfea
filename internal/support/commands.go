package support

import (
	"context"
	"fmt"
	"strings"

	"dispatch_bot_backend/internal/conversation"
	"dispatch_bot_backend/internal/domain"
	"dispatch_bot_backend/internal/rating"
	"dispatch_bot_backend/internal/session"
	"dispatch_bot_backend/platform/apperr"
	"dispatch_bot_backend/platform/phone"
)

// HandleCommand runs an agent support command. It reports false when name is
// not a support command.
func (e *Engine) HandleCommand(ctx context.Context, t *conversation.Turn, name, args string) (bool, error) {
	switch name {
	case "/falarcom":
		return true, e.cmdTalkTo(ctx, t, args)
	case "/finalizar":
		return true, e.cmdFinish(ctx, t)
	case "/fila":
		return true, e.cmdQueue(ctx, t)
	default:
		return false, nil
	}
}

func (e *Engine) cmdTalkTo(ctx context.Context, t *conversation.Turn, args string) error {
	agent := t.Identity.Agent
	to := phone.Address(args)
	if to == "" {
		t.Replyf(ctx, "Por favor, forneça o número do cliente. Exemplo: /falarcom 5541999999999")
		return nil
	}

	client, err := e.Store.GetClientByAddress(ctx, to)
	if apperr.Is(err, apperr.KindNotFound) {
		t.Replyf(ctx, "Cliente com número %s não encontrado no sistema.", to)
		return nil
	}
	if err != nil {
		return fmt.Errorf("find client: %w", err)
	}

	res, err := e.Store.ClaimClient(ctx, agent.ID, client)
	if err != nil {
		return err
	}

	switch res.Outcome {
	case domain.HeldByOther:
		other := res.Ticket.AgentName
		if other == "" {
			other = "outro atendente"
		}
		t.Replyf(ctx, "Este cliente já está sendo atendido por %s.", other)
	case domain.AlreadyMine:
		t.Replyf(ctx, "Você já está em atendimento com %s. Continue a conversa normalmente.", client.Name)
	case domain.ClaimedWaiting, domain.ClaimedNew:
		t.SendTo(ctx, client.Address, conversation.Text(
			"Olá! Sou %s, atendente da empresa, e estou aqui para ajudá-lo. Como posso ser útil hoje?", agent.Name))
		t.Replyf(ctx, "✅ Atendimento iniciado com %s (%s).\nTodas as suas mensagens serão encaminhadas para o cliente até que você use o comando /finalizar.",
			client.Name, client.Address)
		t.Log(ctx).Info("support ticket claimed", "ticket_id", res.Ticket.ID, "agent_id", agent.ID, "queued", res.Outcome == domain.ClaimedWaiting)
	default:
		return fmt.Errorf("support: unknown claim outcome %d", res.Outcome)
	}
	return nil
}

func (e *Engine) cmdFinish(ctx context.Context, t *conversation.Turn) error {
	agent := t.Identity.Agent
	res, err := e.Store.FinishTickets(ctx, agent.ID)
	if err != nil {
		return err
	}
	if len(res.Closed) == 0 {
		t.Replyf(ctx, "Você não possui nenhum atendimento em andamento para finalizar.")
		return nil
	}

	agentID := agent.ID
	rc := session.Rating{Type: "Suporte com " + agent.Name, AgentID: &agentID}
	for _, ticket := range res.Closed {
		err := e.Rating.PromptOther(ctx, t, e.Sessions, ticket.Address, ticket.ClientID, rating.AwaitingRating, rc,
			"Seu atendimento foi finalizado.")
		if err != nil {
			t.Log(ctx).Warn("rating prompt not seeded", "ticket_id", ticket.ID, "to", ticket.Address, "error", err)
		}
	}

	if res.Next == nil {
		t.Replyf(ctx, "✅ Atendimento(s) finalizado(s). Não há mais clientes na fila de espera.")
		return nil
	}
	t.Reply(ctx, NextClientCard(*res.Next))
	t.SendTo(ctx, res.Next.Address, conversation.Text(
		"Olá! O atendente %s está disponível e irá atendê-lo em instantes.", agent.Name))
	return nil
}

// NextClientCard tells an agent which queued customer they now hold.
func NextClientCard(next domain.Ticket) conversation.Message {
	return conversation.Text(
		"✅ Atendimento(s) anterior(es) finalizado(s).\n\n🔔 *Próximo Cliente na Fila*\n\nNome: %s\nTelefone: %s\nMotivo: %s\n\nPara iniciar a conversa, use o comando:\n/falarcom %s",
		next.ClientName, next.Address, next.Reason, next.Address,
	)
}

func (e *Engine) cmdQueue(ctx context.Context, t *conversation.Turn) error {
	tickets, err := e.Store.WaitingTickets(ctx)
	if err != nil {
		return fmt.Errorf("list waiting tickets: %w", err)
	}
	if len(tickets) == 0 {
		t.Replyf(ctx, "Não há clientes na fila de espera.")
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📋 *Fila de espera* (%d)\n", len(tickets))
	for i, tk := range tickets {
		fmt.Fprintf(&b, "\n%d. %s (%s) desde %s\n   %s", i+1, tk.ClientName, tk.Address, domain.FormatDateTime(tk.CreatedAt), tk.Reason)
	}
	b.WriteString("\n\nUse /falarcom <número> para atender.")
	t.Reply(ctx, conversation.Message{Text: b.String()})
	return nil
}
