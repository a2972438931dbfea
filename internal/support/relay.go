package support

import (
	"context"
	"fmt"

	"dispatch_bot_backend/internal/conversation"
	"dispatch_bot_backend/platform/apperr"
)

// RelayFromAgent forwards the agent's message to the customer of their
// in-progress ticket. It reports false when the agent holds no ticket.
func (e *Engine) RelayFromAgent(ctx context.Context, t *conversation.Turn) (bool, error) {
	ticket, err := e.Store.AgentTicket(ctx, t.Identity.Agent.ID)
	if apperr.Is(err, apperr.KindNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("agent ticket: %w", err)
	}
	msg, err := relayed(ctx, t, t.Identity.Agent.Name)
	if err != nil {
		return true, err
	}
	t.SendTo(ctx, ticket.Address, msg)
	return true, nil
}

// RelayFromCustomer forwards the customer's message to the agent holding
// their in-progress ticket. It reports false when no agent holds one.
func (e *Engine) RelayFromCustomer(ctx context.Context, t *conversation.Turn) (bool, error) {
	client := t.Identity.Client
	if client == nil {
		return false, nil
	}
	ticket, err := e.Store.ClientTicket(ctx, client.ID)
	if apperr.Is(err, apperr.KindNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("client ticket: %w", err)
	}
	if ticket.AgentAddress == "" {
		return false, nil
	}
	msg, err := relayed(ctx, t, client.Name)
	if err != nil {
		return true, err
	}
	t.SendTo(ctx, ticket.AgentAddress, msg)
	return true, nil
}

// relayed prefixes the text with the author and carries media along.
func relayed(ctx context.Context, t *conversation.Turn, author string) (conversation.Message, error) {
	text := t.Event.Body()
	if text != "" {
		text = fmt.Sprintf("*%s:* %s", author, text)
	} else {
		text = fmt.Sprintf("*%s:*", author)
	}
	if !t.Event.HasMedia() {
		return conversation.Message{Text: text}, nil
	}
	data, err := t.Event.Media.Fetch(ctx)
	if err != nil {
		return conversation.Message{}, fmt.Errorf("fetch relayed media: %w", err)
	}
	return conversation.Image(text, t.Event.Media.MimeType, t.Event.Media.Filename, data), nil
}
