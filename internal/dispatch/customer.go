package dispatch

import (
	"context"
	"fmt"

	"dispatch_bot_backend/internal/conversation"
	"dispatch_bot_backend/internal/domain"
	"dispatch_bot_backend/platform/apperr"
)

// HandleCustomerButton answers an arrival notice pressed by a customer who has
// no session. It reports false for any other payload.
func (e *Engine) HandleCustomerButton(ctx context.Context, t *conversation.Turn) (bool, error) {
	action, orderID, ok := ParsePayload(t.Event.ButtonID)
	if !ok || orderID == 0 || (action != ActionConfirmPresence && action != ActionReschedule) {
		return false, nil
	}
	return true, e.onArrivalConfirmation(ctx, t)
}

func (e *Engine) onArrivalConfirmation(ctx context.Context, t *conversation.Turn) error {
	data := t.Data()
	var (
		action  Action
		orderID = data.OrderID
	)
	if t.Event.ButtonID != "" {
		a, id, ok := ParsePayload(t.Event.ButtonID)
		if !ok {
			t.Replyf(ctx, "Opção inválida. Digite 1 para confirmar presença ou 2 para reagendar.")
			return nil
		}
		action = a
		if id != 0 {
			orderID = id
		}
	} else {
		switch t.Event.Choice() {
		case "1":
			action = ActionConfirmPresence
		case "2":
			action = ActionReschedule
		}
	}
	if action != ActionConfirmPresence && action != ActionReschedule {
		t.Replyf(ctx, "Opção inválida. Digite 1 para confirmar presença ou 2 para reagendar.")
		return nil
	}

	order, err := e.Store.GetOrderDetail(ctx, orderID)
	if apperr.Is(err, apperr.KindNotFound) || (err == nil && order.ClientID != customerID(t)) {
		t.End()
		t.Replyf(ctx, "Visita não encontrada.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load order %d: %w", orderID, err)
	}

	if action == ActionConfirmPresence {
		t.End()
		if order.Status != domain.OrderArrived {
			t.Replyf(ctx, "Esta visita já foi atualizada pelo técnico.")
			return nil
		}
		t.SendTo(ctx, order.TechnicianAddress, conversation.Text("✅ %s confirmou presença (ordem #%d).", order.ClientName, order.ID))
		t.Replyf(ctx, "Obrigado! O técnico já está no local.")
		return nil
	}

	updated, ok, err := e.transition(ctx, t, order, domain.OrderRescheduled, "Reagendamento solicitado pelo cliente")
	t.End()
	if err != nil || !ok {
		return err
	}
	t.SendTo(ctx, updated.TechnicianAddress, conversation.Text("📅 %s pediu para reagendar a ordem #%d. Você está liberado para a próxima ordem.", updated.ClientName, updated.ID))
	t.Replyf(ctx, "Combinado! Sua visita será reagendada e nossa equipe entrará em contato para combinar uma nova data.")
	return nil
}

func customerID(t *conversation.Turn) int64 {
	if id := t.Data().ClientID; id != 0 {
		return id
	}
	if t.Identity.Client != nil {
		return t.Identity.Client.ID
	}
	return 0
}
