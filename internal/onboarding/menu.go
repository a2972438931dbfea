package onboarding

import (
	"context"
	"fmt"
	"strings"

	"dispatch_bot_backend/internal/conversation"
	"dispatch_bot_backend/internal/domain"
	"dispatch_bot_backend/internal/session"
	"dispatch_bot_backend/platform/apperr"
)

var menuOptions = []conversation.Option{
	{ID: "finance", Label: "Financeiro (PIX, Boletos)"},
	{ID: "booking", Label: "Agendar Serviço Técnico"},
	{ID: "support", Label: "Dúvidas / Falar com Atendente"},
	{ID: "info", Label: "Informações sobre Serviços"},
	{ID: "cancel", Label: "Cancelar Agendamento"},
}

// ShowMenu sends the main menu and resets the session to the menu choice,
// keeping only the customer profile.
func (e *Engine) ShowMenu(ctx context.Context, t *conversation.Turn, clientID int64, name, address string) error {
	t.Start(AwaitingMenuChoice, session.Data{ClientID: clientID, Name: name, Address: address})
	greeting := "Como posso te ajudar hoje?"
	if name != "" {
		greeting = fmt.Sprintf("Olá %s, como posso te ajudar hoje?", name)
	}
	t.Reply(ctx, conversation.Buttons("Menu principal", greeting, menuOptions...))
	return nil
}

func (e *Engine) onMenuChoice(ctx context.Context, t *conversation.Turn) error {
	choice, ok := conversation.Pick(t.Event.Choice(), menuOptions...)
	if !ok {
		t.Replyf(ctx, "Opção inválida. Por favor, digite o número de uma das opções do menu.")
		return nil
	}

	data := t.Data()
	var kind string
	switch choice {
	case "finance":
		kind = domain.InteractionFinance
	case "booking":
		kind = domain.InteractionBooking
	case "support":
		kind = domain.InteractionSupport
	case "info":
		kind = domain.InteractionInfo
	case "cancel":
		kind = domain.InteractionCancelation
	}
	if err := e.Store.RecordInteraction(ctx, data.ClientID, kind); err != nil {
		return fmt.Errorf("record interaction: %w", err)
	}

	switch choice {
	case "finance":
		return e.Finance.Start(ctx, t)
	case "booking":
		return e.startBooking(ctx, t)
	case "support":
		return e.Support.Start(ctx, t)
	case "info":
		return e.startInfo(ctx, t)
	default:
		return e.startCancel(ctx, t)
	}
}

func (e *Engine) startInfo(ctx context.Context, t *conversation.Turn) error {
	services := e.Catalog.Services()
	if len(services) == 0 {
		t.Replyf(ctx, "No momento não há serviços cadastrados. Um atendente pode ajudar pela opção 3 do menu.")
		data := t.Data()
		return e.ShowMenu(ctx, t, data.ClientID, data.Name, data.Address)
	}

	var b strings.Builder
	b.WriteString("Sobre qual serviço você gostaria de informações?\n")
	for i, s := range services {
		fmt.Fprintf(&b, "\n%d. %s", i+1, s.Name)
	}
	b.WriteString("\n\nDigite o número do serviço ou '0' para voltar.")
	t.Enter(AwaitingInfoChoice)
	t.Reply(ctx, conversation.Message{Text: b.String()})
	return nil
}

func (e *Engine) onInfoChoice(ctx context.Context, t *conversation.Turn) error {
	data := t.Data()
	body := t.Event.Body()
	if body == "0" {
		return e.ShowMenu(ctx, t, data.ClientID, data.Name, data.Address)
	}

	services := e.Catalog.Services()
	i, ok := conversation.Index(body, len(services))
	if !ok {
		t.Replyf(ctx, "Opção inválida. Digite o número do serviço ou '0' para voltar.")
		return nil
	}
	t.Reply(ctx, conversation.Message{Text: services[i].Summary()})
	e.Rating.Prompt(ctx, t, data.ClientID, session.Rating{Type: domain.InteractionInfo})
	return nil
}

func (e *Engine) startCancel(ctx context.Context, t *conversation.Turn) error {
	data := t.Data()
	appts, err := e.Store.UpcomingAppointments(ctx, data.ClientID)
	if err != nil {
		return fmt.Errorf("list upcoming appointments: %w", err)
	}
	if len(appts) == 0 {
		t.Replyf(ctx, "Você não possui agendamentos futuros para cancelar.")
		return e.ShowMenu(ctx, t, data.ClientID, data.Name, data.Address)
	}

	var b strings.Builder
	b.WriteString("Seus próximos agendamentos:\n")
	for i, a := range appts {
		fmt.Fprintf(&b, "\n%d. %s - %s", i+1, a.Specialty, domain.FormatDateTime(a.ScheduledAt.In(e.Location)))
	}
	b.WriteString("\n\nDigite o número do agendamento que deseja cancelar ou '0' para voltar.")

	data.Appointments = appts
	t.Enter(AwaitingCancelChoice)
	t.Reply(ctx, conversation.Message{Text: b.String()})
	return nil
}

func (e *Engine) onCancelChoice(ctx context.Context, t *conversation.Turn) error {
	data := t.Data()
	body := t.Event.Body()
	if body == "0" {
		t.Replyf(ctx, "Cancelamento abortado.")
		return e.ShowMenu(ctx, t, data.ClientID, data.Name, data.Address)
	}

	i, ok := conversation.Index(body, len(data.Appointments))
	if !ok {
		t.Replyf(ctx, "Opção inválida. Por favor, digite o número do agendamento a ser cancelado ou '0' para voltar.")
		return nil
	}

	appt, err := e.Store.CancelAppointment(ctx, data.ClientID, data.Appointments[i].ID)
	if apperr.Is(err, apperr.KindNotFound) {
		t.Replyf(ctx, "Este agendamento já foi cancelado.")
		return e.ShowMenu(ctx, t, data.ClientID, data.Name, data.Address)
	}
	if err != nil {
		return fmt.Errorf("cancel appointment: %w", err)
	}

	if appt.CalendarEventID != "" && e.Calendar != nil {
		if err := e.Calendar.DeleteEvent(ctx, appt.CalendarEventID); err != nil {
			t.Log(ctx).Warn("calendar event not removed", "appointment_id", appt.ID, "error", err)
		}
	}

	t.Replyf(ctx, "Agendamento de %s para %s foi cancelado.", appt.Specialty, domain.FormatDateTime(appt.ScheduledAt.In(e.Location)))
	id := appt.ID
	e.Rating.Prompt(ctx, t, data.ClientID, session.Rating{Type: domain.InteractionCancelation, AppointmentID: &id})
	return nil
}
