package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"dispatch_bot_backend/internal/conversation"
	"dispatch_bot_backend/internal/domain"
)

const helpText = "🛠️ *Comandos do técnico*\n" +
	"/ordens - suas ordens ativas\n" +
	"/ordem <número> - detalhes e ações de uma ordem\n" +
	"/localizacao <endereço> - atualiza sua localização\n" +
	"/status available|busy|offline - altera sua disponibilidade\n" +
	"/ajuda - esta mensagem"

// HandleCommand runs a technician command. It reports false when name is not
// a dispatch command.
func (e *Engine) HandleCommand(ctx context.Context, t *conversation.Turn, name, args string) (bool, error) {
	switch name {
	case "/status":
		return true, e.cmdStatus(ctx, t, args)
	case "/ordens":
		return true, e.cmdOrders(ctx, t)
	case "/ordem":
		return true, e.cmdOrder(ctx, t, args)
	case "/localizacao":
		return true, e.onLocation(ctx, t, args)
	case "/ajuda":
		t.Replyf(ctx, helpText)
		return true, nil
	default:
		return false, nil
	}
}

func (e *Engine) cmdStatus(ctx context.Context, t *conversation.Turn, args string) error {
	status, ok := domain.ParseStaffStatus(strings.ToLower(strings.TrimSpace(args)))
	if !ok {
		t.Replyf(ctx, "Uso: /status available|busy|offline")
		return nil
	}
	if err := e.Store.SetTechnicianStatus(ctx, t.Identity.Technician.ID, status); err != nil {
		return fmt.Errorf("set technician status: %w", err)
	}
	t.Replyf(ctx, "Status atualizado para: %s", status)
	return nil
}

func (e *Engine) cmdOrders(ctx context.Context, t *conversation.Turn) error {
	orders, err := e.Store.ActiveOrders(ctx, t.Identity.Technician.ID)
	if err != nil {
		return fmt.Errorf("active orders: %w", err)
	}
	if len(orders) == 0 {
		t.Replyf(ctx, "Você não tem ordens ativas no momento.")
		return nil
	}
	var b strings.Builder
	b.WriteString("📋 *Suas ordens ativas*")
	for _, o := range orders {
		fmt.Fprintf(&b, "\n#%d - %s - %s - %s (%s)", o.ID, o.Specialty, o.ClientName, domain.FormatDateTime(e.local(o.ScheduledAt)), o.Status.Label())
	}
	b.WriteString("\n\nUse /ordem <número> para ver detalhes.")
	t.Reply(ctx, conversation.Message{Text: b.String()})
	return nil
}

func (e *Engine) cmdOrder(ctx context.Context, t *conversation.Turn, args string) error {
	id, err := strconv.ParseInt(strings.TrimPrefix(strings.TrimSpace(args), "#"), 10, 64)
	if err != nil || id <= 0 {
		t.Replyf(ctx, "Uso: /ordem <número>")
		return nil
	}
	order, err := e.technicianOrder(ctx, t, id)
	if errors.Is(err, errOrderNotFound) {
		t.Replyf(ctx, "Ordem #%d não encontrada.", id)
		return nil
	}
	if err != nil {
		return err
	}
	counts, err := e.Store.PhotoCounts(ctx, order.ID)
	if err != nil {
		return fmt.Errorf("photo counts: %w", err)
	}

	body := orderDetails(order, domain.FormatDateTime(e.local(order.ScheduledAt))) +
		fmt.Sprintf("\nFotos: antes %d, embalagem %d, depois %d", counts[domain.PhotoBefore], counts[domain.PhotoPackaging], counts[domain.PhotoAfter])
	if buttons := ActionButtons(order); len(buttons) > 0 {
		t.Reply(ctx, conversation.Buttons(fmt.Sprintf("Ordem #%d", order.ID), body, buttons...))
		return nil
	}
	t.Reply(ctx, conversation.Message{Text: body})
	return nil
}

func orderDetails(o domain.OrderDetail, scheduled string) string {
	s := fmt.Sprintf("📋 *Ordem #%d* - %s\nCliente: %s\nEndereço: %s\nServiço: %s\nProblema: %s\nAgendado para: %s",
		o.ID, o.Status.Label(), o.ClientName, o.ServiceAddress, o.Specialty, o.ProblemDescription, scheduled)
	if o.Notes != "" {
		s += "\nObservações: " + o.Notes
	}
	return s
}

// JobCard is the message a technician receives when an order is assigned.
func (e *Engine) JobCard(o domain.OrderDetail) conversation.Message {
	body := "🔔 *Nova ordem de serviço*\n" + orderDetails(o, domain.FormatDateTime(e.local(o.ScheduledAt)))
	return conversation.Buttons(fmt.Sprintf("Ordem #%d", o.ID), body, ActionButtons(o)...)
}

// onLocation stores the technician's location and resumes a pending navigation.
func (e *Engine) onLocation(ctx context.Context, t *conversation.Turn, text string) error {
	location := strings.TrimSpace(text)
	if utf8.RuneCountInString(location) < minLocationLen {
		t.Replyf(ctx, "Informe sua localização com pelo menos %d caracteres. Ex: /localizacao Rua XV de Novembro, 100, Centro", minLocationLen)
		return nil
	}
	tech := t.Identity.Technician
	if err := e.Store.SetTechnicianLocation(ctx, tech.ID, location); err != nil {
		return fmt.Errorf("set technician location: %w", err)
	}
	tech.Location = location
	t.Replyf(ctx, "📍 Localização atualizada: %s", location)

	if st, ok := t.State().(State); !ok || st != AwaitingTechnicianLocation || !t.Data().PendingNavigate {
		return nil
	}
	orderID := t.Data().OrderID
	t.End()
	order, err := e.technicianOrder(ctx, t, orderID)
	if errors.Is(err, errOrderNotFound) {
		t.Replyf(ctx, "Ordem #%d não encontrada.", orderID)
		return nil
	}
	if err != nil {
		return err
	}
	return e.navigate(ctx, t, order, location)
}
