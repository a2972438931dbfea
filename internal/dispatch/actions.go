package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"dispatch_bot_backend/internal/conversation"
	"dispatch_bot_backend/internal/domain"
	"dispatch_bot_backend/internal/maps"
	"dispatch_bot_backend/internal/rating"
	"dispatch_bot_backend/internal/session"
)

func (e *Engine) navigate(ctx context.Context, t *conversation.Turn, order domain.OrderDetail, location string) error {
	if order.Status != domain.OrderAssigned && order.Status != domain.OrderEnRoute {
		t.Replyf(ctx, "A navegação só está disponível para ordens atribuídas ou a caminho (a ordem #%d está \"%s\").", order.ID, order.Status.Label())
		return nil
	}
	if strings.TrimSpace(location) == "" {
		t.Start(AwaitingTechnicianLocation, session.Data{OrderID: order.ID, PendingNavigate: true})
		t.Replyf(ctx, "📍 Para calcular a rota, envie sua localização atual (endereço ou ponto de referência) ou use /localizacao <endereço>.")
		return nil
	}

	route := e.Router.Route(ctx, location, order.ServiceAddress)
	t.End()
	if route.Degraded() {
		t.Replyf(ctx, "Não foi possível calcular a rota agora. Abra o mapa com o endereço do cliente:\n%s", route.MapLink)
		return nil
	}

	if order.Status == domain.OrderAssigned {
		updated, ok, err := e.transition(ctx, t, order, domain.OrderEnRoute, "")
		if err != nil || !ok {
			return err
		}
		order = updated
		t.SendTo(ctx, order.ClientAddress, conversation.Text("🚗 O técnico %s está a caminho!\nChegada prevista: %s (%s).",
			order.TechnicianName, e.local(route.ETA).Format("15:04"), route.DurationText))
	}

	t.Reply(ctx, conversation.Buttons("Rota", routeSummary(order, route, e.local(route.ETA).Format("15:04")), button(ActionArrived, order.ID, "Cheguei ao local")))
	return nil
}

func routeSummary(order domain.OrderDetail, route maps.Route, eta string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🗺️ Rota para a ordem #%d\nDestino: %s\nDistância: %s\nTempo estimado: %s\nChegada prevista: %s",
		order.ID, order.ServiceAddress, route.DistanceText, route.DurationText, eta)
	if len(route.Steps) > 0 {
		b.WriteString("\n\nPassos:")
		for i, step := range route.Steps {
			if i == maxRouteSteps {
				fmt.Fprintf(&b, "\n... e mais %d passos", len(route.Steps)-maxRouteSteps)
				break
			}
			fmt.Fprintf(&b, "\n%d. %s", i+1, step)
		}
	}
	fmt.Fprintf(&b, "\n\nAbrir no Google Maps: %s", route.MapLink)
	return b.String()
}

func (e *Engine) arrived(ctx context.Context, t *conversation.Turn, order domain.OrderDetail) error {
	updated, ok, err := e.transition(ctx, t, order, domain.OrderArrived, "")
	if err != nil || !ok {
		return err
	}

	t.SendTo(ctx, updated.ClientAddress, conversation.Buttons("Técnico no local",
		fmt.Sprintf("📍 O técnico %s chegou ao seu endereço. Você confirma que está no local?", updated.TechnicianName),
		button(ActionConfirmPresence, updated.ID, "Confirmar presença"),
		button(ActionReschedule, updated.ID, "Reagendar"),
	))
	notice := "O cliente foi avisado."
	if err := e.Sessions.Seed(ctx, updated.ClientAddress, session.Session{
		State: AwaitingArrivalConfirmation,
		Data:  session.Data{ClientID: updated.ClientID, OrderID: updated.ID},
	}); err != nil {
		t.Log(ctx).Warn("arrival confirmation not seeded", "order_id", updated.ID, "error", err)
		notice = "O cliente foi avisado, mas a resposta dele só será registrada se usar os botões da mensagem."
	}

	t.End()
	t.Reply(ctx, conversation.Buttons("Chegada registrada", fmt.Sprintf("Chegada à ordem #%d registrada. %s", updated.ID, notice), ActionButtons(updated)...))
	return nil
}

func (e *Engine) startService(ctx context.Context, t *conversation.Turn, order domain.OrderDetail) error {
	updated, ok, err := e.transition(ctx, t, order, domain.OrderInProgress, "")
	if err != nil || !ok {
		return err
	}
	t.SendTo(ctx, updated.ClientAddress, conversation.Text("🔧 O técnico %s iniciou o serviço.", updated.TechnicianName))
	t.Start(AwaitingTechnicianPhotos, session.Data{OrderID: updated.ID, PhotoType: domain.PhotoBefore})
	t.Replyf(ctx, "Serviço iniciado! 📸 Envie as fotos de ANTES do serviço. Quando terminar, digite 'pronto'.")
	return nil
}

func (e *Engine) requestCompletion(ctx context.Context, t *conversation.Turn, order domain.OrderDetail) error {
	if order.Status != domain.OrderInProgress {
		t.Replyf(ctx, "Só é possível concluir ordens em andamento (a ordem #%d está \"%s\").", order.ID, order.Status.Label())
		return nil
	}
	counts, err := e.Store.PhotoCounts(ctx, order.ID)
	if err != nil {
		return fmt.Errorf("photo counts: %w", err)
	}
	if counts[domain.PhotoAfter] == 0 {
		t.Reply(ctx, conversation.Buttons("Fotos pendentes",
			fmt.Sprintf("Envie ao menos uma foto de DEPOIS antes de concluir a ordem #%d.", order.ID),
			button(ActionPhotoAfter, order.ID, "Enviar fotos de depois")))
		return nil
	}
	t.Start(AwaitingServiceDescription, session.Data{OrderID: order.ID})
	t.Replyf(ctx, "Descreva o serviço realizado (mínimo %d caracteres).", minDescriptionLen)
	return nil
}

func (e *Engine) onServiceDescription(ctx context.Context, t *conversation.Turn) error {
	description := t.Event.Body()
	if utf8.RuneCountInString(description) < minDescriptionLen {
		t.Replyf(ctx, "A descrição deve ter pelo menos %d caracteres. Descreva o serviço realizado.", minDescriptionLen)
		return nil
	}
	order, ok, err := e.sessionOrder(ctx, t)
	if err != nil || !ok {
		return err
	}

	updated, ok, err := e.transition(ctx, t, order, domain.OrderCompleted, "Serviço realizado: "+description)
	t.End()
	if err != nil || !ok {
		return err
	}

	lead := fmt.Sprintf("✅ Serviço concluído!\nTécnico: %s\nServiço: %s\nDescrição: %s", updated.TechnicianName, updated.Specialty, description)
	rc := session.Rating{Type: rating.TypeServiceVisit, AppointmentID: &updated.AppointmentID, ServiceOrderID: &updated.ID}
	if err := e.Rating.PromptOther(ctx, t, e.Sessions, updated.ClientAddress, updated.ClientID, rating.AwaitingServiceRating, rc, lead); err != nil {
		t.Log(ctx).Warn("service rating prompt not seeded", "order_id", updated.ID, "error", err)
	}

	pending, err := e.Store.ActiveOrders(ctx, updated.TechnicianID)
	if err != nil {
		return fmt.Errorf("active orders: %w", err)
	}
	t.Replyf(ctx, "✅ Ordem #%d concluída! Você tem %d ordem(ns) pendente(s).", updated.ID, len(pending))
	return nil
}

func (e *Engine) requestRejection(ctx context.Context, t *conversation.Turn, order domain.OrderDetail) error {
	if !domain.CanTransition(order.Status, domain.OrderRejected) {
		t.Replyf(ctx, "Só é possível recusar ordens ainda não iniciadas (a ordem #%d está \"%s\").", order.ID, order.Status.Label())
		return nil
	}
	t.Start(AwaitingRejectionReason, session.Data{OrderID: order.ID})
	t.Replyf(ctx, "Informe o motivo da recusa da ordem #%d (mínimo %d caracteres).", order.ID, minReasonLen)
	return nil
}

func (e *Engine) onRejectionReason(ctx context.Context, t *conversation.Turn) error {
	reason := t.Event.Body()
	if utf8.RuneCountInString(reason) < minReasonLen {
		t.Replyf(ctx, "O motivo deve ter pelo menos %d caracteres.", minReasonLen)
		return nil
	}
	order, ok, err := e.sessionOrder(ctx, t)
	if err != nil || !ok {
		return err
	}

	updated, ok, err := e.transition(ctx, t, order, domain.OrderRejected, "Recusada pelo técnico: "+reason)
	t.End()
	if err != nil || !ok {
		return err
	}
	t.SendTo(ctx, updated.ClientAddress, conversation.Text("⚠️ O técnico designado não poderá atender sua visita de %s. Nossa equipe vai entrar em contato para reagendar.", updated.Specialty))
	t.Replyf(ctx, "Ordem #%d recusada.", updated.ID)
	return nil
}

func (e *Engine) clientAbsent(ctx context.Context, t *conversation.Turn, order domain.OrderDetail) error {
	note := "Cliente ausente em " + domain.FormatDateTime(e.local(e.Now()))
	updated, ok, err := e.transition(ctx, t, order, domain.OrderClientAbsent, note)
	if err != nil || !ok {
		return err
	}
	t.SendTo(ctx, updated.ClientAddress, conversation.Text("O técnico %s esteve no seu endereço, mas não encontrou ninguém. Vamos combinar uma nova visita.", updated.TechnicianName))
	t.Start(AwaitingRescheduleDecision, session.Data{OrderID: updated.ID})
	t.Reply(ctx, conversation.Buttons("Cliente ausente", fmt.Sprintf("Ausência registrada na ordem #%d. Deseja reagendar a visita?", updated.ID), rescheduleOptions(updated.ID)...))
	return nil
}

func rescheduleOptions(orderID int64) []conversation.Option {
	return []conversation.Option{
		button(ActionRescheduleYes, orderID, "Reagendar"),
		button(ActionRescheduleNo, orderID, "Cancelar visita"),
	}
}

func (e *Engine) onRescheduleDecision(ctx context.Context, t *conversation.Turn) error {
	id, ok := conversation.Pick(t.Event.Choice(), rescheduleOptions(t.Data().OrderID)...)
	if !ok {
		t.Replyf(ctx, "Opção inválida. Digite 1 para reagendar ou 2 para cancelar a visita.")
		return nil
	}
	action, _, _ := ParsePayload(id)
	order, ok, err := e.sessionOrder(ctx, t)
	if err != nil || !ok {
		return err
	}
	target := domain.OrderRescheduled
	if action == ActionRescheduleNo {
		target = domain.OrderCancelled
	}
	return e.decideReschedule(ctx, t, order, target)
}

func (e *Engine) decideReschedule(ctx context.Context, t *conversation.Turn, order domain.OrderDetail, target domain.OrderStatus) error {
	updated, ok, err := e.transition(ctx, t, order, target, "")
	t.End()
	if err != nil || !ok {
		return err
	}

	if target == domain.OrderCancelled {
		e.deleteCalendarEvent(ctx, t, updated.AppointmentID)
		t.SendTo(ctx, updated.ClientAddress, conversation.Text("❌ Sua visita de %s foi cancelada por ausência. Se precisar, faça um novo agendamento pelo menu.", updated.Specialty))
	} else {
		t.SendTo(ctx, updated.ClientAddress, conversation.Text("📅 Sua visita de %s será reagendada. Nossa equipe entrará em contato para combinar uma nova data.", updated.Specialty))
	}
	t.Replyf(ctx, "Ordem #%d: %s.", updated.ID, updated.Status.Label())
	return nil
}

func (e *Engine) deleteCalendarEvent(ctx context.Context, t *conversation.Turn, appointmentID int64) {
	if e.Calendar == nil {
		return
	}
	appt, err := e.Store.GetAppointment(ctx, appointmentID)
	if err != nil {
		t.Log(ctx).Warn("appointment unavailable for calendar cleanup", "appointment_id", appointmentID, "error", err)
		return
	}
	if appt.CalendarEventID == "" {
		return
	}
	if err := e.Calendar.DeleteEvent(ctx, appt.CalendarEventID); err != nil {
		t.Log(ctx).Warn("calendar event not deleted", "appointment_id", appointmentID, "error", err)
	}
}

// sessionOrder reloads the order the technician's session points at.
func (e *Engine) sessionOrder(ctx context.Context, t *conversation.Turn) (domain.OrderDetail, bool, error) {
	orderID := t.Data().OrderID
	order, err := e.technicianOrder(ctx, t, orderID)
	if errors.Is(err, errOrderNotFound) {
		t.End()
		t.Replyf(ctx, "Ordem #%d não encontrada.", orderID)
		return order, false, nil
	}
	return order, err == nil, err
}
