package onboarding

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"
	"unicode/utf8"

	"dispatch_bot_backend/internal/calendar"
	"dispatch_bot_backend/internal/conversation"
	"dispatch_bot_backend/internal/domain"
	"dispatch_bot_backend/internal/session"
)

const visitDuration = time.Hour

func (e *Engine) startBooking(ctx context.Context, t *conversation.Turn) error {
	t.Enter(AwaitingSpecialty)
	t.Replyf(ctx, "Qual especialidade você precisa? (Ex: Informática, Eletricista, Encanador)")
	return nil
}

func (e *Engine) onSpecialty(ctx context.Context, t *conversation.Turn) error {
	specialty := t.Event.Body()
	if utf8.RuneCountInString(specialty) < 3 {
		t.Replyf(ctx, "Por favor, descreva a especialidade com mais detalhes.")
		return nil
	}
	t.Data().Specialty = specialty
	t.Enter(AwaitingProblemDescription)
	t.Replyf(ctx, "Entendido: %s. Agora, por favor, descreva o problema ou serviço que você precisa.", specialty)
	return nil
}

func (e *Engine) onProblemDescription(ctx context.Context, t *conversation.Turn) error {
	problem := t.Event.Body()
	if utf8.RuneCountInString(problem) < 10 {
		t.Replyf(ctx, "Por favor, forneça uma descrição mais detalhada do problema (mínimo 10 caracteres).")
		return nil
	}
	t.Data().Problem = problem
	t.Enter(AwaitingAvailability)
	t.Replyf(ctx, "Qual o melhor dia e horário para o atendimento? (Ex: 20/06 às 10:00)")
	return nil
}

func (e *Engine) onAvailability(ctx context.Context, t *conversation.Turn) error {
	text := t.Event.Body()
	if utf8.RuneCountInString(text) < 5 {
		t.Replyf(ctx, "Por favor, informe uma data e horário válidos.")
		return nil
	}

	data := t.Data()
	start, parsed := ParseAvailability(text, e.Now(), e.Location)

	var eventID string
	if e.Calendar != nil {
		id, err := e.Calendar.CreateEvent(ctx, calendar.Event{
			Summary:     fmt.Sprintf("Serviço: %s para %s", data.Specialty, data.Name),
			Description: fmt.Sprintf("Problema: %s\nCliente: %s (%s)\nEndereço: %s", data.Problem, data.Name, t.Sender(), orDefault(data.Address, "Não informado")),
			Start:       start,
			End:         start.Add(visitDuration),
		})
		if err != nil {
			t.Log(ctx).Warn("calendar event not created", "error", err)
		}
		eventID = id
	}

	appt, err := e.Store.CreateAppointment(ctx, domain.NewAppointment{
		ClientID:           data.ClientID,
		Specialty:          data.Specialty,
		ProblemDescription: data.Problem,
		RequestedText:      text,
		ScheduledAt:        start,
		CalendarEventID:    eventID,
	})
	if err != nil {
		if eventID != "" {
			if delErr := e.Calendar.DeleteEvent(ctx, eventID); delErr != nil {
				t.Log(ctx).Warn("orphan calendar event", "event_id", eventID, "error", delErr)
			}
		}
		return fmt.Errorf("create appointment: %w", err)
	}

	if e.Reminders != nil {
		if err := e.Reminders.RemindBefore(ctx, appt, t.Sender()); err != nil {
			t.Log(ctx).Warn("reminder not scheduled", "appointment_id", appt.ID, "error", err)
		}
	}

	when := domain.FormatDateTime(start.In(e.Location))
	if parsed {
		t.Replyf(ctx, "Agendamento de %s confirmado para %s. Obrigado!", data.Specialty, when)
	} else {
		t.Replyf(ctx, "Agendamento de %s solicitado para \"%s\". Reservamos %s e entraremos em contato para confirmar. Obrigado!", data.Specialty, text, when)
	}

	id := appt.ID
	e.Rating.Prompt(ctx, t, data.ClientID, session.Rating{Type: domain.InteractionBooking, AppointmentID: &id})
	return nil
}

var availabilityPattern = regexp.MustCompile(`(\d{1,2})/(\d{1,2})(?:/(\d{2,4}))?\D{0,6}?(\d{1,2})(?:[:h](\d{2})?)`)

// ParseAvailability reads "dd/mm[/yyyy] hh:mm" (also "às 14h") in loc. Without
// a year the next occurrence from now is used. When nothing parses it returns
// the next day at 09:00 and false.
func ParseAvailability(text string, now time.Time, loc *time.Location) (time.Time, bool) {
	now = now.In(loc)
	fallback := time.Date(now.Year(), now.Month(), now.Day()+1, 9, 0, 0, 0, loc)

	m := availabilityPattern.FindStringSubmatch(text)
	if m == nil {
		return fallback, false
	}

	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	hour, _ := strconv.Atoi(m[4])
	minute := 0
	if m[5] != "" {
		minute, _ = strconv.Atoi(m[5])
	}
	if month < 1 || month > 12 || day < 1 || day > 31 || hour > 23 || minute > 59 {
		return fallback, false
	}

	year := now.Year()
	explicitYear := m[3] != ""
	if explicitYear {
		year, _ = strconv.Atoi(m[3])
		if year < 100 {
			year += 2000
		}
	}

	at := time.Date(year, time.Month(month), day, hour, minute, 0, 0, loc)
	if at.Day() != day {
		return fallback, false
	}
	if !at.After(now) {
		if explicitYear {
			return fallback, false
		}
		at = at.AddDate(1, 0, 0)
	}
	return at, true
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
