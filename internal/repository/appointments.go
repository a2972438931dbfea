package repository

import (
	"context"
	"fmt"

	"dispatch_bot_backend/internal/domain"
	"dispatch_bot_backend/platform/apperr"

	"github.com/jackc/pgx/v5"
)

const appointmentColumns = `id, client_id, specialty, problem_description, requested_datetime_text,
	scheduled_datetime, status, calendar_event_id`

func scanAppointment(row interface{ Scan(...any) error }) (domain.Appointment, error) {
	var a domain.Appointment
	err := row.Scan(
		&a.ID,
		&a.ClientID,
		&a.Specialty,
		&a.ProblemDescription,
		&a.RequestedText,
		&a.ScheduledAt,
		&a.Status,
		&a.CalendarEventID,
	)
	return a, err
}

// CreateAppointment books a visit and points the client at it.
func (r *Repository) CreateAppointment(ctx context.Context, params domain.NewAppointment) (domain.Appointment, error) {
	var appt domain.Appointment
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		var err error
		appt, err = scanAppointment(tx.QueryRow(ctx, `
			INSERT INTO appointments (client_id, specialty, problem_description, requested_datetime_text, scheduled_datetime, calendar_event_id)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING `+appointmentColumns,
			params.ClientID, params.Specialty, params.ProblemDescription, params.RequestedText, params.ScheduledAt, params.CalendarEventID))
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			UPDATE clients
			SET last_appointment_id = $2, last_interaction_type = $3, last_interaction_at = now(), updated_at = now()
			WHERE id = $1
		`, params.ClientID, appt.ID, domain.InteractionBooking)
		return err
	})
	if err != nil {
		return appt, fmt.Errorf("create appointment: %w", err)
	}
	return appt, nil
}

func (r *Repository) GetAppointment(ctx context.Context, id int64) (domain.Appointment, error) {
	a, err := scanAppointment(r.pool.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id))
	if err != nil {
		return a, notFound(err, "agendamento não encontrado")
	}
	return a, nil
}

// UpcomingAppointments lists the client's scheduled visits from now on,
// soonest first.
func (r *Repository) UpcomingAppointments(ctx context.Context, clientID int64) ([]domain.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE client_id = $1 AND status = 'scheduled' AND scheduled_datetime >= now()
		ORDER BY scheduled_datetime ASC
	`, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.Appointment, 0)
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return items, nil
}

// CancelAppointment cancels a scheduled appointment owned by clientID along
// with any order still open for it.
func (r *Repository) CancelAppointment(ctx context.Context, clientID, appointmentID int64) (domain.Appointment, error) {
	var appt domain.Appointment
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		var err error
		appt, err = scanAppointment(tx.QueryRow(ctx, `
			UPDATE appointments SET status = 'cancelled'
			WHERE id = $1 AND client_id = $2 AND status = 'scheduled'
			RETURNING `+appointmentColumns, appointmentID, clientID))
		if err != nil {
			return notFound(err, "agendamento não encontrado ou já cancelado")
		}
		if err := cancelOpenOrders(ctx, tx, appointmentID); err != nil {
			return err
		}
		return recordInteraction(ctx, tx, clientID, domain.InteractionCancelation)
	})
	if err != nil {
		if apperr.GetKind(err) != apperr.KindUnknown {
			return appt, err
		}
		return appt, fmt.Errorf("cancel appointment: %w", err)
	}
	return appt, nil
}

func cancelOpenOrders(ctx context.Context, tx pgx.Tx, appointmentID int64) error {
	rows, err := tx.Query(ctx, `
		UPDATE service_orders SET status = 'cancelled', updated_at = now()
		WHERE appointment_id = $1 AND status NOT IN ('completed', 'rejected', 'rescheduled', 'cancelled')
		RETURNING technician_id
	`, appointmentID)
	if err != nil {
		return err
	}
	var techs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		techs = append(techs, id)
	}
	rows.Close()
	if rows.Err() != nil {
		return rows.Err()
	}
	for _, id := range techs {
		if err := releaseTechnician(ctx, tx, id); err != nil {
			return err
		}
	}
	return nil
}
