package repository

import (
	"context"
	"errors"
	"fmt"

	"dispatch_bot_backend/internal/domain"
	"dispatch_bot_backend/platform/apperr"

	"github.com/jackc/pgx/v5"
)

const orderDetailQuery = `
	SELECT so.id, so.appointment_id, so.technician_id, so.status,
		so.departure_time, so.arrival_time, so.service_start_time, so.service_end_time,
		so.notes, so.created_at,
		c.id, c.name, c.whatsapp_number, c.address,
		a.specialty, a.problem_description, a.scheduled_datetime,
		t.name, t.whatsapp_number
	FROM service_orders so
	JOIN appointments a ON a.id = so.appointment_id
	JOIN clients c ON c.id = a.client_id
	JOIN technicians t ON t.id = so.technician_id
`

func scanOrderDetail(row interface{ Scan(...any) error }) (domain.OrderDetail, error) {
	var o domain.OrderDetail
	err := row.Scan(
		&o.ID,
		&o.AppointmentID,
		&o.TechnicianID,
		&o.Status,
		&o.DepartureTime,
		&o.ArrivalTime,
		&o.ServiceStartTime,
		&o.ServiceEndTime,
		&o.Notes,
		&o.CreatedAt,
		&o.ClientID,
		&o.ClientName,
		&o.ClientAddress,
		&o.ServiceAddress,
		&o.Specialty,
		&o.ProblemDescription,
		&o.ScheduledAt,
		&o.TechnicianName,
		&o.TechnicianAddress,
	)
	return o, err
}

// CreateServiceOrder assigns a technician to a scheduled appointment.
func (r *Repository) CreateServiceOrder(ctx context.Context, appointmentID, technicianID int64) (domain.OrderDetail, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO service_orders (appointment_id, technician_id)
		SELECT a.id, $2 FROM appointments a WHERE a.id = $1 AND a.status = 'scheduled'
		RETURNING id
	`, appointmentID, technicianID).Scan(&id)
	if isUniqueViolation(err) {
		return domain.OrderDetail{}, apperr.Conflict("agendamento já possui ordem ativa")
	}
	if err != nil {
		return domain.OrderDetail{}, notFound(err, "agendamento não encontrado ou cancelado")
	}
	return r.GetOrderDetail(ctx, id)
}

func (r *Repository) GetOrderDetail(ctx context.Context, id int64) (domain.OrderDetail, error) {
	o, err := scanOrderDetail(r.pool.QueryRow(ctx, orderDetailQuery+` WHERE so.id = $1`, id))
	if err != nil {
		return o, notFound(err, "ordem não encontrada")
	}
	return o, nil
}

// ActiveOrders lists the technician's non-terminal orders by visit time.
func (r *Repository) ActiveOrders(ctx context.Context, technicianID int64) ([]domain.OrderDetail, error) {
	rows, err := r.pool.Query(ctx, orderDetailQuery+`
		WHERE so.technician_id = $1
		  AND so.status NOT IN ('completed', 'rejected', 'rescheduled', 'cancelled')
		ORDER BY a.scheduled_datetime ASC
	`, technicianID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.OrderDetail, 0)
	for rows.Next() {
		o, err := scanOrderDetail(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, o)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return items, nil
}

// TransitionOrder applies t if the order is still in t.From and the move is
// legal. Timestamps and the technician's availability follow the target
// status. Completion additionally requires at least one after-photo.
func (r *Repository) TransitionOrder(ctx context.Context, t domain.OrderTransition) (domain.OrderDetail, error) {
	if !domain.CanTransition(t.From, t.To) {
		return domain.OrderDetail{}, apperr.Validation(fmt.Sprintf("transição inválida: %s -> %s", t.From, t.To))
	}

	err := r.withTx(ctx, func(tx pgx.Tx) error {
		if t.To == domain.OrderCompleted {
			var after int
			if err := tx.QueryRow(ctx, `
				SELECT count(*) FROM service_photos WHERE service_order_id = $1 AND photo_type = 'after'
			`, t.OrderID).Scan(&after); err != nil {
				return err
			}
			if after == 0 {
				return apperr.Validation("envie ao menos uma foto de depois antes de concluir")
			}
		}

		var technicianID, appointmentID int64
		err := tx.QueryRow(ctx, `
			UPDATE service_orders SET
				status = $3,
				departure_time = CASE WHEN $3 = 'en_route' THEN now() ELSE departure_time END,
				arrival_time = CASE WHEN $3 = 'arrived' THEN now() ELSE arrival_time END,
				service_start_time = CASE WHEN $3 = 'in_progress' THEN now() ELSE service_start_time END,
				service_end_time = CASE WHEN $3 = 'completed' THEN now() ELSE service_end_time END,
				notes = CASE WHEN $4 = '' THEN notes WHEN notes = '' THEN $4 ELSE notes || E'\n' || $4 END,
				updated_at = now()
			WHERE id = $1 AND status = $2
			RETURNING technician_id, appointment_id
		`, t.OrderID, string(t.From), string(t.To), t.Note).Scan(&technicianID, &appointmentID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperr.Conflict("a ordem mudou de status, consulte novamente")
			}
			return err
		}

		switch t.To {
		case domain.OrderEnRoute, domain.OrderArrived, domain.OrderInProgress:
			return setTechnicianStatus(ctx, tx, technicianID, domain.StaffBusy)
		case domain.OrderCancelled:
			if _, err := tx.Exec(ctx, `UPDATE appointments SET status = 'cancelled' WHERE id = $1`, appointmentID); err != nil {
				return err
			}
			return releaseTechnician(ctx, tx, technicianID)
		case domain.OrderCompleted, domain.OrderRejected, domain.OrderRescheduled:
			return releaseTechnician(ctx, tx, technicianID)
		}
		return nil
	})
	if err != nil {
		if apperr.GetKind(err) != apperr.KindUnknown {
			return domain.OrderDetail{}, err
		}
		return domain.OrderDetail{}, fmt.Errorf("transition order %d: %w", t.OrderID, err)
	}
	return r.GetOrderDetail(ctx, t.OrderID)
}

// AddServicePhoto records an uploaded photo.
func (r *Repository) AddServicePhoto(ctx context.Context, p domain.ServicePhoto) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO service_photos (service_order_id, photo_type, photo_path, description)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, p.ServiceOrderID, string(p.Type), p.Path, p.Description).Scan(&id)
	return id, err
}

// PhotoCounts returns the number of photos per type for an order.
func (r *Repository) PhotoCounts(ctx context.Context, orderID int64) (map[domain.PhotoType]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT photo_type, count(*) FROM service_photos WHERE service_order_id = $1 GROUP BY photo_type
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.PhotoType]int, 3)
	for rows.Next() {
		var (
			kind string
			n    int
		)
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		counts[domain.PhotoType(kind)] = n
	}
	return counts, rows.Err()
}
