package repository

import (
	"context"
	"fmt"

	"dispatch_bot_backend/internal/domain"
	"dispatch_bot_backend/platform/apperr"
	"dispatch_bot_backend/platform/db"
)

func setTechnicianStatus(ctx context.Context, q db.DBTX, id int64, status domain.StaffStatus) error {
	_, err := q.Exec(ctx, `UPDATE technicians SET status = $2, last_activity = now() WHERE id = $1`, id, string(status))
	return err
}

// releaseTechnician marks the technician available unless another order is
// still on the road or on site.
func releaseTechnician(ctx context.Context, q db.DBTX, id int64) error {
	_, err := q.Exec(ctx, `
		UPDATE technicians SET status = 'available', last_activity = now()
		WHERE id = $1 AND NOT EXISTS (
			SELECT 1 FROM service_orders
			WHERE technician_id = $1 AND status IN ('en_route', 'arrived', 'in_progress')
		)
	`, id)
	return err
}

func (r *Repository) SetTechnicianStatus(ctx context.Context, id int64, status domain.StaffStatus) error {
	return setTechnicianStatus(ctx, r.pool, id, status)
}

func (r *Repository) SetTechnicianLocation(ctx context.Context, id int64, location string) error {
	_, err := r.pool.Exec(ctx, `UPDATE technicians SET current_location = $2, last_activity = now() WHERE id = $1`, id, location)
	return err
}

func (r *Repository) SetAgentStatus(ctx context.Context, id int64, status domain.StaffStatus) error {
	_, err := r.pool.Exec(ctx, `UPDATE attendants SET status = $2, last_activity = now() WHERE id = $1`, id, string(status))
	return err
}

// AvailableAgents lists agents ready to take tickets.
func (r *Repository) AvailableAgents(ctx context.Context) ([]domain.Staff, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, whatsapp_number, status, last_activity
		FROM attendants
		WHERE status = 'available'
		ORDER BY last_activity ASC NULLS FIRST
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.Staff, 0)
	for rows.Next() {
		var s domain.Staff
		if err := rows.Scan(&s.ID, &s.Name, &s.Address, &s.Status, &s.LastActivity); err != nil {
			return nil, err
		}
		items = append(items, s)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return items, nil
}

// AddStaff registers an agent or technician.
func (r *Repository) AddStaff(ctx context.Context, role domain.Role, name, address string) (domain.Staff, error) {
	table, err := staffTable(role)
	if err != nil {
		return domain.Staff{}, err
	}
	s := domain.Staff{Name: name, Address: address, Status: domain.StaffOffline}
	err = r.pool.QueryRow(ctx, `INSERT INTO `+table+` (whatsapp_number, name) VALUES ($1, $2) RETURNING id`, address, name).Scan(&s.ID)
	if isUniqueViolation(err) {
		return s, apperr.Conflict(fmt.Sprintf("%s já cadastrado", address))
	}
	return s, err
}

// SetStaffStatus sets the status of the staff member with the given address.
func (r *Repository) SetStaffStatus(ctx context.Context, role domain.Role, address string, status domain.StaffStatus) error {
	table, err := staffTable(role)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `UPDATE `+table+` SET status = $2, last_activity = now() WHERE whatsapp_number = $1`, address, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("cadastro não encontrado")
	}
	return nil
}

func staffTable(role domain.Role) (string, error) {
	switch role {
	case domain.RoleAgent:
		return "attendants", nil
	case domain.RoleTechnician:
		return "technicians", nil
	default:
		return "", apperr.Validation("papel inválido: " + role.String())
	}
}
