package repository

import (
	"context"
	"errors"
	"fmt"

	"dispatch_bot_backend/internal/domain"

	"github.com/jackc/pgx/v5"
)

// Identify classifies an address with one lookup across agents, technicians
// and clients. When a number is registered in more than one table the agent
// row wins, then the technician row.
func (r *Repository) Identify(ctx context.Context, address string) (domain.Identity, error) {
	id := domain.Identity{Role: domain.RoleCustomer, Address: address}

	var (
		kind     string
		rowID    int64
		name     string
		status   string
		location string
	)
	err := r.pool.QueryRow(ctx, `
		SELECT kind, id, name, status, location FROM (
			SELECT 1 AS rank, 'agent' AS kind, id, name, status, '' AS location
			FROM attendants WHERE whatsapp_number = $1
			UNION ALL
			SELECT 2, 'technician', id, name, status, current_location
			FROM technicians WHERE whatsapp_number = $1
			UNION ALL
			SELECT 3, 'customer', id, name, '', ''
			FROM clients WHERE whatsapp_number = $1
		) who
		ORDER BY rank
		LIMIT 1
	`, address).Scan(&kind, &rowID, &name, &status, &location)
	if errors.Is(err, pgx.ErrNoRows) {
		return id, nil
	}
	if err != nil {
		return id, fmt.Errorf("identify %s: %w", address, err)
	}

	switch kind {
	case "agent":
		id.Role = domain.RoleAgent
		id.Agent = &domain.Staff{ID: rowID, Name: name, Address: address, Status: domain.StaffStatus(status)}
	case "technician":
		id.Role = domain.RoleTechnician
		id.Technician = &domain.Staff{ID: rowID, Name: name, Address: address, Status: domain.StaffStatus(status), Location: location}
	default:
		client, err := r.GetClient(ctx, rowID)
		if err != nil {
			return id, err
		}
		id.Client = &client
	}
	return id, nil
}

// TouchStaff records activity for the staff member behind id.
func (r *Repository) TouchStaff(ctx context.Context, id domain.Identity) error {
	switch id.Role {
	case domain.RoleAgent:
		_, err := r.pool.Exec(ctx, `UPDATE attendants SET last_activity = now() WHERE id = $1`, id.Agent.ID)
		return err
	case domain.RoleTechnician:
		_, err := r.pool.Exec(ctx, `UPDATE technicians SET last_activity = now() WHERE id = $1`, id.Technician.ID)
		return err
	}
	return nil
}
