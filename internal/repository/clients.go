package repository

import (
	"context"
	"fmt"

	"dispatch_bot_backend/internal/domain"
	"dispatch_bot_backend/platform/db"

	"github.com/jackc/pgx/v5"
)

const clientColumns = `id, whatsapp_number, name, address, last_interaction_type,
	last_appointment_id, last_ticket_id, last_interaction_at, created_at, updated_at`

func scanClient(row interface{ Scan(...any) error }) (domain.Client, error) {
	var c domain.Client
	err := row.Scan(
		&c.ID,
		&c.Address,
		&c.Name,
		&c.PostalAddress,
		&c.LastInteractionType,
		&c.LastAppointmentID,
		&c.LastTicketID,
		&c.LastInteractionAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	return c, err
}

func (r *Repository) GetClient(ctx context.Context, id int64) (domain.Client, error) {
	c, err := scanClient(r.pool.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1`, id))
	if err != nil {
		return c, notFound(err, "cliente não encontrado")
	}
	return c, nil
}

func (r *Repository) GetClientByAddress(ctx context.Context, address string) (domain.Client, error) {
	c, err := scanClient(r.pool.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE whatsapp_number = $1`, address))
	if err != nil {
		return c, notFound(err, "cliente não encontrado")
	}
	return c, nil
}

// UpsertClient creates the client for address or overwrites its name and
// postal address. Empty values keep what is stored.
func (r *Repository) UpsertClient(ctx context.Context, address, name, postalAddress string) (domain.Client, error) {
	var c domain.Client
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		var err error
		c, err = scanClient(tx.QueryRow(ctx, `
			INSERT INTO clients (whatsapp_number, name, address)
			VALUES ($1, $2, $3)
			ON CONFLICT (whatsapp_number) DO UPDATE SET
				name = COALESCE(NULLIF(EXCLUDED.name, ''), clients.name),
				address = COALESCE(NULLIF(EXCLUDED.address, ''), clients.address),
				updated_at = now()
			RETURNING `+clientColumns, address, name, postalAddress))
		return err
	})
	if err != nil {
		return c, fmt.Errorf("upsert client: %w", err)
	}
	return c, nil
}

// RecordInteraction stamps the client's last interaction type and time.
func (r *Repository) RecordInteraction(ctx context.Context, clientID int64, kind string) error {
	return recordInteraction(ctx, r.pool, clientID, kind)
}

func recordInteraction(ctx context.Context, q db.DBTX, clientID int64, kind string) error {
	_, err := q.Exec(ctx, `
		UPDATE clients
		SET last_interaction_type = $2, last_interaction_at = now(), updated_at = now()
		WHERE id = $1
	`, clientID, kind)
	return err
}
