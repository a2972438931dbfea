package repository

import (
	"context"
	"errors"
	"fmt"

	"dispatch_bot_backend/internal/domain"

	"github.com/jackc/pgx/v5"
)

const ticketColumns = `q.id, q.client_id, c.name, q.whatsapp_number, q.reason, q.status, q.assigned_to, q.created_at,
	COALESCE(ag.name, ''), COALESCE(ag.whatsapp_number, '')`

const ticketFrom = `
	FROM support_queue q
	JOIN clients c ON c.id = q.client_id
	LEFT JOIN attendants ag ON ag.id = q.assigned_to
`

func scanTicket(row interface{ Scan(...any) error }) (domain.Ticket, error) {
	var t domain.Ticket
	err := row.Scan(
		&t.ID,
		&t.ClientID,
		&t.ClientName,
		&t.Address,
		&t.Reason,
		&t.Status,
		&t.AssignedTo,
		&t.CreatedAt,
		&t.AgentName,
		&t.AgentAddress,
	)
	return t, err
}

func collectTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	defer rows.Close()
	items := make([]domain.Ticket, 0)
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return items, nil
}

// CreateTicket queues a waiting ticket and records it on the client.
func (r *Repository) CreateTicket(ctx context.Context, client domain.Client, reason string) (int64, error) {
	var id int64
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `
			INSERT INTO support_queue (client_id, whatsapp_number, reason)
			VALUES ($1, $2, $3)
			RETURNING id
		`, client.ID, client.Address, reason).Scan(&id); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			UPDATE clients
			SET last_ticket_id = $2, last_interaction_type = $3, last_interaction_at = now(), updated_at = now()
			WHERE id = $1
		`, client.ID, id, domain.InteractionSupport)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("create ticket: %w", err)
	}
	return id, nil
}

// ClaimClient assigns the client's conversation to the agent: the oldest
// waiting ticket is taken over, or an in-progress one is opened. The agent
// becomes busy. Existing in-progress tickets of the client are reported
// instead of duplicated.
func (r *Repository) ClaimClient(ctx context.Context, agentID int64, client domain.Client) (domain.ClaimResult, error) {
	var res domain.ClaimResult
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		held, err := scanTicket(tx.QueryRow(ctx, `
			SELECT `+ticketColumns+ticketFrom+`
			WHERE q.client_id = $1 AND q.status = 'in_progress'
			ORDER BY q.started_at DESC NULLS LAST
			LIMIT 1
			FOR UPDATE OF q
		`, client.ID))
		switch {
		case err == nil:
			res.Ticket = held
			if held.AssignedTo != nil && *held.AssignedTo == agentID {
				res.Outcome = domain.AlreadyMine
			} else {
				res.Outcome = domain.HeldByOther
			}
			return nil
		case !errors.Is(err, pgx.ErrNoRows):
			return err
		}

		var id int64
		err = tx.QueryRow(ctx, `
			UPDATE support_queue SET status = 'in_progress', assigned_to = $2, started_at = now()
			WHERE id = (
				SELECT id FROM support_queue
				WHERE client_id = $1 AND status = 'waiting'
				ORDER BY created_at ASC
				LIMIT 1
				FOR UPDATE SKIP LOCKED
			)
			RETURNING id
		`, client.ID, agentID).Scan(&id)
		switch {
		case err == nil:
			res.Outcome = domain.ClaimedWaiting
		case errors.Is(err, pgx.ErrNoRows):
			if err := tx.QueryRow(ctx, `
				INSERT INTO support_queue (client_id, whatsapp_number, reason, status, assigned_to, started_at)
				VALUES ($1, $2, 'Atendimento iniciado pelo atendente', 'in_progress', $3, now())
				RETURNING id
			`, client.ID, client.Address, agentID).Scan(&id); err != nil {
				return err
			}
			res.Outcome = domain.ClaimedNew
		default:
			return err
		}

		if _, err := tx.Exec(ctx, `UPDATE clients SET last_ticket_id = $2, updated_at = now() WHERE id = $1`, client.ID, id); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE attendants SET status = 'busy', last_activity = now() WHERE id = $1`, agentID); err != nil {
			return err
		}
		res.Ticket, err = scanTicket(tx.QueryRow(ctx, `SELECT `+ticketColumns+ticketFrom+` WHERE q.id = $1`, id))
		return err
	})
	if err != nil {
		return res, fmt.Errorf("claim client %d: %w", client.ID, err)
	}
	return res, nil
}

// FinishTickets completes every in-progress ticket of the agent and hands
// them the oldest waiting ticket. With an empty queue the agent becomes
// available.
func (r *Repository) FinishTickets(ctx context.Context, agentID int64) (domain.FinishResult, error) {
	var res domain.FinishResult
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			WITH closed AS (
				UPDATE support_queue SET status = 'completed', ended_at = now()
				WHERE assigned_to = $1 AND status = 'in_progress'
				RETURNING *
			)
			SELECT `+ticketColumns+`
			FROM closed q
			JOIN clients c ON c.id = q.client_id
			LEFT JOIN attendants ag ON ag.id = q.assigned_to
			ORDER BY q.started_at ASC NULLS FIRST
		`, agentID)
		if err != nil {
			return err
		}
		if res.Closed, err = collectTickets(rows); err != nil {
			return err
		}
		if len(res.Closed) == 0 {
			return nil
		}

		var nextID int64
		err = tx.QueryRow(ctx, `
			UPDATE support_queue SET status = 'in_progress', assigned_to = $1, started_at = now()
			WHERE id = (
				SELECT id FROM support_queue
				WHERE status = 'waiting'
				ORDER BY created_at ASC
				LIMIT 1
				FOR UPDATE SKIP LOCKED
			)
			RETURNING id
		`, agentID).Scan(&nextID)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			_, err = tx.Exec(ctx, `UPDATE attendants SET status = 'available', last_activity = now() WHERE id = $1`, agentID)
			return err
		case err != nil:
			return err
		}

		next, err := scanTicket(tx.QueryRow(ctx, `SELECT `+ticketColumns+ticketFrom+` WHERE q.id = $1`, nextID))
		if err != nil {
			return err
		}
		res.Next = &next
		_, err = tx.Exec(ctx, `UPDATE attendants SET status = 'busy', last_activity = now() WHERE id = $1`, agentID)
		return err
	})
	if err != nil {
		return res, fmt.Errorf("finish tickets: %w", err)
	}
	return res, nil
}

// AgentTicket returns the agent's most recently started in-progress ticket.
func (r *Repository) AgentTicket(ctx context.Context, agentID int64) (domain.Ticket, error) {
	t, err := scanTicket(r.pool.QueryRow(ctx, `
		SELECT `+ticketColumns+ticketFrom+`
		WHERE q.assigned_to = $1 AND q.status = 'in_progress'
		ORDER BY q.started_at DESC NULLS LAST
		LIMIT 1
	`, agentID))
	if err != nil {
		return t, notFound(err, "nenhum atendimento em andamento")
	}
	return t, nil
}

// ClientTicket returns the client's in-progress ticket, if any.
func (r *Repository) ClientTicket(ctx context.Context, clientID int64) (domain.Ticket, error) {
	t, err := scanTicket(r.pool.QueryRow(ctx, `
		SELECT `+ticketColumns+ticketFrom+`
		WHERE q.client_id = $1 AND q.status = 'in_progress'
		ORDER BY q.started_at DESC NULLS LAST
		LIMIT 1
	`, clientID))
	if err != nil {
		return t, notFound(err, "nenhum atendimento em andamento")
	}
	return t, nil
}

// WaitingTickets lists the queue oldest first.
func (r *Repository) WaitingTickets(ctx context.Context) ([]domain.Ticket, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+ticketColumns+ticketFrom+`
		WHERE q.status = 'waiting'
		ORDER BY q.created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	return collectTickets(rows)
}
