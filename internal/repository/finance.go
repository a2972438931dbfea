package repository

import (
	"context"
	"errors"
	"time"

	"dispatch_bot_backend/internal/domain"

	"github.com/jackc/pgx/v5"
)

// GetSetting returns the value of name, or "" when unset.
func (r *Repository) GetSetting(ctx context.Context, name string) (string, error) {
	var value string
	err := r.pool.QueryRow(ctx, `SELECT value FROM settings WHERE name = $1`, name).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return value, err
}

func (r *Repository) SetSetting(ctx context.Context, name, value string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO settings (name, value) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
	`, name, value)
	return err
}

// InvoicesForClient lists every invoice of the client by due date.
func (r *Repository) InvoicesForClient(ctx context.Context, clientID int64) ([]domain.Invoice, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, client_id, amount_cents, due_date, status, document_url
		FROM invoices
		WHERE client_id = $1
		ORDER BY due_date ASC, id ASC
	`, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.Invoice, 0)
	for rows.Next() {
		var inv domain.Invoice
		if err := rows.Scan(&inv.ID, &inv.ClientID, &inv.AmountCents, &inv.DueDate, &inv.Status, &inv.DocumentURL); err != nil {
			return nil, err
		}
		items = append(items, inv)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return items, nil
}

// InsertPaymentProof stores a pending proof.
func (r *Repository) InsertPaymentProof(ctx context.Context, p domain.NewPaymentProof) (int64, error) {
	var id int64
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `
			INSERT INTO payment_proofs (client_id, invoice_id, file_path, description)
			VALUES ($1, $2, $3, $4)
			RETURNING id
		`, p.ClientID, p.InvoiceID, p.FilePath, p.Description).Scan(&id); err != nil {
			return err
		}
		return recordInteraction(ctx, tx, p.ClientID, domain.InteractionFinance)
	})
	return id, err
}

// InvoiceTotals aggregates invoices due in [from, to) by status.
func (r *Repository) InvoiceTotals(ctx context.Context, from, to time.Time) ([]domain.InvoiceTotal, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT status, count(*), COALESCE(sum(amount_cents), 0)
		FROM invoices
		WHERE due_date >= $1 AND due_date < $2
		GROUP BY status
		ORDER BY status
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.InvoiceTotal, 0, 4)
	for rows.Next() {
		var t domain.InvoiceTotal
		if err := rows.Scan(&t.Status, &t.Count, &t.AmountCents); err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}
