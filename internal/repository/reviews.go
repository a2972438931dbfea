package repository

import (
	"context"
	"errors"

	"dispatch_bot_backend/internal/domain"
	"dispatch_bot_backend/platform/apperr"

	"github.com/jackc/pgx/v5"
)

func (r *Repository) InsertReview(ctx context.Context, rev domain.Review) error {
	if rev.Rating < 1 || rev.Rating > 5 {
		return apperr.Validation("nota deve estar entre 1 e 5")
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO reviews (client_id, rating, review_type, attendant_id, appointment_id, service_order_id)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, rev.ClientID, rev.Rating, rev.Type, rev.AgentID, rev.AppointmentID, rev.ServiceOrderID)
	return err
}

// RandomPhrase picks a thank-you line; "" when the table is empty.
func (r *Repository) RandomPhrase(ctx context.Context) (string, error) {
	var phrase string
	err := r.pool.QueryRow(ctx, `SELECT phrase FROM daily_phrases ORDER BY random() LIMIT 1`).Scan(&phrase)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return phrase, err
}
