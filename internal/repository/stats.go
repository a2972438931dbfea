package repository

import (
	"context"

	"dispatch_bot_backend/internal/domain"
)

// Stats collects the admin dashboard counters.
func (r *Repository) Stats(ctx context.Context) (domain.Stats, error) {
	st := domain.Stats{OrdersByStatus: make(map[domain.OrderStatus]int)}

	err := r.pool.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM support_queue WHERE status = 'waiting'),
			(SELECT count(*) FROM support_queue WHERE status = 'in_progress'),
			(SELECT count(*) FROM attendants WHERE status = 'available'),
			(SELECT COALESCE(avg(rating), 0)::float8 FROM reviews),
			(SELECT count(*) FROM reviews)
	`).Scan(&st.WaitingTickets, &st.InProgressTickets, &st.AvailableAgents, &st.AverageRating, &st.Reviews)
	if err != nil {
		return st, err
	}

	rows, err := r.pool.Query(ctx, `SELECT status, count(*) FROM service_orders GROUP BY status`)
	if err != nil {
		return st, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return st, err
		}
		s := domain.OrderStatus(status)
		st.OrdersByStatus[s] = n
		if !s.Terminal() {
			st.ActiveOrders += n
		}
	}
	return st, rows.Err()
}
