package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"dispatch_bot_backend/internal/domain"
	"dispatch_bot_backend/platform/apperr"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestNotFoundMapsNoRows(t *testing.T) {
	err := notFound(fmt.Errorf("scan: %w", pgx.ErrNoRows), "ordem não encontrada")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.Contains(t, err.Error(), "ordem não encontrada")

	other := errors.New("conn reset")
	assert.Same(t, other, notFound(other, "x"))
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("boom")))
}

func TestStaffTableRejectsCustomers(t *testing.T) {
	_, err := staffTable(0)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestTransitionOrderRefusesSkippedStep(t *testing.T) {
	r := &Repository{}
	_, err := r.TransitionOrder(context.Background(), domain.OrderTransition{
		OrderID: 7,
		From:    domain.OrderAssigned,
		To:      domain.OrderArrived,
	})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}
