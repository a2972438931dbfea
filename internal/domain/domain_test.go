package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStrictOrderTransitions(t *testing.T) {
	allowed := [][2]OrderStatus{
		{OrderAssigned, OrderEnRoute},
		{OrderAssigned, OrderRejected},
		{OrderEnRoute, OrderArrived},
		{OrderArrived, OrderInProgress},
		{OrderArrived, OrderClientAbsent},
		{OrderInProgress, OrderCompleted},
		{OrderClientAbsent, OrderRescheduled},
		{OrderClientAbsent, OrderCancelled},
	}
	for _, tr := range allowed {
		assert.True(t, CanTransition(tr[0], tr[1]), "%s -> %s", tr[0], tr[1])
	}

	refused := [][2]OrderStatus{
		{OrderAssigned, OrderArrived},
		{OrderAssigned, OrderInProgress},
		{OrderEnRoute, OrderInProgress},
		{OrderArrived, OrderCompleted},
		{OrderEnRoute, OrderRejected},
		{OrderCompleted, OrderInProgress},
		{OrderRejected, OrderEnRoute},
	}
	for _, tr := range refused {
		assert.False(t, CanTransition(tr[0], tr[1]), "%s -> %s", tr[0], tr[1])
	}
}

func TestTerminalStatuses(t *testing.T) {
	for _, s := range []OrderStatus{OrderCompleted, OrderRejected, OrderRescheduled, OrderCancelled} {
		assert.True(t, s.Terminal(), s)
	}
	for _, s := range []OrderStatus{OrderAssigned, OrderEnRoute, OrderArrived, OrderInProgress, OrderClientAbsent} {
		assert.False(t, s.Terminal(), s)
	}
}

func TestInvoicePayable(t *testing.T) {
	assert.True(t, InvoiceOpen.Payable())
	assert.True(t, InvoiceOverdue.Payable())
	assert.False(t, InvoicePaid.Payable())
	assert.False(t, InvoiceCancelled.Payable())
	assert.Equal(t, "Vencido", InvoiceOverdue.Label())
}

func TestFormatBRLUsesBrazilianSeparators(t *testing.T) {
	assert.Equal(t, "R$ 1.234,56", FormatBRL(123456))
	assert.Equal(t, "R$ 0,99", FormatBRL(99))
}
