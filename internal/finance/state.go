package finance

import "dispatch_bot_backend/internal/session"

// State of the finance flows.
type State uint8

const (
	AwaitingFinanceChoice State = iota + 1
	AwaitingInvoiceChoice
	AwaitingPaymentOption
	AwaitingPaymentProof
	AwaitingAttendantInvoiceChoice
)

func (State) Flow() session.Flow { return session.FlowFinance }

func (s State) String() string {
	switch s {
	case AwaitingFinanceChoice:
		return "awaiting_finance_choice"
	case AwaitingInvoiceChoice:
		return "awaiting_invoice_choice"
	case AwaitingPaymentOption:
		return "awaiting_payment_option"
	case AwaitingPaymentProof:
		return "awaiting_payment_proof"
	case AwaitingAttendantInvoiceChoice:
		return "awaiting_attendant_invoice_choice"
	default:
		return "finance_unknown"
	}
}
