// Package session keeps the per-sender conversation state. Entries live in
// memory only; losing them restarts the sender's flow.
package session

import (
	"time"

	"dispatch_bot_backend/internal/domain"
)

// Flow names the engine that owns a state. The set is closed: the router
// switches over every value.
type Flow uint8

const (
	FlowOnboarding Flow = iota + 1
	FlowFinance
	FlowDispatch
	FlowSupport
	FlowRating
)

func (f Flow) String() string {
	switch f {
	case FlowOnboarding:
		return "onboarding"
	case FlowFinance:
		return "finance"
	case FlowDispatch:
		return "dispatch"
	case FlowSupport:
		return "support"
	case FlowRating:
		return "rating"
	default:
		return "unknown"
	}
}

// State is implemented by each engine's own state enum.
type State interface {
	Flow() Flow
	String() string
}

// Session is the state of one sender.
type Session struct {
	State     State
	Data      Data
	UpdatedAt time.Time
}

// Data is the role-scoped payload carried between events.
type Data struct {
	ClientID int64
	Name     string
	Address  string

	// Onboarding drafts and returning-customer context.
	DraftName             string
	DraftAddress          string
	LastInteraction       string
	LastInteractionDetail string
	LastSpecialty         string

	// Booking.
	Specialty    string
	Problem      string
	Appointments []domain.Appointment

	// Finance. Invoices is the exact list shown to the sender.
	Invoices      []domain.Invoice
	Invoice       *domain.Invoice
	TargetAddress string
	TargetName    string
	TargetClient  int64

	// Dispatch.
	OrderID         int64
	PhotoType       domain.PhotoType
	PhotoCount      int
	PendingNavigate bool

	Rating Rating
}

// Rating is the context recorded with the review when the prompt is answered.
type Rating struct {
	Type           string
	AgentID        *int64
	AppointmentID  *int64
	ServiceOrderID *int64
}
