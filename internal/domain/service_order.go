package domain

import "time"

// OrderStatus is the ServiceOrder lifecycle.
type OrderStatus string

const (
	OrderAssigned     OrderStatus = "assigned"
	OrderEnRoute      OrderStatus = "en_route"
	OrderArrived      OrderStatus = "arrived"
	OrderInProgress   OrderStatus = "in_progress"
	OrderCompleted    OrderStatus = "completed"
	OrderRejected     OrderStatus = "rejected"
	OrderClientAbsent OrderStatus = "client_absent"
	OrderRescheduled  OrderStatus = "rescheduled"
	OrderCancelled    OrderStatus = "cancelled"
)

// Label returns the Portuguese status text shown to technicians.
func (s OrderStatus) Label() string {
	switch s {
	case OrderAssigned:
		return "Atribuída"
	case OrderEnRoute:
		return "A caminho"
	case OrderArrived:
		return "No local"
	case OrderInProgress:
		return "Em andamento"
	case OrderCompleted:
		return "Concluída"
	case OrderRejected:
		return "Recusada"
	case OrderClientAbsent:
		return "Cliente ausente"
	case OrderRescheduled:
		return "Reagendada"
	case OrderCancelled:
		return "Cancelada"
	default:
		return string(s)
	}
}

// Terminal reports whether no further transition is possible.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderCompleted, OrderRejected, OrderRescheduled, OrderCancelled:
		return true
	}
	return false
}

// transitions is the strict lifecycle. Skipping a step (e.g. arrived while
// still assigned) is refused.
var transitions = map[OrderStatus][]OrderStatus{
	OrderAssigned:     {OrderEnRoute, OrderRejected},
	OrderEnRoute:      {OrderArrived},
	OrderArrived:      {OrderInProgress, OrderClientAbsent, OrderRescheduled},
	OrderInProgress:   {OrderCompleted},
	OrderClientAbsent: {OrderRescheduled, OrderCancelled},
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// OrderTransition moves one order between statuses. Note, when set, is
// appended to the order notes.
type OrderTransition struct {
	OrderID int64
	From    OrderStatus
	To      OrderStatus
	Note    string
}

// ServiceOrder is the dispatch work item for one appointment.
type ServiceOrder struct {
	ID               int64
	AppointmentID    int64
	TechnicianID     int64
	Status           OrderStatus
	DepartureTime    *time.Time
	ArrivalTime      *time.Time
	ServiceStartTime *time.Time
	ServiceEndTime   *time.Time
	Notes            string
	CreatedAt        time.Time
}

// OrderDetail is a ServiceOrder joined with what technicians and customers see.
type OrderDetail struct {
	ServiceOrder
	ClientID           int64
	ClientName         string
	ClientAddress      string
	ServiceAddress     string
	Specialty          string
	ProblemDescription string
	ScheduledAt        time.Time
	TechnicianName     string
	TechnicianAddress  string
}
