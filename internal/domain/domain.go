// Package domain holds the entities shared by the conversation engines and
// the repository layer.
package domain

import (
	"time"
)

// Role classifies a sender for routing.
type Role uint8

const (
	RoleCustomer Role = iota
	RoleAgent
	RoleTechnician
)

func (r Role) String() string {
	switch r {
	case RoleAgent:
		return "agent"
	case RoleTechnician:
		return "technician"
	default:
		return "customer"
	}
}

// Identity is the result of classifying a sender. Exactly one of Client,
// Agent or Technician is set, matching Role. A customer without a row yet has
// Role == RoleCustomer and Client == nil.
type Identity struct {
	Role       Role
	Address    string
	Client     *Client
	Agent      *Staff
	Technician *Staff
}

// IsStaff reports whether the sender is an agent or technician.
func (i Identity) IsStaff() bool {
	return i.Role == RoleAgent || i.Role == RoleTechnician
}

// StaffStatus is the availability of an agent or technician.
type StaffStatus string

const (
	StaffAvailable StaffStatus = "available"
	StaffBusy      StaffStatus = "busy"
	StaffOffline   StaffStatus = "offline"
)

// ParseStaffStatus accepts the three known statuses.
func ParseStaffStatus(s string) (StaffStatus, bool) {
	switch StaffStatus(s) {
	case StaffAvailable, StaffBusy, StaffOffline:
		return StaffStatus(s), true
	}
	return "", false
}

// Staff is a support agent (attendants table) or a technician.
type Staff struct {
	ID           int64
	Name         string
	Address      string
	Status       StaffStatus
	Location     string
	LastActivity *time.Time
}

// Interaction types recorded on the client and used as review tags.
const (
	InteractionFinance     = "Financeiro"
	InteractionBooking     = "Agendamento"
	InteractionSupport     = "Suporte Atendente"
	InteractionInfo        = "Informações"
	InteractionCancelation = "Cancelamento"
)

// Client is an end customer.
type Client struct {
	ID                  int64
	Address             string
	Name                string
	PostalAddress       string
	LastInteractionType string
	LastAppointmentID   *int64
	LastTicketID        *int64
	LastInteractionAt   *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// AppointmentStatus values.
type AppointmentStatus string

const (
	AppointmentScheduled AppointmentStatus = "scheduled"
	AppointmentCancelled AppointmentStatus = "cancelled"
)

// Appointment is a booked visit.
type Appointment struct {
	ID                 int64
	ClientID           int64
	Specialty          string
	ProblemDescription string
	RequestedText      string
	ScheduledAt        time.Time
	Status             AppointmentStatus
	CalendarEventID    string
}

// NewAppointment carries the fields needed to book.
type NewAppointment struct {
	ClientID           int64
	Specialty          string
	ProblemDescription string
	RequestedText      string
	ScheduledAt        time.Time
	CalendarEventID    string
}

// PhotoType tags service photos.
type PhotoType string

const (
	PhotoBefore    PhotoType = "before"
	PhotoPackaging PhotoType = "packaging"
	PhotoAfter     PhotoType = "after"
)

// Label returns the customer-facing name of the photo type.
func (p PhotoType) Label() string {
	switch p {
	case PhotoBefore:
		return "antes"
	case PhotoPackaging:
		return "embalagem"
	case PhotoAfter:
		return "depois"
	default:
		return string(p)
	}
}

// ServicePhoto is an append-only photo record.
type ServicePhoto struct {
	ID             int64
	ServiceOrderID int64
	Type           PhotoType
	Path           string
	Description    string
	CreatedAt      time.Time
}

// InvoiceStatus values.
type InvoiceStatus string

const (
	InvoiceOpen      InvoiceStatus = "open"
	InvoicePaid      InvoiceStatus = "paid"
	InvoiceOverdue   InvoiceStatus = "overdue"
	InvoiceCancelled InvoiceStatus = "cancelled"
)

// Label returns the customer-facing status text.
func (s InvoiceStatus) Label() string {
	switch s {
	case InvoiceOpen:
		return "Em aberto"
	case InvoicePaid:
		return "Pago"
	case InvoiceOverdue:
		return "Vencido"
	case InvoiceCancelled:
		return "Cancelado"
	default:
		return string(s)
	}
}

// Payable reports whether the invoice still accepts payment.
func (s InvoiceStatus) Payable() bool {
	return s == InvoiceOpen || s == InvoiceOverdue
}

// Invoice is read-only for the orchestrator.
type Invoice struct {
	ID          int64
	ClientID    int64
	AmountCents int64
	DueDate     time.Time
	Status      InvoiceStatus
	DocumentURL string
}

// NewPaymentProof is a customer upload awaiting back-office review.
type NewPaymentProof struct {
	ClientID    int64
	InvoiceID   *int64
	FilePath    string
	Description string
}

// TicketStatus values.
type TicketStatus string

const (
	TicketWaiting    TicketStatus = "waiting"
	TicketInProgress TicketStatus = "in_progress"
	TicketCompleted  TicketStatus = "completed"
)

// Ticket is a support queue entry.
type Ticket struct {
	ID         int64
	ClientID   int64
	ClientName string
	Address    string
	Reason     string
	Status     TicketStatus
	AssignedTo *int64
	CreatedAt  time.Time

	// Set when the ticket is assigned.
	AgentName    string
	AgentAddress string
}

// ClaimOutcome tells how an agent's claim on a client ended.
type ClaimOutcome uint8

const (
	ClaimedWaiting ClaimOutcome = iota + 1
	ClaimedNew
	AlreadyMine
	HeldByOther
)

// ClaimResult is the outcome of a claim. Ticket is the in-progress ticket,
// held by the caller or by another agent.
type ClaimResult struct {
	Outcome ClaimOutcome
	Ticket  Ticket
}

// FinishResult is what closing an agent's tickets closed and claimed.
type FinishResult struct {
	Closed []Ticket
	Next   *Ticket
}

// Review is an answered rating prompt.
type Review struct {
	ClientID       int64
	Rating         int
	Type           string
	AgentID        *int64
	AppointmentID  *int64
	ServiceOrderID *int64
}

// Setting names in the settings table.
const (
	SettingPixKey          = "pix_key"
	SettingPixMerchantName = "pix_merchant_name"
	SettingPixMerchantCity = "pix_merchant_city"
)

// InvoiceTotal aggregates invoices of one status.
type InvoiceTotal struct {
	Status      InvoiceStatus
	Count       int
	AmountCents int64
}

// Stats is the operational snapshot served to administrators.
type Stats struct {
	WaitingTickets    int
	InProgressTickets int
	AvailableAgents   int
	ActiveOrders      int
	OrdersByStatus    map[OrderStatus]int
	AverageRating     float64
	Reviews           int
}
