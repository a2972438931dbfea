package dispatch

import "dispatch_bot_backend/internal/session"

// State of the technician and customer sides of a service order.
type State uint8

const (
	AwaitingTechnicianLocation State = iota + 1
	AwaitingPhotoType
	AwaitingTechnicianPhotos
	AwaitingServiceDescription
	AwaitingRejectionReason
	AwaitingRescheduleDecision
	AwaitingArrivalConfirmation
)

func (State) Flow() session.Flow { return session.FlowDispatch }

func (s State) String() string {
	switch s {
	case AwaitingTechnicianLocation:
		return "awaiting_technician_location"
	case AwaitingPhotoType:
		return "awaiting_photo_type"
	case AwaitingTechnicianPhotos:
		return "awaiting_technician_photos"
	case AwaitingServiceDescription:
		return "awaiting_service_description"
	case AwaitingRejectionReason:
		return "awaiting_rejection_reason"
	case AwaitingRescheduleDecision:
		return "awaiting_reschedule_decision"
	case AwaitingArrivalConfirmation:
		return "awaiting_arrival_confirmation"
	default:
		return "dispatch_unknown"
	}
}
