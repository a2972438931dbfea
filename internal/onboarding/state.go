package onboarding

import "dispatch_bot_backend/internal/session"

// State of the onboarding, menu and booking flows.
type State uint8

const (
	AwaitingName State = iota + 1
	AwaitingAddress
	AwaitingAddressConfirmation
	AwaitingWelcomeChoice
	AwaitingDataUpdateChoice
	AwaitingNewName
	AwaitingNewAddress
	AwaitingUpdateConfirmation
	AwaitingMenuChoice
	AwaitingSpecialty
	AwaitingProblemDescription
	AwaitingAvailability
	AwaitingCancelChoice
	AwaitingInfoChoice
)

func (State) Flow() session.Flow { return session.FlowOnboarding }

func (s State) String() string {
	switch s {
	case AwaitingName:
		return "awaiting_name"
	case AwaitingAddress:
		return "awaiting_address"
	case AwaitingAddressConfirmation:
		return "awaiting_address_confirmation"
	case AwaitingWelcomeChoice:
		return "awaiting_welcome_choice"
	case AwaitingDataUpdateChoice:
		return "awaiting_data_update_choice"
	case AwaitingNewName:
		return "awaiting_new_name"
	case AwaitingNewAddress:
		return "awaiting_new_address"
	case AwaitingUpdateConfirmation:
		return "awaiting_update_confirmation"
	case AwaitingMenuChoice:
		return "awaiting_menu_choice"
	case AwaitingSpecialty:
		return "awaiting_specialty"
	case AwaitingProblemDescription:
		return "awaiting_problem_description"
	case AwaitingAvailability:
		return "awaiting_availability"
	case AwaitingCancelChoice:
		return "awaiting_cancel_choice"
	case AwaitingInfoChoice:
		return "awaiting_info_choice"
	default:
		return "onboarding_unknown"
	}
}
