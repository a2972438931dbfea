package support

import "dispatch_bot_backend/internal/session"

// State of the support flow.
type State uint8

const (
	AwaitingSupportReason State = iota + 1
)

func (State) Flow() session.Flow { return session.FlowSupport }

func (s State) String() string {
	switch s {
	case AwaitingSupportReason:
		return "awaiting_support_reason"
	default:
		return "support_unknown"
	}
}
