package domain

type SessionStatus string

const (
	SessionStatusPending    SessionStatus = "PENDING"
	SessionStatusPaid       SessionStatus = "PAID"
	SessionStatusFailed     SessionStatus = "FAILED"
	SessionStatusSuperseded SessionStatus = "SUPERSEDED"
)

var allowedTransitions = map[SessionStatus][]SessionStatus{
	SessionStatusPending: {SessionStatusPaid, SessionStatusFailed, SessionStatusSuperseded},
}

func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusPaid || s == SessionStatusFailed || s == SessionStatusSuperseded
}

// String representation (for logging)
func (s SessionStatus) String() string {
	return string(s)
}

func CanTransitionTo(from, to SessionStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
