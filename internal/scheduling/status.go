package scheduling

// legalTransitions is the appointment state machine. Completed and canceled
// are terminal.
var legalTransitions = map[AppointmentStatus][]AppointmentStatus{
	StatusPending:  {StatusApproved, StatusCanceled},
	StatusApproved: {StatusCompleted, StatusCanceled},
}

// CanTransition reports whether from -> to is a legal status change.
func CanTransition(from, to AppointmentStatus) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
