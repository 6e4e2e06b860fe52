package attendance

// RejectReason explains a rejected transition.
type RejectReason string

// RejectAlreadyInState is the only reason the state machine rejects: the
// badge is already in the state the action asks for.
const RejectAlreadyInState RejectReason = "already_in_state"

// Decision is the validator's verdict.
type Decision struct {
	Accepted bool
	Reason   RejectReason
}

// Validate applies the toggle state machine.
//
//	OUT --IN-->  IN   accepted
//	IN  --OUT--> OUT  accepted
//	OUT --OUT-->      rejected (already out)
//	IN  --IN-->       rejected (already in)
//
// An unknown current state is treated as OUT.
func Validate(current State, requested Action) Decision {
	if !current.Valid() {
		current = StateOut
	}
	if requested.Target() == current {
		return Decision{Accepted: false, Reason: RejectAlreadyInState}
	}
	return Decision{Accepted: true}
}
