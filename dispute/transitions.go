package dispute

import "fmt"

// transitions is the exhaustive table of permitted status edges. UpdateStatus
// consults it; Resolve, Reject and Appeal carry their own narrower
// precondition checks and must stay consistent with this table.
var transitions = map[Status][]Status{
	StatusOpen:        {StatusUnderReview, StatusRejected},
	StatusUnderReview: {StatusResolved, StatusRejected},
	StatusResolved:    {StatusAppealed},
	StatusRejected:    {StatusAppealed},
	StatusAppealed:    {StatusUnderReview, StatusResolved, StatusRejected},
}

// CanTransition reports whether moving a dispute from one status to another
// is a permitted edge.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionError reports an attempted status change that is not in the
// transition table.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("dispute: invalid status transition from %s to %s", e.From, e.To)
}
