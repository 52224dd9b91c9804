package model

// SubjectState is the lifecycle state of an issue or pull request.
type SubjectState string

const (
	StateOpen    SubjectState = "open"
	StateClosed  SubjectState = "closed"
	StateMerged  SubjectState = "merged"
	StateDeleted SubjectState = "deleted"
	StateUnknown SubjectState = "unknown"
)

// IsClosedOrMerged reports whether a subject in this state should be
// hidden. Deleted and unknown count as hidden: the safe default is to
// hide rather than risk showing stale work.
func (s SubjectState) IsClosedOrMerged() bool {
	switch s {
	case StateOpen:
		return false
	case StateClosed, StateMerged, StateDeleted, StateUnknown:
		return true
	default:
		return true
	}
}
