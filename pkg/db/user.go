package db

import (
	"time"

	"github.com/jakechorley/promoter-slots/pkg/apperrors"
)

// stateRank orders the forward-moving states; rejected sits outside the order
var stateRank = map[UserState]int{
	UserStatePending:     0,
	UserStateScheduled:   1,
	UserStateMeetingHeld: 2,
	UserStateApproved:    3,
}

// CanTransitionTo reports whether the user may move to the target state.
// States only move forward, approved and rejected are terminal, and rejection
// is reachable from every non-approved state. Re-entering the current state is allowed.
func (u *User) CanTransitionTo(target UserState) bool {
	from := u.State
	if from == "" {
		from = UserStatePending
	}
	if from == target {
		return true
	}

	switch from {
	case UserStateRejected, UserStateApproved:
		return false
	}
	if target == UserStateRejected {
		return true
	}

	return stateRank[target] > stateRank[from]
}

// AdvanceTo moves the user forward to the target state when that is a forward
// move, and does nothing otherwise. Used for implicit progress such as booking
// a slot or attending a meeting.
func (u *User) AdvanceTo(target UserState) bool {
	if u.State == target || !u.CanTransitionTo(target) {
		return false
	}
	u.State = target
	return true
}

// Approve sets the user to approved and stamps the approval metadata
func (u *User) Approve(approvedBy string, now time.Time) error {
	if !u.CanTransitionTo(UserStateApproved) {
		return apperrors.ErrInvalidStateTransition
	}
	u.State = UserStateApproved
	u.ApprovedAt = &now
	u.ApprovedBy = approvedBy
	u.RejectionReason = ""
	return nil
}

// Reject sets the user to rejected with a reason
func (u *User) Reject(reason, rejectedBy string, now time.Time) error {
	if reason == "" {
		return apperrors.Validation("a rejection reason is required")
	}
	if !u.CanTransitionTo(UserStateRejected) {
		return apperrors.ErrInvalidStateTransition
	}
	u.State = UserStateRejected
	u.ApprovedAt = &now
	u.ApprovedBy = rejectedBy
	u.RejectionReason = reason
	return nil
}
