package db

import (
	"time"

	"github.com/jakechorley/promoter-slots/pkg/apperrors"
)

// RegisteredCount is the number of users registered in the slot
func (s *Slot) RegisteredCount() int {
	return len(s.Registrations)
}

// IsFull reports whether the slot has reached its capacity
func (s *Slot) IsFull() bool {
	return s.RegisteredCount() >= s.MaxCapacity
}

// AvailableCount is the number of seats left, never negative
func (s *Slot) AvailableCount() int {
	if n := s.MaxCapacity - s.RegisteredCount(); n > 0 {
		return n
	}
	return 0
}

// ApprovedCount is the number of registrations in the approved state
func (s *Slot) ApprovedCount() int {
	return s.countApprovalState(ApprovalApproved)
}

// PendingCount is the number of registrations still pending
func (s *Slot) PendingCount() int {
	return s.countApprovalState(ApprovalPending)
}

func (s *Slot) countApprovalState(state ApprovalState) int {
	count := 0
	for _, r := range s.Registrations {
		if r.ApprovalState == state {
			count++
		}
	}
	return count
}

// IsOpen reports whether the slot accepts registration changes driven by capacity
func (s *Slot) IsOpen() bool {
	return s.Status == SlotStatusAvailable || s.Status == SlotStatusFull || s.Status == ""
}

// RecomputeStatus flips available <-> full from the registration count.
// Completed and cancelled are admin states and are left untouched.
func (s *Slot) RecomputeStatus() {
	if !s.IsOpen() {
		return
	}
	if s.IsFull() {
		s.Status = SlotStatusFull
	} else {
		s.Status = SlotStatusAvailable
	}
}

// FindRegistration returns the registration of the given user, if any
func (s *Slot) FindRegistration(userID string) *Registration {
	for i := range s.Registrations {
		if s.Registrations[i].UserID == userID {
			return &s.Registrations[i]
		}
	}
	return nil
}

// Register appends a pending registration for the user.
// It reports whether this registration filled the slot.
func (s *Slot) Register(userID string, now time.Time) (bool, error) {
	if !s.IsOpen() {
		return false, apperrors.ErrSlotClosed
	}
	if s.FindRegistration(userID) != nil {
		return false, apperrors.ErrAlreadyRegistered
	}
	if s.IsFull() {
		return false, apperrors.ErrSlotFull
	}

	s.Registrations = append(s.Registrations, Registration{
		UserID:        userID,
		RegisteredAt:  now,
		ApprovalState: ApprovalPending,
	})
	s.RecomputeStatus()

	return s.IsFull(), nil
}

// Unregister removes the user's registration. It reports whether anything was removed.
func (s *Slot) Unregister(userID string) bool {
	kept := s.Registrations[:0]
	removed := false
	for _, r := range s.Registrations {
		if r.UserID == userID {
			removed = true
			continue
		}
		kept = append(kept, r)
	}
	s.Registrations = kept
	s.RecomputeStatus()
	return removed
}

// ApproveRegistration marks the user's registration as approved
func (s *Slot) ApproveRegistration(userID, approvedBy string, now time.Time) error {
	reg := s.FindRegistration(userID)
	if reg == nil {
		return apperrors.ErrRegistrationNotFound
	}

	reg.ApprovalState = ApprovalApproved
	reg.ApprovedAt = &now
	reg.ApprovedBy = approvedBy
	reg.RejectionReason = ""
	s.RecomputeStatus()
	return nil
}

// RejectRegistration marks the user's registration as rejected with a reason
func (s *Slot) RejectRegistration(userID, reason, rejectedBy string, now time.Time) error {
	reg := s.FindRegistration(userID)
	if reg == nil {
		return apperrors.ErrRegistrationNotFound
	}

	reg.ApprovalState = ApprovalRejected
	reg.ApprovedAt = &now
	reg.ApprovedBy = rejectedBy
	reg.RejectionReason = reason
	s.RecomputeStatus()
	return nil
}

// UserIDs returns the ids of all registered users in registration order
func (s *Slot) UserIDs() []string {
	ids := make([]string, len(s.Registrations))
	for i, r := range s.Registrations {
		ids[i] = r.UserID
	}
	return ids
}

// Key is the (date, start time) pair that identifies a slot for deduplication
func (s *Slot) Key() string {
	return SlotKey(s.Date, s.StartTime)
}

// SlotKey builds the deduplication key for a date and start time
func SlotKey(date time.Time, startTime string) string {
	return date.Format("2006-01-02") + "_" + startTime
}
