package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jakechorley/promoter-slots/internal/config"
	"github.com/jakechorley/promoter-slots/pkg/apperrors"
	"github.com/jakechorley/promoter-slots/pkg/db"
)

// RegistrationStore defines the database operations needed to book users into slots
type RegistrationStore interface {
	MeetingStore
	GetUser(ctx context.Context, id string) (*db.User, error)
	UpdateUser(ctx context.Context, user *db.User) error
	InsertNotificationOutcome(ctx context.Context, outcome *db.NotificationOutcome) error
}

// RegisterResult represents the result of registering a user into a slot
type RegisterResult struct {
	Slot   *db.Slot
	User   *db.User
	Filled bool
	// Set only when the registration filled the slot
	MeetingError  string
	Notifications *NotificationResult
}

// Register books a user into a slot. When the booking fills the slot the meeting
// link is generated and confirmation emails are sent; failures of those steps are
// reported in the result and never undo the registration.
func Register(
	ctx context.Context,
	store RegistrationStore,
	providers Providers,
	cfg *config.Config,
	logger *zap.Logger,
	slotID, userID string,
) (*RegisterResult, error) {
	logger.Debug("Registering user", zap.String("slot_id", slotID), zap.String("user_id", userID))

	// Step 1: Load the user
	user, err := store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}
	if user.SlotID != "" && user.SlotID != slotID {
		return nil, apperrors.ErrUserHasSlot
	}

	// Step 2: Append the registration under the slot lock
	var filled bool
	slot, err := store.UpdateSlotAtomically(ctx, slotID, func(s *db.Slot) error {
		var regErr error
		filled, regErr = s.Register(userID, now())
		if regErr != nil {
			return regErr
		}
		s.UpdatedAt = now()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register user: %w", err)
	}
	logger.Info("User registered",
		zap.String("slot_id", slot.ID),
		zap.String("user_id", userID),
		zap.Int("registered", slot.RegisteredCount()),
		zap.Int("capacity", slot.MaxCapacity))

	// Step 3: Link the user to the slot
	user.SlotID = slot.ID
	user.AdvanceTo(db.UserStateScheduled)
	user.UpdatedAt = now()
	if err := store.UpdateUser(ctx, user); err != nil {
		logger.Warn("Failed to link user to slot, removing registration",
			zap.String("slot_id", slot.ID),
			zap.String("user_id", userID),
			zap.Error(err))
		if _, undoErr := store.UpdateSlotAtomically(ctx, slot.ID, func(s *db.Slot) error {
			s.Unregister(userID)
			return nil
		}); undoErr != nil {
			logger.Error("Failed to remove registration", zap.String("slot_id", slot.ID), zap.Error(undoErr))
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	result := &RegisterResult{Slot: slot, User: user, Filled: filled}
	if !filled {
		return result, nil
	}

	// Step 4: The slot is full, run the fill side effects
	logger.Info("Slot filled", zap.String("slot_id", slot.ID))
	runFillSideEffects(ctx, store, providers, cfg, logger, result)
	return result, nil
}

func runFillSideEffects(
	ctx context.Context,
	store RegistrationStore,
	providers Providers,
	cfg *config.Config,
	logger *zap.Logger,
	result *RegisterResult,
) {
	slot, err := GenerateMeetingLink(ctx, store, providers, cfg, logger, result.Slot.ID)
	if err != nil {
		logger.Error("Failed to generate meeting link for filled slot",
			zap.String("slot_id", result.Slot.ID),
			zap.Error(err))
		result.MeetingError = err.Error()
	} else {
		result.Slot = slot
	}

	notifications, err := SendConfirmationNotifications(ctx, store, providers, cfg, logger, result.Slot.ID)
	if err != nil {
		logger.Error("Failed to send confirmation notifications",
			zap.String("slot_id", result.Slot.ID),
			zap.Error(err))
		return
	}
	result.Notifications = notifications
}

// UnregisterStore defines the database operations needed to remove a registration
type UnregisterStore interface {
	GetUser(ctx context.Context, id string) (*db.User, error)
	UpdateUser(ctx context.Context, user *db.User) error
	UpdateSlotAtomically(ctx context.Context, id string, fn func(*db.Slot) error) (*db.Slot, error)
}

// Unregister removes a user from a slot. Removing a user who is not registered is a no-op.
func Unregister(ctx context.Context, store UnregisterStore, logger *zap.Logger, slotID, userID string) (*db.Slot, error) {
	logger.Debug("Unregistering user", zap.String("slot_id", slotID), zap.String("user_id", userID))

	removed := false
	slot, err := store.UpdateSlotAtomically(ctx, slotID, func(s *db.Slot) error {
		removed = s.Unregister(userID)
		if removed {
			s.UpdatedAt = now()
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to unregister user: %w", err)
	}

	user, err := store.GetUser(ctx, userID)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		logger.Debug("User not found, nothing to unlink", zap.String("user_id", userID))
	case err != nil:
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	case user.SlotID == slotID:
		user.SlotID = ""
		user.UpdatedAt = now()
		if err := store.UpdateUser(ctx, user); err != nil {
			return nil, fmt.Errorf("failed to update user: %w", err)
		}
	}

	logger.Info("User unregistered",
		zap.String("slot_id", slot.ID),
		zap.String("user_id", userID),
		zap.Bool("removed", removed),
		zap.String("status", string(slot.Status)))

	return slot, nil
}

// SlotMutationStore defines the database operations needed to mutate a slot
type SlotMutationStore interface {
	UpdateSlotAtomically(ctx context.Context, id string, fn func(*db.Slot) error) (*db.Slot, error)
}

// ApproveRegistration marks a user's registration in a slot as approved
func ApproveRegistration(ctx context.Context, store SlotMutationStore, logger *zap.Logger, slotID, userID, approvedBy string) (*db.Slot, error) {
	slot, err := store.UpdateSlotAtomically(ctx, slotID, func(s *db.Slot) error {
		if err := s.ApproveRegistration(userID, approvedBy, now()); err != nil {
			return err
		}
		s.UpdatedAt = now()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to approve registration: %w", err)
	}

	logger.Info("Registration approved",
		zap.String("slot_id", slotID),
		zap.String("user_id", userID),
		zap.String("approved_by", approvedBy))
	return slot, nil
}

// RejectRegistration marks a user's registration in a slot as rejected
func RejectRegistration(ctx context.Context, store SlotMutationStore, logger *zap.Logger, slotID, userID, reason, rejectedBy string) (*db.Slot, error) {
	slot, err := store.UpdateSlotAtomically(ctx, slotID, func(s *db.Slot) error {
		if err := s.RejectRegistration(userID, reason, rejectedBy, now()); err != nil {
			return err
		}
		s.UpdatedAt = now()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to reject registration: %w", err)
	}

	logger.Info("Registration rejected",
		zap.String("slot_id", slotID),
		zap.String("user_id", userID),
		zap.String("rejected_by", rejectedBy),
		zap.String("reason", reason))
	return slot, nil
}

// SetSlotStatus lets an admin complete, cancel or reopen a slot.
// Reopening recomputes available/full from the registrations.
func SetSlotStatus(ctx context.Context, store SlotMutationStore, logger *zap.Logger, slotID string, status db.SlotStatus) (*db.Slot, error) {
	switch status {
	case db.SlotStatusAvailable, db.SlotStatusCompleted, db.SlotStatusCancelled:
	default:
		return nil, apperrors.Validation(fmt.Sprintf("status must be available, completed or cancelled, got %q", status))
	}

	slot, err := store.UpdateSlotAtomically(ctx, slotID, func(s *db.Slot) error {
		s.Status = status
		s.RecomputeStatus()
		s.UpdatedAt = now()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update slot status: %w", err)
	}

	logger.Info("Slot status updated", zap.String("slot_id", slotID), zap.String("status", string(slot.Status)))
	return slot, nil
}

// DeleteSlot deletes a slot that has no registrations
func DeleteSlot(ctx context.Context, store db.SlotStore, logger *zap.Logger, slotID string) error {
	if err := store.DeleteSlot(ctx, slotID); err != nil {
		return fmt.Errorf("failed to delete slot: %w", err)
	}
	logger.Info("Slot deleted", zap.String("slot_id", slotID))
	return nil
}
