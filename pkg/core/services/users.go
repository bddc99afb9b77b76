package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/jakechorley/promoter-slots/internal/config"
	"github.com/jakechorley/promoter-slots/pkg/apperrors"
	"github.com/jakechorley/promoter-slots/pkg/core/model"
	"github.com/jakechorley/promoter-slots/pkg/db"
	"github.com/jakechorley/promoter-slots/pkg/utils/validation"
)

const defaultLanguage = "Español"

// UserInput holds the fields of a new candidate
type UserInput struct {
	Name         string   `yaml:"name" validate:"required"`
	Surname      string   `yaml:"surname" validate:"required"`
	Email        string   `yaml:"email" validate:"required,email"`
	Phone        string   `yaml:"phone" validate:"omitempty,min=10"`
	Age          *int     `yaml:"age" validate:"omitempty,min=18,max=100"`
	City         string   `yaml:"city"`
	ZipCode      string   `yaml:"zipCode"`
	Experience   string   `yaml:"experience"`
	Motivation   string   `yaml:"motivation"`
	Availability string   `yaml:"availability"`
	Languages    []string `yaml:"languages"`
}

func (in *UserInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Surname = strings.TrimSpace(in.Surname)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)
	in.City = strings.TrimSpace(in.City)
	in.ZipCode = strings.TrimSpace(in.ZipCode)
}

// CreateUser validates and stores a new candidate in the pending state
func CreateUser(ctx context.Context, store db.UserStore, logger *zap.Logger, input UserInput) (*db.User, error) {
	return createUser(ctx, store, logger, input, false)
}

func createUser(ctx context.Context, store db.UserStore, logger *zap.Logger, input UserInput, imported bool) (*db.User, error) {
	input.normalize()
	logger.Debug("Creating user", zap.String("email", input.Email))

	if err := validation.Validator().Struct(input); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrValidation, "invalid user", err)
	}

	_, err := store.GetUserByEmail(ctx, input.Email)
	switch {
	case err == nil:
		return nil, apperrors.ErrDuplicateEmail
	case !errors.Is(err, apperrors.ErrUserNotFound):
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}

	languages := input.Languages
	if len(languages) == 0 {
		languages = []string{defaultLanguage}
	}

	ts := now()
	user := &db.User{
		ID:           newID(),
		Name:         input.Name,
		Surname:      input.Surname,
		Email:        input.Email,
		Phone:        input.Phone,
		Age:          input.Age,
		City:         input.City,
		ZipCode:      input.ZipCode,
		Experience:   input.Experience,
		Motivation:   input.Motivation,
		Availability: input.Availability,
		Languages:    languages,
		State:        db.UserStatePending,
		Imported:     imported,
		CreatedAt:    ts,
		UpdatedAt:    ts,
	}

	if err := store.InsertUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	logger.Info("User created", zap.String("user_id", user.ID), zap.String("email", user.Email))
	return user, nil
}

// FailedImport is a row that could not be imported
type FailedImport struct {
	Row   int
	Email string
	Error string
}

// ImportResult represents the result of a user import
type ImportResult struct {
	Created    []db.User
	Duplicates []string
	Failed     []FailedImport
}

// ImportUsers creates a user per row. Duplicates and invalid rows are reported and skipped.
func ImportUsers(ctx context.Context, store db.UserStore, logger *zap.Logger, rows []UserInput) (*ImportResult, error) {
	logger.Info("Importing users", zap.Int("rows", len(rows)))

	result := &ImportResult{
		Created:    []db.User{},
		Duplicates: []string{},
		Failed:     []FailedImport{},
	}
	var errs error
	for i, row := range rows {
		user, err := createUser(ctx, store, logger, row, true)
		switch {
		case err == nil:
			result.Created = append(result.Created, *user)
		case errors.Is(err, apperrors.ErrDuplicateEmail):
			logger.Debug("Skipping duplicate email", zap.String("email", row.Email))
			result.Duplicates = append(result.Duplicates, strings.ToLower(strings.TrimSpace(row.Email)))
		default:
			logger.Warn("Failed to import row", zap.Int("row", i+1), zap.Error(err))
			errs = multierr.Append(errs, fmt.Errorf("row %d: %w", i+1, err))
			result.Failed = append(result.Failed, FailedImport{Row: i + 1, Email: row.Email, Error: err.Error()})
		}
	}

	if errs != nil {
		logger.Warn("Import finished with failures", zap.Error(errs))
	}
	logger.Info("Import completed",
		zap.Int("created", len(result.Created)),
		zap.Int("duplicates", len(result.Duplicates)),
		zap.Int("failed", len(result.Failed)))

	return result, nil
}

// ImportUsersFromSheet reads candidate rows from the configured spreadsheet and imports them
func ImportUsersFromSheet(
	ctx context.Context,
	store db.UserStore,
	providers Providers,
	cfg *config.Config,
	logger *zap.Logger,
) (*ImportResult, error) {
	if cfg.CandidateSheetID == "" {
		return nil, apperrors.Validation("candidateSheetID is not configured")
	}

	sheets, err := providers.Sheets(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets client: %w", err)
	}

	providerCtx, cancel := providerContext(ctx, cfg)
	defer cancel()

	logger.Debug("Fetching candidates", zap.String("sheet_id", cfg.CandidateSheetID), zap.String("tab", cfg.CandidatesTab))
	candidates, err := sheets.ListCandidates(providerCtx, cfg.CandidateSheetID, cfg.CandidatesTab)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch candidates: %w", err)
	}
	logger.Debug("Found candidates", zap.Int("count", len(candidates)))

	rows := make([]UserInput, 0, len(candidates))
	rowNumbers := make([]int, 0, len(candidates))
	result := &ImportResult{Failed: []FailedImport{}}
	for _, c := range candidates {
		input, err := candidateToInput(c)
		if err != nil {
			result.Failed = append(result.Failed, FailedImport{Row: c.Row, Email: c.Email, Error: err.Error()})
			continue
		}
		rows = append(rows, input)
		rowNumbers = append(rowNumbers, c.Row)
	}

	imported, err := ImportUsers(ctx, store, logger, rows)
	if err != nil {
		return nil, err
	}

	// Report spreadsheet rows rather than positions in the filtered list
	for _, f := range imported.Failed {
		f.Row = rowNumbers[f.Row-1]
		result.Failed = append(result.Failed, f)
	}
	result.Created = imported.Created
	result.Duplicates = imported.Duplicates

	return result, nil
}

func candidateToInput(c model.Candidate) (UserInput, error) {
	input := UserInput{
		Name:         c.Name,
		Surname:      c.Surname,
		Email:        c.Email,
		Phone:        c.Phone,
		City:         c.City,
		ZipCode:      c.ZipCode,
		Experience:   c.Experience,
		Motivation:   c.Motivation,
		Availability: c.Availability,
		Languages:    c.Languages,
	}
	if age := strings.TrimSpace(c.Age); age != "" {
		n, err := strconv.Atoi(age)
		if err != nil {
			return UserInput{}, apperrors.Validation(fmt.Sprintf("invalid age %q", c.Age))
		}
		input.Age = &n
	}
	return input, nil
}

// FindUserByEmail looks a user up by email, ignoring case
func FindUserByEmail(ctx context.Context, store db.UserStore, logger *zap.Logger, email string) (*db.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, apperrors.Validation("email is required")
	}

	user, err := store.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}
	logger.Debug("Found user by email", zap.String("user_id", user.ID))
	return user, nil
}

// ListUsers returns every user, newest first
func ListUsers(ctx context.Context, store db.UserStore, logger *zap.Logger) ([]db.User, error) {
	users, err := store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch users: %w", err)
	}
	logger.Debug("Found users", zap.Int("count", len(users)))
	return users, nil
}

// UserDeletionStore defines the database operations needed to delete a user
type UserDeletionStore interface {
	GetUser(ctx context.Context, id string) (*db.User, error)
	DeleteUser(ctx context.Context, id string) error
	ListSlots(ctx context.Context, filter db.SlotFilter) ([]db.Slot, error)
	UpdateSlotAtomically(ctx context.Context, id string, fn func(*db.Slot) error) (*db.Slot, error)
	DeleteAttendanceForUser(ctx context.Context, userID string) error
}

// DeleteUser removes a user from every slot, deletes its attendance and then the user
func DeleteUser(ctx context.Context, store UserDeletionStore, logger *zap.Logger, userID string) error {
	logger.Debug("Deleting user", zap.String("user_id", userID))

	if _, err := store.GetUser(ctx, userID); err != nil {
		return fmt.Errorf("failed to fetch user: %w", err)
	}

	slots, err := store.ListSlots(ctx, db.SlotFilter{UserID: userID})
	if err != nil {
		return fmt.Errorf("failed to fetch user slots: %w", err)
	}
	for _, s := range slots {
		if _, err := store.UpdateSlotAtomically(ctx, s.ID, func(slot *db.Slot) error {
			if slot.Unregister(userID) {
				slot.UpdatedAt = now()
			}
			return nil
		}); err != nil {
			return fmt.Errorf("failed to remove user from slot %s: %w", s.ID, err)
		}
		logger.Debug("Removed user from slot", zap.String("slot_id", s.ID))
	}

	if err := store.DeleteAttendanceForUser(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete attendance: %w", err)
	}

	if err := store.DeleteUser(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	logger.Info("User deleted", zap.String("user_id", userID), zap.Int("slots_left", len(slots)))
	return nil
}
