package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/jakechorley/promoter-slots/internal/config"
	"github.com/jakechorley/promoter-slots/pkg/apperrors"
	"github.com/jakechorley/promoter-slots/pkg/db"
)

// ApprovalStore defines the database operations needed by the approval workflow
type ApprovalStore interface {
	AttendanceServiceStore
	ListUsers(ctx context.Context) ([]db.User, error)
	InsertNotificationOutcome(ctx context.Context, outcome *db.NotificationOutcome) error
}

// AttendedMeeting is one meeting a candidate attended
type AttendedMeeting struct {
	SlotID    string
	Date      time.Time
	StartTime string
	EndTime   string
	MarkedAt  *time.Time
}

// Candidate is a user who attended at least one meeting
type Candidate struct {
	User     db.User
	Meetings []AttendedMeeting
}

func (c *Candidate) latestMeeting() time.Time {
	var latest time.Time
	for _, m := range c.Meetings {
		if m.Date.After(latest) {
			latest = m.Date
		}
	}
	return latest
}

// CandidateQuery narrows the candidate listing
type CandidateQuery struct {
	State db.UserState
	From  *time.Time // attended meeting date lower bound
	To    *time.Time // attended meeting date upper bound
}

// ListAttendedCandidates returns the users with at least one attended meeting,
// the most recent meeting first
func ListAttendedCandidates(ctx context.Context, store ApprovalStore, logger *zap.Logger, query CandidateQuery) ([]Candidate, error) {
	logger.Debug("Fetching attended candidates", zap.String("state", string(query.State)))

	attended := true
	entries, err := ListAttendance(ctx, store, logger, AttendanceQuery{Attended: &attended})
	if err != nil {
		return nil, err
	}

	order := []string{}
	byUser := make(map[string]*Candidate)
	for _, e := range entries {
		c, ok := byUser[e.User.ID]
		if !ok {
			c = &Candidate{User: e.User, Meetings: []AttendedMeeting{}}
			byUser[e.User.ID] = c
			order = append(order, e.User.ID)
		}
		c.Meetings = append(c.Meetings, AttendedMeeting{
			SlotID:    e.Slot.ID,
			Date:      e.Slot.Date,
			StartTime: e.Slot.StartTime,
			EndTime:   e.Slot.EndTime,
			MarkedAt:  e.Attendance.MarkedAt,
		})
	}

	candidates := make([]Candidate, 0, len(order))
	for _, id := range order {
		c := byUser[id]
		if query.State != "" && c.User.State != query.State {
			continue
		}
		if (query.From != nil || query.To != nil) && !attendedWithin(c.Meetings, query.From, query.To) {
			continue
		}
		candidates = append(candidates, *c)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].latestMeeting().After(candidates[j].latestMeeting())
	})

	logger.Debug("Found candidates", zap.Int("count", len(candidates)))
	return candidates, nil
}

func attendedWithin(meetings []AttendedMeeting, from, to *time.Time) bool {
	for _, m := range meetings {
		if from != nil && m.Date.Before(dateOnly(*from)) {
			continue
		}
		if to != nil && m.Date.After(dateOnly(*to)) {
			continue
		}
		return true
	}
	return false
}

// ApprovalResult represents the result of approving a user
type ApprovalResult struct {
	User *db.User
	// Nil when no email was attempted
	Notification *db.NotificationOutcome
}

// ApproveUser approves a user who attended at least one meeting and sends the
// approval email. A failed email is recorded and does not undo the approval.
// Approving an approved user only retries an email that was never sent.
func ApproveUser(
	ctx context.Context,
	store ApprovalStore,
	providers Providers,
	cfg *config.Config,
	logger *zap.Logger,
	userID, approvedBy string,
) (*ApprovalResult, error) {
	logger.Debug("Approving user", zap.String("user_id", userID))

	user, err := store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}

	attended := true
	records, err := store.ListAttendance(ctx, db.AttendanceFilter{UserID: userID, Attended: &attended})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch attendance: %w", err)
	}
	if len(records) == 0 {
		return nil, apperrors.ErrNotAttended
	}

	result := &ApprovalResult{User: user}
	if user.State == db.UserStateApproved {
		if user.ApprovalEmailSent {
			logger.Info("User already approved", zap.String("user_id", userID))
			return result, nil
		}
	} else {
		if err := user.Approve(approvedBy, now()); err != nil {
			return nil, err
		}
		user.UpdatedAt = now()
		if err := store.UpdateUser(ctx, user); err != nil {
			return nil, fmt.Errorf("failed to update user: %w", err)
		}
		logger.Info("User approved", zap.String("user_id", userID), zap.String("approved_by", approvedBy))
	}

	outcome := sendApprovalNotification(ctx, store, providers, cfg, logger, user)
	result.Notification = &outcome
	if outcome.Status == db.NotificationSent {
		user.ApprovalEmailSent = true
		user.UpdatedAt = now()
		if err := store.UpdateUser(ctx, user); err != nil {
			logger.Warn("Failed to record approval email", zap.String("user_id", userID), zap.Error(err))
		}
	}

	return result, nil
}

// RejectUser rejects a user with a reason
func RejectUser(ctx context.Context, store db.UserStore, logger *zap.Logger, userID, reason, rejectedBy string) (*db.User, error) {
	logger.Debug("Rejecting user", zap.String("user_id", userID))

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperrors.Validation("a rejection reason is required")
	}

	user, err := store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}

	if err := user.Reject(reason, rejectedBy, now()); err != nil {
		return nil, err
	}
	user.UpdatedAt = now()
	if err := store.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	logger.Info("User rejected",
		zap.String("user_id", userID),
		zap.String("rejected_by", rejectedBy),
		zap.String("reason", reason))
	return user, nil
}

// BulkApproveItem is the outcome of approving one user in a bulk run
type BulkApproveItem struct {
	UserID    string
	Approved  bool
	EmailSent bool
	Error     string
}

// BulkApproveResult represents the result of a bulk approval
type BulkApproveResult struct {
	Items    []BulkApproveItem
	Approved int
	Failed   int
}

// BulkApprove approves each user independently. One failure does not affect the others.
func BulkApprove(
	ctx context.Context,
	store ApprovalStore,
	providers Providers,
	cfg *config.Config,
	logger *zap.Logger,
	userIDs []string,
	approvedBy string,
) (*BulkApproveResult, error) {
	if len(userIDs) == 0 {
		return nil, apperrors.Validation("at least one user id is required")
	}
	logger.Info("Starting bulk approval", zap.Int("count", len(userIDs)))

	result := &BulkApproveResult{Items: make([]BulkApproveItem, 0, len(userIDs))}
	var errs error
	for _, userID := range userIDs {
		item := BulkApproveItem{UserID: userID}
		approval, err := ApproveUser(ctx, store, providers, cfg, logger, userID, approvedBy)
		if err != nil {
			logger.Warn("Failed to approve user", zap.String("user_id", userID), zap.Error(err))
			errs = multierr.Append(errs, fmt.Errorf("user %s: %w", userID, err))
			item.Error = err.Error()
			result.Failed++
		} else {
			item.Approved = true
			item.EmailSent = approval.User.ApprovalEmailSent
			result.Approved++
		}
		result.Items = append(result.Items, item)
	}

	if errs != nil {
		logger.Warn("Bulk approval finished with failures", zap.Error(errs))
	}
	logger.Info("Bulk approval completed",
		zap.Int("approved", result.Approved),
		zap.Int("failed", result.Failed))

	return result, nil
}

// ApprovalStatistics counts users by approval outcome
type ApprovalStatistics struct {
	Approved    int
	Rejected    int
	MeetingHeld int
	// Users who attended a meeting and are neither approved nor rejected
	PendingApproval int
}

// GetApprovalStatistics returns the approval counts
func GetApprovalStatistics(ctx context.Context, store ApprovalStore, logger *zap.Logger) (*ApprovalStatistics, error) {
	users, err := store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch users: %w", err)
	}

	attended := true
	records, err := store.ListAttendance(ctx, db.AttendanceFilter{Attended: &attended})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch attendance: %w", err)
	}
	attendedUsers := make(map[string]bool, len(records))
	for _, r := range records {
		attendedUsers[r.UserID] = true
	}

	stats := &ApprovalStatistics{}
	for _, u := range users {
		switch u.State {
		case db.UserStateApproved:
			stats.Approved++
			continue
		case db.UserStateRejected:
			stats.Rejected++
			continue
		case db.UserStateMeetingHeld:
			stats.MeetingHeld++
		}
		if attendedUsers[u.ID] {
			stats.PendingApproval++
		}
	}

	logger.Debug("Approval statistics",
		zap.Int("approved", stats.Approved),
		zap.Int("rejected", stats.Rejected),
		zap.Int("pending", stats.PendingApproval))
	return stats, nil
}

// ListApprovedUsers returns every approved user
func ListApprovedUsers(ctx context.Context, store db.UserStore, logger *zap.Logger) ([]db.User, error) {
	users, err := store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch users: %w", err)
	}

	approved := []db.User{}
	for _, u := range users {
		if u.State == db.UserStateApproved {
			approved = append(approved, u)
		}
	}
	logger.Debug("Found approved users", zap.Int("count", len(approved)))
	return approved, nil
}
