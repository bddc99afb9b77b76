package services

import (
	"context"
	"fmt"
	"html"

	"go.uber.org/zap"

	"github.com/jakechorley/promoter-slots/internal/config"
	"github.com/jakechorley/promoter-slots/pkg/db"
)

const (
	confirmationSubject = "✅ Confirmed: Your Brand Promoter Session"
	approvalSubject     = "¡Felicitaciones! Has sido aprobada para el Programa de Promotoras"
)

// NotificationResult represents the result of a notification run
type NotificationResult struct {
	Outcomes []db.NotificationOutcome
	Sent     int
	Failed   []FailedEmail
}

// SlotNotificationStore defines the database operations needed to send slot notifications
type SlotNotificationStore interface {
	GetSlot(ctx context.Context, id string) (*db.Slot, error)
	ListUsersByIDs(ctx context.Context, ids []string) ([]db.User, error)
	InsertNotificationOutcome(ctx context.Context, outcome *db.NotificationOutcome) error
}

// SendConfirmationNotifications emails every registered user of the slot its date,
// time and meeting link. A failed send is logged and recorded and does not stop the loop.
func SendConfirmationNotifications(
	ctx context.Context,
	store SlotNotificationStore,
	providers Providers,
	cfg *config.Config,
	logger *zap.Logger,
	slotID string,
) (*NotificationResult, error) {
	logger.Debug("Sending confirmation notifications", zap.String("slot_id", slotID))

	slot, err := store.GetSlot(ctx, slotID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch slot: %w", err)
	}

	users, err := store.ListUsersByIDs(ctx, slot.UserIDs())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch registered users: %w", err)
	}
	logger.Debug("Found registered users", zap.Int("count", len(users)))

	result := &NotificationResult{
		Outcomes: []db.NotificationOutcome{},
		Failed:   []FailedEmail{},
	}

	// The mailer is only built when someone has an address to send to
	var mailer Mailer
	var mailerErr error
	mailerLoaded := false

	for i := range users {
		user := &users[i]
		outcome := db.NotificationOutcome{
			ID:        newID(),
			Kind:      db.NotificationConfirmation,
			UserID:    user.ID,
			SlotID:    slot.ID,
			Recipient: user.Email,
		}

		if user.Email == "" {
			logger.Debug("User has no email, skipping", zap.String("user_id", user.ID))
			outcome.Status = db.NotificationSkipped
			result.Outcomes = append(result.Outcomes, recordOutcome(ctx, store, logger, outcome))
			continue
		}

		if !mailerLoaded {
			mailer, mailerErr = providers.Mailer(ctx)
			mailerLoaded = true
			if mailerErr != nil {
				logger.Warn("Failed to create mailer", zap.Error(mailerErr))
			}
		}

		err := mailerErr
		if err == nil {
			err = sendWithTimeout(ctx, mailer, cfg, user.Email, confirmationSubject, confirmationBody(user, slot))
		}
		if err != nil {
			logger.Error("Failed to send confirmation email",
				zap.String("user_id", user.ID),
				zap.String("email", user.Email),
				zap.Error(err))
			outcome.Status = db.NotificationFailed
			outcome.Error = err.Error()
			result.Failed = append(result.Failed, FailedEmail{UserID: user.ID, Email: user.Email, Error: err.Error()})
		} else {
			logger.Info("Confirmation email sent",
				zap.String("user_id", user.ID),
				zap.String("email", user.Email))
			outcome.Status = db.NotificationSent
			result.Sent++
		}
		result.Outcomes = append(result.Outcomes, recordOutcome(ctx, store, logger, outcome))
	}

	logger.Info("Confirmation notifications completed",
		zap.String("slot_id", slot.ID),
		zap.Int("sent", result.Sent),
		zap.Int("failed", len(result.Failed)))

	return result, nil
}

// OutcomeRecorder stores notification outcomes
type OutcomeRecorder interface {
	InsertNotificationOutcome(ctx context.Context, outcome *db.NotificationOutcome) error
}

// sendApprovalNotification emails the approval message to a user and records the outcome
func sendApprovalNotification(
	ctx context.Context,
	store OutcomeRecorder,
	providers Providers,
	cfg *config.Config,
	logger *zap.Logger,
	user *db.User,
) db.NotificationOutcome {
	outcome := db.NotificationOutcome{
		ID:        newID(),
		Kind:      db.NotificationApproval,
		UserID:    user.ID,
		SlotID:    user.SlotID,
		Recipient: user.Email,
	}

	if user.Email == "" {
		outcome.Status = db.NotificationSkipped
		return recordOutcome(ctx, store, logger, outcome)
	}

	mailer, err := providers.Mailer(ctx)
	if err == nil {
		err = sendWithTimeout(ctx, mailer, cfg, user.Email, approvalSubject, approvalBody(user))
	}
	if err != nil {
		logger.Error("Failed to send approval email",
			zap.String("user_id", user.ID),
			zap.String("email", user.Email),
			zap.Error(err))
		outcome.Status = db.NotificationFailed
		outcome.Error = err.Error()
	} else {
		logger.Info("Approval email sent", zap.String("user_id", user.ID), zap.String("email", user.Email))
		outcome.Status = db.NotificationSent
	}

	return recordOutcome(ctx, store, logger, outcome)
}

func sendWithTimeout(ctx context.Context, mailer Mailer, cfg *config.Config, to, subject, body string) error {
	sendCtx, cancel := providerContext(ctx, cfg)
	defer cancel()
	return mailer.SendEmail(sendCtx, to, subject, body)
}

// recordOutcome stamps and stores an outcome. A storage failure is only logged.
func recordOutcome(ctx context.Context, store OutcomeRecorder, logger *zap.Logger, outcome db.NotificationOutcome) db.NotificationOutcome {
	outcome.AttemptedAt = now()
	if err := store.InsertNotificationOutcome(ctx, &outcome); err != nil {
		logger.Warn("Failed to record notification outcome",
			zap.String("user_id", outcome.UserID),
			zap.String("kind", string(outcome.Kind)),
			zap.Error(err))
	}
	return outcome
}

func confirmationBody(user *db.User, slot *db.Slot) string {
	meetingLine := ""
	if slot.MeetingLink != "" {
		link := html.EscapeString(slot.MeetingLink)
		meetingLine = fmt.Sprintf(`<p><strong>Google Meet Link:</strong> <a href="%s">%s</a></p>`, link, link)
	}

	return fmt.Sprintf(`
		<html>
		<body>
			<div style="font-family: Arial, sans-serif; max-width: 480px; margin: 0 auto;">
				<p>Hi <strong>%s</strong>,</p>
				<p>Your appointment for the <strong>Brand Promoter Program</strong> has been <strong>successfully scheduled</strong> ✅.</p>
				<p>You will receive a Google Meet link before your session begins.</p>
				%s
				<p><strong>Date:</strong> %s<br>
				<strong>Time:</strong> %s - %s</p>
				<p>If you have any questions before your appointment, just reply to this email.</p>
				<p>We look forward to seeing you soon! 🎉</p>
			</div>
		</body>
		</html>`,
		html.EscapeString(user.Name),
		meetingLine,
		slot.Date.Format("Monday, January 2, 2006"),
		slot.StartTime, slot.EndTime)
}

func approvalBody(user *db.User) string {
	return fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
			<h2 style="color: #ED1F80; text-align: center;">¡Felicitaciones!</h2>
			<p>Estimada <strong>%s</strong>,</p>
			<p>Nos complace informarte que has sido <strong>aprobada</strong> para participar en nuestro Programa de Promotoras.</p>
			<div style="background-color: #f8f9fa; padding: 20px; border-radius: 8px; margin: 20px 0;">
				<h3 style="color: #ED1F80; margin-top: 0;">Próximos pasos:</h3>
				<p>✅ <strong>Prepárate para trabajar:</strong> Revisa toda la información que te hemos proporcionado sobre el programa.</p>
				<p>✅ <strong>Mantente atenta:</strong> Recibirás una confirmación por WhatsApp indicando el día exacto que debes presentarte.</p>
				<p>✅ <strong>Documentación:</strong> Ten listos todos los documentos requeridos para tu primer día.</p>
			</div>
			<p>Si tienes alguna pregunta, no dudes en contactarnos.</p>
			<p>¡Bienvenida al equipo!</p>
			<p style="margin-top: 30px;"><strong>Equipo del Programa de Promotoras</strong></p>
		</div>`,
		html.EscapeString(user.FullName()))
}
