package postgres

import (
	"context"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/jakechorley/promoter-slots/pkg/apperrors"
	"github.com/jakechorley/promoter-slots/pkg/db"
)

var userColumns = []string{
	"id", "name", "surname", "email", "phone", "age", "city", "zip_code", "experience", "motivation",
	"availability", "languages", "slot_id", "state", "attended", "approved_at", "approved_by",
	"rejection_reason", "approval_email_sent", "imported", "created_at", "updated_at",
}

func scanUser(row pgx.Row) (*db.User, error) {
	var u db.User
	var slotID *string
	err := row.Scan(&u.ID, &u.Name, &u.Surname, &u.Email, &u.Phone, &u.Age, &u.City, &u.ZipCode, &u.Experience,
		&u.Motivation, &u.Availability, &u.Languages, &slotID, &u.State, &u.Attended, &u.ApprovedAt, &u.ApprovedBy,
		&u.RejectionReason, &u.ApprovalEmailSent, &u.Imported, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.SlotID = deref(slotID)
	return &u, nil
}

func (d *DB) getUserWhere(ctx context.Context, pred sq.Sqlizer) (*db.User, error) {
	query, args, err := d.sb.Select(userColumns...).From("app_user").Where(pred).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build user query: %w", err)
	}

	u, err := scanUser(d.pool.QueryRow(ctx, query, args...))
	if isNoRows(err) {
		return nil, apperrors.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return u, nil
}

// GetUser retrieves a user by ID
func (d *DB) GetUser(ctx context.Context, id string) (*db.User, error) {
	return d.getUserWhere(ctx, sq.Eq{"id": id})
}

// GetUserByEmail retrieves a user by email, ignoring case
func (d *DB) GetUserByEmail(ctx context.Context, email string) (*db.User, error) {
	return d.getUserWhere(ctx, sq.Expr("lower(email) = ?", strings.ToLower(strings.TrimSpace(email))))
}

// ListUsers retrieves all users, newest first
func (d *DB) ListUsers(ctx context.Context) ([]db.User, error) {
	return d.listUsersWhere(ctx, nil)
}

// ListUsersByIDs retrieves the users with the given IDs
func (d *DB) ListUsersByIDs(ctx context.Context, ids []string) ([]db.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return d.listUsersWhere(ctx, sq.Eq{"id": ids})
}

func (d *DB) listUsersWhere(ctx context.Context, pred sq.Sqlizer) ([]db.User, error) {
	builder := d.sb.Select(userColumns...).From("app_user").OrderBy("created_at DESC")
	if pred != nil {
		builder = builder.Where(pred)
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build users query: %w", err)
	}

	rows, err := d.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []db.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return users, nil
}

// InsertUser inserts a new user
func (d *DB) InsertUser(ctx context.Context, user *db.User) error {
	query, args, err := d.sb.Insert("app_user").
		Columns(userColumns...).
		Values(user.ID, user.Name, user.Surname, strings.ToLower(user.Email), user.Phone, user.Age, user.City,
			user.ZipCode, user.Experience, user.Motivation, user.Availability, user.Languages, nullable(user.SlotID),
			user.State, user.Attended, user.ApprovedAt, user.ApprovedBy, user.RejectionReason,
			user.ApprovalEmailSent, user.Imported, user.CreatedAt, user.UpdatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build user insert: %w", err)
	}

	_, err = d.pool.Exec(ctx, query, args...)
	if isDuplicateConstraintError(err, "app_user_email_key") {
		return apperrors.ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// UpdateUser writes every mutable field of the user
func (d *DB) UpdateUser(ctx context.Context, user *db.User) error {
	query, args, err := d.sb.Update("app_user").
		SetMap(map[string]any{
			"name":                user.Name,
			"surname":             user.Surname,
			"email":               strings.ToLower(user.Email),
			"phone":               user.Phone,
			"age":                 user.Age,
			"city":                user.City,
			"zip_code":            user.ZipCode,
			"experience":          user.Experience,
			"motivation":          user.Motivation,
			"availability":        user.Availability,
			"languages":           user.Languages,
			"slot_id":             nullable(user.SlotID),
			"state":               user.State,
			"attended":            user.Attended,
			"approved_at":         user.ApprovedAt,
			"approved_by":         user.ApprovedBy,
			"rejection_reason":    user.RejectionReason,
			"approval_email_sent": user.ApprovalEmailSent,
			"updated_at":          user.UpdatedAt,
		}).
		Where(sq.Eq{"id": user.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build user update: %w", err)
	}

	tag, err := d.pool.Exec(ctx, query, args...)
	if isDuplicateConstraintError(err, "app_user_email_key") {
		return apperrors.ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

// DeleteUser deletes a user. Registrations and attendance rows cascade.
func (d *DB) DeleteUser(ctx context.Context, id string) error {
	tag, err := d.pool.Exec(ctx, `DELETE FROM app_user WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}
