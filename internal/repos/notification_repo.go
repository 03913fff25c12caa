package repos

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"quickbite/internal/domain"
)

type NotificationRepo struct{ db sqlx.ExtContext }

func NewNotificationRepo(db sqlx.ExtContext) *NotificationRepo { return &NotificationRepo{db: db} }

func (r *NotificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt == "" {
		n.CreatedAt = now()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO notifications(id, user_id, kind, title, body, order_id, created_at)
		VALUES(?, ?, ?, ?, ?, ?, ?)
	`, n.ID, n.UserID, n.Kind, n.Title, n.Body, n.OrderID, n.CreatedAt)
	return err
}

func (r *NotificationRepo) List(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var out []domain.Notification
	err := sqlx.SelectContext(ctx, r.db, &out, `
		SELECT id, user_id, kind, title, body, order_id, COALESCE(read_at,'') AS read_at, created_at
		FROM notifications
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, userID, limit)
	return out, err
}

func (r *NotificationRepo) UnreadCount(ctx context.Context, userID string) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, r.db, &n, `SELECT COUNT(*) FROM notifications WHERE user_id = ? AND read_at IS NULL`, userID)
	return n, err
}

// MarkRead marks one of the user's notifications read. Re-reading is a no-op.
func (r *NotificationRepo) MarkRead(ctx context.Context, id, userID string) error {
	var exists int
	if err := sqlx.GetContext(ctx, r.db, &exists, `SELECT 1 FROM notifications WHERE id = ? AND user_id = ?`, id, userID); err != nil {
		return notFound(err, "notification")
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE notifications SET read_at = ? WHERE id = ? AND read_at IS NULL
	`, now(), id)
	return err
}

func (r *NotificationRepo) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE notifications SET read_at = ? WHERE user_id = ? AND read_at IS NULL
	`, now(), userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UpsertPushToken binds token to userID, taking it over from any previous owner.
func (r *NotificationRepo) UpsertPushToken(ctx context.Context, t *domain.PushToken) error {
	if t.CreatedAt == "" {
		t.CreatedAt = now()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO push_tokens(token, user_id, platform, created_at)
		VALUES(?, ?, ?, ?)
		ON CONFLICT(token) DO UPDATE SET user_id = excluded.user_id, platform = excluded.platform
	`, t.Token, t.UserID, t.Platform, t.CreatedAt)
	return err
}

func (r *NotificationRepo) DeletePushToken(ctx context.Context, token, userID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM push_tokens WHERE token = ? AND user_id = ?`, token, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(errNoRows, "push token")
	}
	return nil
}

func (r *NotificationRepo) PushTokens(ctx context.Context, userID string) ([]domain.PushToken, error) {
	var out []domain.PushToken
	err := sqlx.SelectContext(ctx, r.db, &out, `
		SELECT token, user_id, platform, created_at FROM push_tokens WHERE user_id = ? ORDER BY created_at
	`, userID)
	return out, err
}
