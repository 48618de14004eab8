package inbox

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mauv0809/clubledger/internal/apperr"
	"github.com/mauv0809/clubledger/internal/notifier"
)

const defaultLimit = 50

// Notification is a stored copy of a message sent to one member.
type Notification struct {
	ID        string         `json:"id"`
	MemberID  string         `json:"memberId"`
	Message   string         `json:"message"`
	Level     notifier.Level `json:"type"`
	Link      string         `json:"linkUrl,omitempty"`
	IsRead    bool           `json:"isRead"`
	CreatedAt time.Time      `json:"createdAt"`
}

var _ notifier.Notifier = (*Inbox)(nil)

// Inbox persists member notifications so they can be read later.
type Inbox struct {
	db  *sql.DB
	now func() time.Time
}

func New(db *sql.DB) *Inbox {
	return &Inbox{db: db, now: time.Now}
}

func (i *Inbox) Notify(ctx context.Context, memberID string, msg notifier.Message) error {
	level := msg.Level
	if level == "" {
		level = notifier.LevelInfo
	}
	_, err := i.db.ExecContext(ctx, `
		INSERT INTO notifications (id, member_id, message, type, link_url, is_read, created_at)
		VALUES (?, ?, ?, ?, NULLIF(?, ''), 0, ?)`,
		uuid.New().String(), memberID, msg.Text, string(level), msg.Link, i.now().UTC().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to store notification: %w", err)
	}
	return nil
}

// Broadcast is not stored; broadcasts are live-only.
func (i *Inbox) Broadcast(ctx context.Context, msg notifier.Message) error {
	return nil
}

// List returns a member's notifications, newest first.
func (i *Inbox) List(ctx context.Context, memberID string, unreadOnly bool, limit int) ([]Notification, error) {
	if limit <= 0 || limit > defaultLimit {
		limit = defaultLimit
	}
	query := `
		SELECT id, member_id, message, type, COALESCE(link_url, ''), is_read, created_at
		FROM notifications WHERE member_id = ?`
	if unreadOnly {
		query += ` AND is_read = 0`
	}
	rows, err := i.db.QueryContext(ctx, query+` ORDER BY created_at DESC, rowid DESC LIMIT ?`, memberID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	list := []Notification{}
	for rows.Next() {
		var n Notification
		var createdAt int64
		if err := rows.Scan(&n.ID, &n.MemberID, &n.Message, &n.Level, &n.Link, &n.IsRead, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.CreatedAt = time.Unix(createdAt, 0).UTC()
		list = append(list, n)
	}
	return list, rows.Err()
}

// MarkRead marks one of the member's notifications as read.
func (i *Inbox) MarkRead(ctx context.Context, memberID, id string) error {
	res, err := i.db.ExecContext(ctx, `UPDATE notifications SET is_read = 1 WHERE id = ? AND member_id = ?`, id, memberID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFoundf("notification %s", id)
	}
	return nil
}

// MarkAllRead marks every unread notification of the member as read.
func (i *Inbox) MarkAllRead(ctx context.Context, memberID string) (int64, error) {
	res, err := i.db.ExecContext(ctx, `UPDATE notifications SET is_read = 1 WHERE member_id = ? AND is_read = 0`, memberID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return res.RowsAffected()
}

func (i *Inbox) UnreadCount(ctx context.Context, memberID string) (int, error) {
	var count int
	err := i.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications WHERE member_id = ? AND is_read = 0`, memberID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count notifications: %w", err)
	}
	return count, nil
}
