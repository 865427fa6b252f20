package sandbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bnema/notifications-feed-cli/internal/domain"
	_ "modernc.org/sqlite"
)

var ErrInviteNotFound = errors.New("invite not found")

// Store keeps sandbox notifications and project memberships in SQLite.
type Store struct {
	db *sql.DB
}

// OpenStore opens dsn with the pure-Go SQLite driver. An empty dsn means an
// in-memory database that lives as long as the store.
func OpenStore(ctx context.Context, dsn string) (*Store, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		dsn = ":memory:"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sandbox database: %w", err)
	}
	// Every connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	if err := initSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Insert(ctx context.Context, n domain.Notification) error {
	var projectID, projectName string
	if n.Action != nil {
		projectID, projectName = n.Action.ProjectID, n.Action.ProjectName
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, type, message, project_id, project_name, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(n.ID), n.TargetUserID, string(n.Kind), n.Message, projectID, projectName, boolToInt(n.IsRead), n.Timestamp.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// ListRecent returns the newest notifications of userID first.
func (s *Store) ListRecent(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, type, message, project_id, project_name, is_read, created_at
		FROM notifications
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer func() { _ = rows.Close() }()

	list := make([]domain.Notification, 0, limit)
	for rows.Next() {
		var (
			id, owner, kind, message, projectID, projectName string
			isRead                                           int
			createdAt                                        int64
		)
		if err := rows.Scan(&id, &owner, &kind, &message, &projectID, &projectName, &isRead, &createdAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}

		n := domain.Notification{
			ID:           domain.NotificationID(id),
			Kind:         domain.Kind(kind),
			Message:      message,
			TargetUserID: owner,
			IsRead:       isRead != 0,
			Timestamp:    time.Unix(0, createdAt).UTC(),
		}
		if n.Kind == domain.KindTeamInvite {
			n.Action = &domain.ActionContext{ProjectID: projectID, ProjectName: projectName}
		}
		list = append(list, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}

	return list, nil
}

func (s *Store) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `UPDATE notifications SET is_read = 1 WHERE user_id = ? AND is_read = 0`, userID)
	if err != nil {
		return 0, fmt.Errorf("mark notifications read: %w", err)
	}
	return result.RowsAffected()
}

// AcceptInvite records the membership and deletes every invite of userID
// to projectID. It returns the project name carried by the invite.
func (s *Store) AcceptInvite(ctx context.Context, userID, projectID string, now time.Time) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin accept invite: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var projectName string
	err = tx.QueryRowContext(ctx, `
		SELECT project_name FROM notifications
		WHERE user_id = ? AND type = ? AND project_id = ?
		ORDER BY created_at DESC
		LIMIT 1`, userID, string(domain.KindTeamInvite), projectID).Scan(&projectName)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrInviteNotFound
	}
	if err != nil {
		return "", fmt.Errorf("find invite: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO memberships (project_id, user_id, joined_at) VALUES (?, ?, ?)`,
		projectID, userID, now.UnixNano()); err != nil {
		return "", fmt.Errorf("add membership: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM notifications WHERE user_id = ? AND type = ? AND project_id = ?`,
		userID, string(domain.KindTeamInvite), projectID); err != nil {
		return "", fmt.Errorf("delete invites: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit accept invite: %w", err)
	}
	return projectName, nil
}

func (s *Store) IsMember(ctx context.Context, projectID, userID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM memberships WHERE project_id = ? AND user_id = ?`, projectID, userID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return count > 0, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
