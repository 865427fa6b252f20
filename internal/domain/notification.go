package domain

import "time"

// FeedCapacity is the number of notifications the feed retains.
const FeedCapacity = 10

type NotificationID string

type Kind string

const (
	KindInfo       Kind = "info"
	KindSuccess    Kind = "success"
	KindWarning    Kind = "warning"
	KindError      Kind = "error"
	KindTeamInvite Kind = "team_invite"
	KindHeartbeat  Kind = "heartbeat"
)

func (k Kind) Valid() bool {
	switch k {
	case KindInfo, KindSuccess, KindWarning, KindError, KindTeamInvite, KindHeartbeat:
		return true
	default:
		return false
	}
}

// ActionContext is only present on team_invite notifications.
type ActionContext struct {
	ProjectID   string
	ProjectName string
}

type Notification struct {
	ID           NotificationID
	Kind         Kind
	Message      string
	TargetUserID string
	IsRead       bool
	Timestamp    time.Time
	Action       *ActionContext
}

func (n Notification) IsInviteFor(projectID string) bool {
	return n.Kind == KindTeamInvite && n.Action != nil && n.Action.ProjectID == projectID
}

// Feed is a read-only view of the reconciled notifications, most recent first.
type Feed struct {
	Items  []Notification
	Unread int
}

func (f Feed) Len() int {
	return len(f.Items)
}

func CountUnread(items []Notification) int {
	unread := 0
	for _, item := range items {
		if !item.IsRead {
			unread++
		}
	}
	return unread
}
