package inbox

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bnema/notifications-feed-cli/internal/domain"
)

// wireNotification accepts the field spellings the server uses on the
// inbox endpoint and on the push stream.
type wireNotification struct {
	ID          flexString `json:"id"`
	Type        string     `json:"type"`
	Message     string     `json:"message"`
	IsRead      bool       `json:"isRead"`
	Timestamp   wireTime   `json:"timestamp"`
	ProjectID   flexString `json:"projectId"`
	ProjectName string     `json:"projectName"`
	UserID      flexString `json:"UserID"`
	UserIDCamel flexString `json:"userId"`
	UserIDSnake flexString `json:"user_id"`
}

func (w wireNotification) toDomain() domain.Notification {
	kind := domain.Kind(strings.ToLower(strings.TrimSpace(w.Type)))
	if !kind.Valid() {
		kind = domain.KindInfo
	}

	notification := domain.Notification{
		ID:           domain.NotificationID(w.ID),
		Kind:         kind,
		Message:      w.Message,
		TargetUserID: firstNonEmpty(string(w.UserID), string(w.UserIDCamel), string(w.UserIDSnake)),
		IsRead:       w.IsRead,
		Timestamp:    time.Time(w.Timestamp),
	}
	if kind == domain.KindTeamInvite {
		notification.Action = &domain.ActionContext{
			ProjectID:   string(w.ProjectID),
			ProjectName: w.ProjectName,
		}
	}

	return notification
}

func decodeNotification(data []byte) (domain.Notification, error) {
	var wire wireNotification
	if err := json.Unmarshal(data, &wire); err != nil {
		return domain.Notification{}, fmt.Errorf("%w: %v", domain.ErrMalformedEvent, err)
	}
	return wire.toDomain(), nil
}

// flexString decodes identifiers that arrive either as strings or numbers.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*f = ""
		return nil
	}

	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(s))
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return fmt.Errorf("identifier must be a string or a number: %w", err)
	}
	*f = flexString(n.String())
	return nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// wireTime is display-only, so an unreadable value decodes to the zero time.
type wireTime time.Time

func (w *wireTime) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*w = wireTime{}
		return nil
	}

	if trimmed[0] != '"' {
		millis, err := strconv.ParseInt(string(trimmed), 10, 64)
		if err != nil {
			*w = wireTime{}
			return nil
		}
		*w = wireTime(time.UnixMilli(millis).UTC())
		return nil
	}

	var raw string
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return err
	}
	*w = wireTime(parseTimestamp(raw))
	return nil
}

func parseTimestamp(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}

	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed
		}
	}

	return time.Time{}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
