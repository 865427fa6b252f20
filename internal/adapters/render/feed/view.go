package feed

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bnema/notifications-feed-cli/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

// maxBadge is the largest unread count shown as a number.
const maxBadge = 99

type RenderOptions struct {
	Now   time.Time
	State domain.ConnectionState
	// Selected is the highlighted row, or -1 for none.
	Selected int
}

func renderView(feed domain.Feed, opts RenderOptions, s styles) string {
	lines := []string{headerLine(feed, opts.State, s)}

	if feed.Len() == 0 {
		lines = append(lines, s.section.Render(s.empty.Render("No notifications yet.")))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	rows := make([]string, 0, feed.Len())
	for i, item := range feed.Items {
		rows = append(rows, renderItem(item, i == opts.Selected, opts.Now, s))
	}
	lines = append(lines, s.section.Render(lipgloss.JoinVertical(lipgloss.Left, rows...)))

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func headerLine(feed domain.Feed, state domain.ConnectionState, s styles) string {
	parts := []string{s.title.Render("Notifications")}
	if badge := BadgeLabel(feed.Unread); badge != "" {
		parts = append(parts, " ", s.badge.Render(badge))
	}
	parts = append(parts, " ", modeIndicator(state, s))
	parts = append(parts, " ", s.header.Render(fmt.Sprintf("%d unread of %d", feed.Unread, feed.Len())))

	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func renderItem(item domain.Notification, selected bool, now time.Time, s styles) string {
	cursor := "  "
	if selected {
		cursor = s.selected.Render("> ")
	}

	marker := " "
	message := s.message
	if item.IsRead {
		message = s.read
	} else {
		marker = s.unreadDot.Render("•")
	}

	line := lipgloss.JoinHorizontal(
		lipgloss.Top,
		cursor,
		marker,
		" ",
		s.kind(item.Kind).Render(KindIcon(item.Kind)),
		" ",
		message.Render(singleLine(item.Message)),
	)
	if when := RelativeTime(item.Timestamp, now); when != "" {
		line += " " + s.timestamp.Render(when)
	}

	if item.Kind == domain.KindTeamInvite && item.Action != nil {
		line += "\n" + s.invite.Render(fmt.Sprintf("      invite to %s  [a] accept  [x] decline", projectLabel(*item.Action)))
	}

	return line
}

// BadgeLabel is the unread badge text: empty when nothing is unread and
// capped at "99+".
func BadgeLabel(unread int) string {
	switch {
	case unread <= 0:
		return ""
	case unread > maxBadge:
		return strconv.Itoa(maxBadge) + "+"
	default:
		return strconv.Itoa(unread)
	}
}

func ModeLabel(state domain.ConnectionState) string {
	if state.Mode() == domain.DeliveryLive {
		return "LIVE"
	}
	return "POLL"
}

func modeIndicator(state domain.ConnectionState, s styles) string {
	if state.Mode() == domain.DeliveryLive {
		return s.live.Render("● " + ModeLabel(state))
	}
	label := "○ " + ModeLabel(state)
	if state == domain.ConnectionConnecting {
		label += " (connecting)"
	}
	return s.poll.Render(label)
}

func KindIcon(kind domain.Kind) string {
	switch kind {
	case domain.KindSuccess:
		return "✔"
	case domain.KindWarning:
		return "⚠"
	case domain.KindError:
		return "✖"
	case domain.KindTeamInvite:
		return "✉"
	default:
		return "ℹ"
	}
}

// RelativeTime formats ts relative to now; a zero timestamp renders as "".
func RelativeTime(ts, now time.Time) string {
	if ts.IsZero() {
		return ""
	}
	if now.IsZero() {
		return ts.Local().Format("2006-01-02 15:04")
	}

	elapsed := now.Sub(ts)
	switch {
	case elapsed < time.Minute:
		return "just now"
	case elapsed < time.Hour:
		return fmt.Sprintf("%dm ago", int(elapsed.Minutes()))
	case elapsed < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(elapsed.Hours()))
	case elapsed < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(elapsed.Hours()/24))
	default:
		return ts.Local().Format("02 Jan 2006")
	}
}

func projectLabel(action domain.ActionContext) string {
	if name := strings.TrimSpace(action.ProjectName); name != "" {
		return name
	}
	return "Project " + action.ProjectID
}

func singleLine(message string) string {
	return strings.Join(strings.Fields(message), " ")
}
