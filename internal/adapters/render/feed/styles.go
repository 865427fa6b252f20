package feed

import (
	"github.com/bnema/notifications-feed-cli/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

type styles struct {
	title      lipgloss.Style
	badge      lipgloss.Style
	live       lipgloss.Style
	poll       lipgloss.Style
	header     lipgloss.Style
	message    lipgloss.Style
	read       lipgloss.Style
	unreadDot  lipgloss.Style
	timestamp  lipgloss.Style
	selected   lipgloss.Style
	invite     lipgloss.Style
	empty      lipgloss.Style
	section    lipgloss.Style
	statusInfo lipgloss.Style
	statusErr  lipgloss.Style
	kinds      map[domain.Kind]lipgloss.Style
}

func newStyles() styles {
	return styles{
		title:      lipgloss.NewStyle().Bold(true),
		badge:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("231")).Background(lipgloss.Color("160")).Padding(0, 1),
		live:       lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42")),
		poll:       lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214")),
		header:     lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		message:    lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		read:       lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		unreadDot:  lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		timestamp:  lipgloss.NewStyle().Foreground(lipgloss.Color("243")),
		selected:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		invite:     lipgloss.NewStyle().Foreground(lipgloss.Color("141")),
		empty:      lipgloss.NewStyle().Faint(true),
		section:    lipgloss.NewStyle().MarginTop(1),
		statusInfo: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		statusErr:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
		kinds: map[domain.Kind]lipgloss.Style{
			domain.KindInfo:       lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
			domain.KindSuccess:    lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
			domain.KindWarning:    lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
			domain.KindError:      lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
			domain.KindTeamInvite: lipgloss.NewStyle().Foreground(lipgloss.Color("141")),
		},
	}
}

func (s styles) kind(kind domain.Kind) lipgloss.Style {
	if style, ok := s.kinds[kind]; ok {
		return style
	}
	return s.kinds[domain.KindInfo]
}
