package report

import "github.com/charmbracelet/lipgloss"

type styles struct {
	title    lipgloss.Style
	header   lipgloss.Style
	pass     lipgloss.Style
	fail     lipgloss.Style
	detail   lipgloss.Style
	meta     lipgloss.Style
	section  lipgloss.Style
	empty    lipgloss.Style
	diffAdd  lipgloss.Style
	diffDel  lipgloss.Style
	diffMeta lipgloss.Style
	advisory lipgloss.Style
	discrep  lipgloss.Style
	output   lipgloss.Style
}

func newStyles() styles {
	return styles{
		title:    lipgloss.NewStyle().Bold(true),
		header:   lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		pass:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42")),
		fail:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
		detail:   lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		meta:     lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		section:  lipgloss.NewStyle().MarginTop(1),
		empty:    lipgloss.NewStyle().Faint(true),
		diffAdd:  lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		diffDel:  lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
		diffMeta: lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		advisory: lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		discrep:  lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		output:   lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
	}
}
