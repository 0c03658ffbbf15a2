package inspector

import "github.com/charmbracelet/lipgloss"

// theme groups reusable styles for inspector regions.
type theme struct {
	header     lipgloss.Style
	headerMeta lipgloss.Style
	divider    lipgloss.Style
	tab        lipgloss.Style
	tabActive  lipgloss.Style
	row        lipgloss.Style
	rowVetoed  lipgloss.Style
	register   lipgloss.Style
	deregister lipgloss.Style
	alive      lipgloss.Style
	dead       lipgloss.Style
	barFull    lipgloss.Style
	barEmpty   lipgloss.Style
	status     lipgloss.Style
	statusBusy lipgloss.Style
	statusDone lipgloss.Style
	hint       lipgloss.Style
	viewport   lipgloss.Style
}

// defaultTheme defines the retro terminal palette of the inspector.
func defaultTheme() theme {
	return theme{
		header: lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("24")),
		headerMeta: lipgloss.NewStyle().
			Foreground(lipgloss.Color("223")),
		divider: lipgloss.NewStyle().
			Foreground(lipgloss.Color("130")),
		tab: lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")).
			Padding(0, 1),
		tabActive: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("16")).
			Background(lipgloss.Color("214")).
			Padding(0, 1),
		row: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")),
		rowVetoed: lipgloss.NewStyle().
			Foreground(lipgloss.Color("203")).
			Strikethrough(true),
		register: lipgloss.NewStyle().
			Foreground(lipgloss.Color("114")),
		deregister: lipgloss.NewStyle().
			Foreground(lipgloss.Color("180")),
		alive: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("44")),
		dead: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),
		barFull: lipgloss.NewStyle().
			Foreground(lipgloss.Color("114")),
		barEmpty: lipgloss.NewStyle().
			Foreground(lipgloss.Color("238")),
		status: lipgloss.NewStyle().
			Foreground(lipgloss.Color("250")).
			Bold(true),
		statusBusy: lipgloss.NewStyle().
			Foreground(lipgloss.Color("222")).
			Bold(true),
		statusDone: lipgloss.NewStyle().
			Foreground(lipgloss.Color("114")).
			Bold(true),
		hint: lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")),
		viewport: lipgloss.NewStyle().
			Border(lipgloss.ThickBorder()).
			BorderForeground(lipgloss.Color("130")).
			Background(lipgloss.Color("233")).
			Padding(0, 1),
	}
}
