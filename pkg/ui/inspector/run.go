package inspector

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Run drives world in a full-screen inspector, stepping it every interval.
// maxTicks <= 0 runs until the user quits.
func Run(world World, interval time.Duration, maxTicks int) error {
	m := newModel(world, interval, maxTicks)
	program := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := program.Run(); err != nil {
		return err
	}

	fmt.Println(renderGoodbyeBanner(m.report.Tick))
	return nil
}

func renderGoodbyeBanner(ticks int) string {
	style := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("230")).
		Background(lipgloss.Color("24")).
		Padding(1, 2)

	return style.Render(fmt.Sprintf("dxmsg inspector closed after %d ticks", ticks))
}
