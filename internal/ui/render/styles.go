package render

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/imamik/k8tenant/internal/entity"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#f9fafb"))
	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#3b82f6"))
	readyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#22c55e"))
	failedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#ef4444"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#eab308"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280"))
)

// Status marks stay ASCII so piped output lines up.
const (
	checkMark = "[OK]"
	crossMark = "[!!]"
	warnMark  = "[??]"
	pending   = "[  ]"
)

// healthMark is the styled list marker of one health value. Archived
// records have no health and render as pending.
type healthMark struct {
	mark  string
	style lipgloss.Style
}

var healthMarks = map[entity.Health]healthMark{
	entity.HealthOK:       {checkMark, readyStyle},
	entity.HealthDegraded: {crossMark, failedStyle},
	entity.HealthUnknown:  {warnMark, warningStyle},
}

func healthIcon(h entity.Health) string {
	m, ok := healthMarks[h]
	if !ok {
		return dimStyle.Render(pending)
	}
	return m.style.Render(m.mark)
}
