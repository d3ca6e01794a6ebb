package output

import "github.com/charmbracelet/lipgloss"

// Styles is the lipgloss style set shared by text-mode rendering. The
// Status* styles carry their icon via SetString so callers can use them
// directly as strings.
type Styles struct {
	Header1 lipgloss.Style
	Header2 lipgloss.Style
	Bold    lipgloss.Style
	Muted   lipgloss.Style
	Info    lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style

	StatusSuccess lipgloss.Style
	StatusFailed  lipgloss.Style
	StatusWarning lipgloss.Style
	StatusSkipped lipgloss.Style
}

// NewStyles builds the style set. With color disabled every style is a
// plain pass-through, so rendered output is byte-identical to its input
// apart from the status icons.
func NewStyles(color bool) *Styles {
	s := &Styles{
		Header1: lipgloss.NewStyle(),
		Header2: lipgloss.NewStyle(),
		Bold:    lipgloss.NewStyle(),
		Muted:   lipgloss.NewStyle(),
		Info:    lipgloss.NewStyle(),
		Success: lipgloss.NewStyle(),
		Warning: lipgloss.NewStyle(),
		Error:   lipgloss.NewStyle(),

		StatusSuccess: lipgloss.NewStyle().SetString("✓"),
		StatusFailed:  lipgloss.NewStyle().SetString("✗"),
		StatusWarning: lipgloss.NewStyle().SetString("!"),
		StatusSkipped: lipgloss.NewStyle().SetString("-"),
	}
	if !color {
		return s
	}

	s.Header1 = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	s.Header2 = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	s.Bold = lipgloss.NewStyle().Bold(true)
	s.Muted = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	s.Info = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	s.Success = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	s.Warning = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	s.Error = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))

	s.StatusSuccess = s.StatusSuccess.Foreground(lipgloss.Color("10"))
	s.StatusFailed = s.StatusFailed.Foreground(lipgloss.Color("9"))
	s.StatusWarning = s.StatusWarning.Foreground(lipgloss.Color("11"))
	s.StatusSkipped = s.StatusSkipped.Foreground(lipgloss.Color("8"))
	return s
}

// SeverityStyle maps a rule severity name to its display style.
func (s *Styles) SeverityStyle(severity string) lipgloss.Style {
	switch severity {
	case "blocking":
		return s.Error
	case "warning":
		return s.Warning
	default:
		return s.Muted
	}
}

// ScoreStyle colors a quality score: green from 90, yellow from 70,
// red below.
func (s *Styles) ScoreStyle(score int) lipgloss.Style {
	switch {
	case score >= 90:
		return s.Success
	case score >= 70:
		return s.Warning
	default:
		return s.Error
	}
}
