package view

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/vidinsight/client/internal/models"
)

const (
	colorPrimary = "#7D56F4"
	colorSuccess = "#04B575"
	colorWarning = "#E5A00D"
	colorError   = "#FF0000"
	colorInfo    = "#626262"
	colorBorder  = "#874BFD"
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(colorPrimary)).
			MarginBottom(1)

	LabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorInfo))

	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorError))

	WarningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorWarning))

	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorSuccess))

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(colorBorder)).
			Padding(0, 1)

	badgeStyle = lipgloss.NewStyle().Padding(0, 1).Bold(true)
)

var statusColors = map[models.SubmissionStatus]string{
	models.StatusPending:      colorInfo,
	models.StatusProcessing:   colorPrimary,
	models.StatusDownloaded:   colorPrimary,
	models.StatusTranscribing: colorWarning,
	models.StatusCompleted:    colorSuccess,
	models.StatusFailed:       colorError,
}

// StatusBadge renders status as a colored label.
func StatusBadge(status models.SubmissionStatus) string {
	color, ok := statusColors[status]
	if !ok {
		color = colorInfo
	}
	label := string(status)
	if label == "" {
		label = "unknown"
	}
	return badgeStyle.Foreground(lipgloss.Color(color)).Render(label)
}
