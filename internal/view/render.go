package view

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/vidinsight/client/internal/models"
	"github.com/vidinsight/client/internal/session"
	"github.com/vidinsight/client/internal/videos"
	"github.com/vidinsight/client/internal/wallet"
)

const (
	dateLayout = "Jan 2, 2006"
	columnGap  = 2
)

// Session prints who is signed in.
func Session(w io.Writer, state session.State) {
	switch {
	case state.User != nil:
		lines := []string{
			TitleStyle.Render(displayName(*state.User)),
			field("Email", state.User.Email),
			field("Credits", fmt.Sprintf("%d", state.User.Credits)),
		}
		if state.User.Provider != "" {
			lines = append(lines, field("Provider", state.User.Provider))
		}
		fmt.Fprintln(w, BoxStyle.Render(strings.Join(lines, "\n")))
	case state.IsAuthenticated:
		fmt.Fprintln(w, WarningStyle.Render("Signed in, profile unavailable"))
	default:
		fmt.Fprintln(w, LabelStyle.Render("Not signed in"))
	}
	if state.Error != "" {
		fmt.Fprintln(w, ErrorStyle.Render(state.Error))
	}
}

// Preview prints the metadata card shown before a submission.
func Preview(w io.Writer, state videos.PreviewState) {
	if state.Preview == nil {
		fmt.Fprintln(w, WarningStyle.Render("No preview for this URL"))
		return
	}
	meta := state.Preview
	lines := []string{TitleStyle.Render(meta.Title), field("Platform", string(meta.Platform))}
	if meta.Channel != "" {
		lines = append(lines, field("Channel", meta.Channel))
	} else if meta.Author != "" {
		lines = append(lines, field("Author", meta.Author))
	}
	if meta.Duration != "" {
		lines = append(lines, field("Duration", meta.Duration))
	}
	if meta.PublishedAt != "" {
		lines = append(lines, field("Published", meta.PublishedAt))
	}
	if meta.Thumbnail != "" {
		lines = append(lines, field("Thumbnail", meta.Thumbnail))
	}
	fmt.Fprintln(w, BoxStyle.Render(strings.Join(lines, "\n")))
	if state.Advisory != "" {
		fmt.Fprintln(w, WarningStyle.Render(state.Advisory))
	}
}

// Submissions prints the submission list as a table.
func Submissions(w io.Writer, rows []models.Submission) {
	if len(rows) == 0 {
		fmt.Fprintln(w, LabelStyle.Render("No submissions yet."))
		return
	}

	header := []string{"ID", "STATUS", "PLATFORM", "SUBMITTED", "TITLE"}
	cells := make([][]string, 0, len(rows))
	for _, row := range rows {
		cells = append(cells, []string{
			row.ID.String(),
			StatusBadge(row.Status),
			row.Platform,
			formatDate(row.CreatedAt),
			row.Title,
		})
	}
	fmt.Fprintln(w, table(header, cells))
}

// Submission prints a single video with its analysis.
func Submission(w io.Writer, sub models.Submission) {
	fmt.Fprintln(w, TitleStyle.Render(sub.Title))
	fmt.Fprintln(w, field("Status", StatusBadge(sub.Status)))
	if sub.Platform != "" {
		fmt.Fprintln(w, field("Platform", sub.Platform))
	}
	if sub.Duration != "" {
		fmt.Fprintln(w, field("Duration", sub.Duration.String()))
	}
	if sub.VideoURL != "" {
		fmt.Fprintln(w, field("URL", sub.VideoURL))
	}
	if sub.ErrorMessage != "" {
		fmt.Fprintln(w, ErrorStyle.Render(sub.ErrorMessage))
	}

	if sub.Summary.Text != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, TitleStyle.Render("Summary"))
		fmt.Fprintln(w, sub.Summary.Text)
		for _, m := range sub.Summary.Metrics {
			fmt.Fprintln(w, field(m.Label, m.Value))
		}
	}
	for _, section := range sub.Insights.Sections {
		fmt.Fprintln(w)
		fmt.Fprintln(w, TitleStyle.Render(section.Title))
		for _, item := range section.Items {
			fmt.Fprintln(w, "• "+item.Text)
		}
	}
	if len(sub.Transcript) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, TitleStyle.Render("Transcript"))
		for _, block := range sub.Transcript {
			fmt.Fprintln(w, LabelStyle.Render(block.Time)+" "+block.Text)
		}
	}
}

// Credits prints the wallet summary and the filtered transactions.
func Credits(w io.Writer, summary wallet.Summary, shown []models.Transaction, total int) {
	lines := []string{
		TitleStyle.Render(fmt.Sprintf("%d credits", summary.Credits)),
		field("Estimated", fmt.Sprintf("~%d videos", summary.EstimatedSubmissionsLeft)),
		field("Purchased", fmt.Sprintf("%d", summary.TotalPurchased)),
		field("Used", fmt.Sprintf("%d", summary.TotalUsed)),
	}
	if summary.LastTransactionAt != nil {
		lines = append(lines, field("Last activity", formatDate(*summary.LastTransactionAt)))
	}
	fmt.Fprintln(w, BoxStyle.Render(strings.Join(lines, "\n")))

	if len(shown) == 0 {
		fmt.Fprintln(w, LabelStyle.Render("No transactions found."))
		return
	}
	header := []string{"DATE", "TYPE", "AMOUNT", "STATUS", "DESCRIPTION"}
	cells := make([][]string, 0, len(shown))
	for _, tx := range shown {
		amount := wallet.FormatAmount(tx.Amount)
		if tx.Amount < 0 {
			amount = ErrorStyle.Render(amount)
		} else {
			amount = SuccessStyle.Render(amount)
		}
		cells = append(cells, []string{formatDate(tx.CreatedAt), string(tx.Type), amount, tx.Status, tx.Description})
	}
	fmt.Fprintln(w, table(header, cells))
	fmt.Fprintln(w, LabelStyle.Render(fmt.Sprintf("Showing %d of %d transactions", len(shown), total)))
}

// Update prints one status poll result.
func Update(w io.Writer, id string, status models.SubmissionStatus, progress *int, err error) {
	line := fmt.Sprintf("%s %s", id, StatusBadge(status))
	if progress != nil {
		line += fmt.Sprintf(" %d%%", *progress)
	}
	if err != nil {
		line += " " + ErrorStyle.Render(err.Error())
	}
	fmt.Fprintln(w, line)
}

func field(label, value string) string {
	return LabelStyle.Render(label+":") + " " + value
}

func displayName(u models.User) string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(dateLayout)
}

func table(header []string, rows [][]string) string {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if cw := lipgloss.Width(cell); cw > widths[i] {
				widths[i] = cw
			}
		}
	}

	render := func(cells []string, style lipgloss.Style) string {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			parts[i] = style.Width(widths[i] + columnGap).Render(cell)
		}
		return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
	}

	head := lipgloss.NewStyle().Bold(true).PaddingRight(columnGap)
	body := lipgloss.NewStyle().PaddingRight(columnGap)
	lines := []string{render(header, head)}
	for _, row := range rows {
		lines = append(lines, render(row, body))
	}
	return strings.Join(lines, "\n")
}
