package main

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/termenv"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/mschirtzinger/taskboard/internal/types"
)

// columnWidth is the width of one board column, borders excluded.
const columnWidth = 28

var (
	colorAccent = lipgloss.AdaptiveColor{Light: "#0087AF", Dark: "#00D7FF"}
	colorPass   = lipgloss.AdaptiveColor{Light: "#008700", Dark: "#00FF87"}
	colorWarn   = lipgloss.AdaptiveColor{Light: "#AF8700", Dark: "#FFD700"}
	colorFail   = lipgloss.AdaptiveColor{Light: "#AF0000", Dark: "#FF5F5F"}
	colorMuted  = lipgloss.AdaptiveColor{Light: "#585858", Dark: "#6C6C6C"}

	styleAccent = lipgloss.NewStyle().Foreground(colorAccent)
	stylePass   = lipgloss.NewStyle().Foreground(colorPass)
	styleWarn   = lipgloss.NewStyle().Foreground(colorWarn)
	styleFail   = lipgloss.NewStyle().Foreground(colorFail)
	styleMuted  = lipgloss.NewStyle().Foreground(colorMuted)
	styleBold   = lipgloss.NewStyle().Bold(true)

	styleColumn = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorMuted).
			Width(columnWidth).
			Padding(0, 1)
)

var titleCaser = cases.Title(language.English)

// checkNoColor drops to plain ASCII output when NO_COLOR is set or the
// terminal is dumb.
func checkNoColor() {
	if _, ok := os.LookupEnv("NO_COLOR"); ok || os.Getenv("TERM") == "dumb" {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

func renderAccent(s string) string { return styleAccent.Render(s) }
func renderPass(s string) string   { return stylePass.Render(s) }
func renderWarn(s string) string   { return styleWarn.Render(s) }
func renderMuted(s string) string  { return styleMuted.Render(s) }

// columnTitle turns "in_progress" into "In Progress".
func columnTitle(s types.Status) string {
	return titleCaser.String(strings.ReplaceAll(string(s), "_", " "))
}

func priorityStyle(p *types.Priority) lipgloss.Style {
	if p == nil {
		return styleMuted
	}
	switch *p {
	case types.PriorityUrgent:
		return styleFail
	case types.PriorityHigh:
		return styleWarn
	case types.PriorityLow:
		return styleMuted
	}
	return lipgloss.NewStyle()
}

// truncate shortens s to width terminal cells.
func truncate(s string, width int) string {
	return runewidth.Truncate(s, width, "…")
}

// renderCard is one task line inside a column.
func renderCard(t *types.Task, width int) string {
	id := fmt.Sprintf("#%d ", t.ID)
	title := truncate(t.Title, width-runewidth.StringWidth(id))
	line := renderMuted(id) + priorityStyle(t.Priority).Render(title)
	if t.AssignedToID != nil {
		who := "@" + *t.AssignedToID
		line += "\n   " + renderMuted(truncate(who, width-3))
	}
	return line
}

// renderBoard lays the tasks out in one column per status, in list order.
func renderBoard(tasks []*types.Task) string {
	byStatus := make(map[types.Status][]*types.Task)
	for _, t := range tasks {
		byStatus[t.Status] = append(byStatus[t.Status], t)
	}

	columns := make([]string, 0, len(types.Statuses))
	for _, status := range types.Statuses {
		items := byStatus[status]
		var b strings.Builder
		b.WriteString(styleBold.Render(fmt.Sprintf("%s (%d)", columnTitle(status), len(items))))
		for _, t := range items {
			b.WriteString("\n")
			b.WriteString(renderCard(t, columnWidth-2))
		}
		if len(items) == 0 {
			b.WriteString("\n" + renderMuted("empty"))
		}
		columns = append(columns, styleColumn.Render(b.String()))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, columns...)
}

var (
	markdownOnce     sync.Once
	markdownRenderer *glamour.TermRenderer
)

// renderMarkdown renders a task description, falling back to plain text.
func renderMarkdown(md string) string {
	markdownOnce.Do(func() {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(80),
		)
		if err == nil {
			markdownRenderer = r
		}
	})
	if markdownRenderer != nil {
		if out, err := markdownRenderer.Render(md); err == nil {
			return out
		}
	}
	return md + "\n"
}
