package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/fentz26/dealflow/internal/models"
)

const defaultBarWidth = 24

var (
	phaseNameStyle = lipgloss.NewStyle().Width(18)
	phaseMetaStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// PhasePanel renders one progress bar per phase plus the deal total.
type PhasePanel struct {
	progress *models.DealProgress
	bars     map[string]progress.Model
	width    int
}

// NewPhasePanel creates an empty panel.
func NewPhasePanel() *PhasePanel {
	return &PhasePanel{bars: make(map[string]progress.Model), width: defaultBarWidth}
}

// SetProgress replaces the rollup being displayed.
func (p *PhasePanel) SetProgress(dp *models.DealProgress) {
	p.progress = dp
}

// SetWidth sets the bar width.
func (p *PhasePanel) SetWidth(w int) {
	if w < 10 {
		w = 10
	}
	p.width = w
	for name, bar := range p.bars {
		bar.Width = w
		p.bars[name] = bar
	}
}

func (p *PhasePanel) bar(phase models.PhaseProgress) progress.Model {
	if b, ok := p.bars[phase.Phase]; ok {
		return b
	}
	opts := []progress.Option{progress.WithWidth(p.width)}
	if phase.Color != "" {
		opts = append(opts, progress.WithSolidFill(phase.Color))
	} else {
		opts = append(opts, progress.WithDefaultGradient())
	}
	b := progress.New(opts...)
	p.bars[phase.Phase] = b
	return b
}

// View renders the panel.
func (p *PhasePanel) View() string {
	if p.progress == nil {
		return phaseMetaStyle.Render("No progress loaded")
	}

	var b strings.Builder
	b.WriteString(sectionStyle.Render(fmt.Sprintf("Overall %d%%", p.progress.Overall)))
	b.WriteString(phaseMetaStyle.Render(fmt.Sprintf("  (by task %d%%)", p.progress.Weighted)))
	b.WriteString("\n\n")

	for _, ph := range p.progress.Phases {
		bar := p.bar(ph)
		b.WriteString(phaseNameStyle.Render(truncate(ph.Phase, 17)))
		b.WriteString(bar.ViewAs(float64(ph.Percentage) / 100))
		meta := fmt.Sprintf(" %d/%d", ph.Completed, ph.Total)
		if ph.Overdue > 0 {
			meta += overdueStyle.Render(fmt.Sprintf(" %d late", ph.Overdue))
		}
		b.WriteString(phaseMetaStyle.Render(meta))
		b.WriteString("\n")
	}
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
