package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/fentz26/dealflow/internal/models"
)

// Suggestions provides autocomplete for the command bar.
type Suggestions struct {
	items       []SuggestionItem
	filtered    []SuggestionItem
	selectedIdx int
	visible     bool
	argument    bool
}

// SuggestionItem represents a single autocomplete suggestion.
type SuggestionItem struct {
	Text        string
	Description string
}

var commandSuggestions = []SuggestionItem{
	{Text: "add", Description: "Add a task to the selected task's phase"},
	{Text: "note", Description: "Replace the selected task's notes"},
	{Text: "due", Description: "Set the due date (YYYY-MM-DD or none)"},
	{Text: "assign", Description: "Set the responsible person"},
	{Text: "ws", Description: "Move the task to another workstream"},
}

func workstreamSuggestions() []SuggestionItem {
	out := make([]SuggestionItem, len(models.Workstreams))
	for i, w := range models.Workstreams {
		out[i] = SuggestionItem{Text: string(w)}
	}
	return out
}

// NewSuggestions creates a new suggestions handler.
func NewSuggestions() *Suggestions {
	return &Suggestions{items: commandSuggestions}
}

// Update recomputes suggestions for the current input. Command names are
// offered for the first word and workstreams after "ws ".
func (s *Suggestions) Update(input string) {
	lower := strings.ToLower(input)
	switch {
	case input == "":
		s.visible = false
		s.filtered = nil
		return
	case strings.HasPrefix(lower, "ws "):
		s.items = workstreamSuggestions()
		s.argument = true
		s.filter(strings.TrimSpace(lower[3:]))
	case !strings.Contains(input, " "):
		s.items = commandSuggestions
		s.argument = false
		s.filter(lower)
	default:
		s.visible = false
		s.filtered = nil
		return
	}
	s.visible = true
}

func (s *Suggestions) filter(query string) {
	s.selectedIdx = 0
	if query == "" {
		s.filtered = s.items
		return
	}
	s.filtered = []SuggestionItem{}
	for _, item := range s.items {
		if strings.HasPrefix(strings.ToLower(item.Text), query) {
			s.filtered = append(s.filtered, item)
		}
	}
}

// Complete returns input with the word under completion replaced by text.
func (s *Suggestions) Complete(input, text string) string {
	if s.argument {
		name, _, _ := strings.Cut(input, " ")
		return name + " " + text
	}
	return text + " "
}

// Next moves to the next suggestion.
func (s *Suggestions) Next() {
	if len(s.filtered) == 0 {
		return
	}
	s.selectedIdx = (s.selectedIdx + 1) % len(s.filtered)
}

// Prev moves to the previous suggestion.
func (s *Suggestions) Prev() {
	if len(s.filtered) == 0 {
		return
	}
	s.selectedIdx--
	if s.selectedIdx < 0 {
		s.selectedIdx = len(s.filtered) - 1
	}
}

// Selected returns the currently selected suggestion.
func (s *Suggestions) Selected() *SuggestionItem {
	if !s.visible || len(s.filtered) == 0 || s.selectedIdx >= len(s.filtered) {
		return nil
	}
	return &s.filtered[s.selectedIdx]
}

// IsVisible returns whether suggestions are currently visible.
func (s *Suggestions) IsVisible() bool {
	return s.visible && len(s.filtered) > 0
}

// Render renders the suggestions dropdown.
func (s *Suggestions) Render(width int) string {
	if !s.IsVisible() {
		return ""
	}
	if width < 20 {
		width = 20
	}

	suggestionStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#6366F1")).
		Padding(0, 1).
		Width(width - 4)

	selectedStyle := lipgloss.NewStyle().
		Background(lipgloss.Color("#7C3AED")).
		Foreground(lipgloss.Color("#F9FAFB")).
		Bold(true)

	descStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#6B7280")).
		Italic(true)

	var b strings.Builder
	maxVisible := 5
	for i, item := range s.filtered {
		if i >= maxVisible {
			b.WriteString(descStyle.Render(fmt.Sprintf("  ... and %d more", len(s.filtered)-maxVisible)))
			break
		}
		line := "  " + item.Text
		if i == s.selectedIdx {
			line = selectedStyle.Render("▶ " + item.Text)
		}
		if item.Description != "" {
			line += " " + descStyle.Render(item.Description)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return suggestionStyle.Render(strings.TrimSuffix(b.String(), "\n"))
}
