// Package render draws the session status and signals in the terminal.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"go.aimuz.me/signal/internal/types"
)

// Colors per signal type (ANSI 256).
var typeColors = map[types.SignalType]string{
	types.SignalDecisionPoint:  "39",
	types.SignalRiskDetected:   "203",
	types.SignalInputRequired:  "220",
	types.SignalContradiction:  "208",
	types.SignalCodeGenerated:  "114",
	types.SignalImageGenerated: "177",
}

var statusColors = map[types.Status]string{
	types.StatusDisconnected: "244",
	types.StatusConnected:    "39",
	types.StatusListening:    "42",
}

// Renderer writes styled text to w.
type Renderer struct {
	w     io.Writer
	width int

	card    lipgloss.Style
	muted   lipgloss.Style
	bold    lipgloss.Style
	code    lipgloss.Style
	respond lipgloss.Style
}

// New creates a renderer. width bounds card width; 0 picks 72 columns.
func New(w io.Writer, width int) *Renderer {
	if width <= 0 {
		width = 72
	}
	return &Renderer{
		w:     w,
		width: width,
		card: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1).
			Width(width),
		muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		bold:    lipgloss.NewStyle().Bold(true),
		code:    lipgloss.NewStyle().Foreground(lipgloss.Color("114")).PaddingLeft(2),
		respond: lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Italic(true),
	}
}

// Label humanizes a signal type: RISK_DETECTED -> "Risk Detected".
func Label(t types.SignalType) string {
	if t == "" {
		return "Signal"
	}
	// Casers are stateful; one per call.
	return cases.Title(language.English).String(strings.ReplaceAll(strings.ToLower(string(t)), "_", " "))
}

// Status prints a status line.
func (r *Renderer) Status(s types.Status, detail string) {
	badge := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color(colorOr(statusColors[s], "244"))).
		Render("● " + string(s))
	if detail != "" {
		badge += " " + r.muted.Render(detail)
	}
	fmt.Fprintln(r.w, badge)
}

// Display prints the foregrounded signal card.
func (r *Renderer) Display(d types.Display, total int, ready bool) {
	fmt.Fprintln(r.w, r.Card(d, total, ready))
}

// Card renders the foregrounded signal without printing it.
func (r *Renderer) Card(d types.Display, total int, ready bool) string {
	p := d.Primary
	color := colorOr(typeColors[p.Type], "252")

	header := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(color)).Render(Label(p.Type))
	meta := fmt.Sprintf("#%d/%d", d.Index+1, total)
	if p.Confidence > 0 {
		meta += fmt.Sprintf("  %d%%", int(p.Confidence*100+0.5))
	}
	if !p.Timestamp.IsZero() {
		meta += "  " + p.Timestamp.Local().Format("15:04:05")
	}

	var b strings.Builder
	b.WriteString(header + "  " + r.muted.Render(meta) + "\n")
	if p.Title != "" {
		b.WriteString(r.bold.Render(p.Title) + "\n")
	}
	if p.Description != "" {
		b.WriteString(p.Description + "\n")
	}
	if p.HasSuggestedResponse() {
		b.WriteString("\n" + r.muted.Render("Suggested response:") + "\n")
		b.WriteString(r.respond.Render("“"+strings.TrimSpace(p.SuggestedResponse)+"”") + "\n")
		if ready {
			b.WriteString(r.muted.Render("👍 thumbs-up or hotkey to copy") + "\n")
		}
	}
	for _, s := range p.CodeSnippets {
		b.WriteString("\n" + r.bold.Render(s.Language) + "\n")
		b.WriteString(r.code.Render(strings.TrimRight(s.Code, "\n")) + "\n")
	}
	if d.Image != nil && d.Image.HasImage() {
		caption := d.Image.Title
		if caption == "" {
			caption = "diagram"
		}
		b.WriteString("\n" + r.muted.Render("🖼  "+caption+" attached") + "\n")
	}

	border := lipgloss.Color(color)
	return r.card.BorderForeground(border).Render(strings.TrimRight(b.String(), "\n"))
}

// History prints a one-line summary per signal, marking the active index.
func (r *Renderer) History(history []types.Signal, active int) {
	if len(history) == 0 {
		fmt.Fprintln(r.w, r.muted.Render("no signals yet"))
		return
	}
	for i, s := range history {
		marker := "  "
		if i == active {
			marker = "▶ "
		}
		color := colorOr(typeColors[s.Type], "252")
		label := lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render(fmt.Sprintf("%-16s", Label(s.Type)))
		fmt.Fprintf(r.w, "%s%2d  %s %s\n", marker, i+1, label, s.Title)
	}
}

// Error prints a user-facing error.
func (r *Renderer) Error(err error) {
	fmt.Fprintln(r.w, lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Render("✖ "+err.Error()))
}

// Notice prints an informational line.
func (r *Renderer) Notice(msg string) {
	fmt.Fprintln(r.w, r.muted.Render(msg))
}

func colorOr(c, fallback string) string {
	if c == "" {
		return fallback
	}
	return c
}
