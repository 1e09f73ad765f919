package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/champbox/internal/models"
	"github.com/desertthunder/champbox/internal/tasks"
)

var styles = NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")

// Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title: NewBold(t).MarginBottom(1),
		ok:    NewBold(s),
		err:   NewBold(e),
		warn:  NewStyle(w),
		help:  NewEm(h),
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}

func Title(s string) string { return styles.title.Render(s) }
func OK(s string) string    { return styles.ok.Render("✓ " + s) }
func Err(s string) string   { return styles.err.Render("✗ " + s) }
func Warn(s string) string  { return styles.warn.Render(s) }
func Help(s string) string  { return styles.help.Render(s) }

// Banner summarizes the listener settings printed when serve starts.
func Banner(addr, mode, redirectURI string) string {
	var b strings.Builder
	b.WriteString(Title("champbox"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "listening on %s\n", styles.ok.Render("http://"+addr))
	fmt.Fprintf(&b, "flow mode   %s\n", mode)
	fmt.Fprintf(&b, "redirect    %s\n", redirectURI)
	b.WriteString(Help("start a flow at http://" + addr + "/?championName=Ahri"))
	return b.String()
}

// StageLine renders u as one line of progress output.
func StageLine(u tasks.StageUpdate) string {
	label := fmt.Sprintf("[%-13s]", u.Stage)
	switch u.Stage {
	case models.StageDone:
		return styles.ok.Render(label) + " " + u.Message
	case models.StageFailed:
		return styles.err.Render(label) + " " + u.Message
	default:
		return styles.help.Render(label) + " " + u.Message
	}
}
