// Package ui renders styled terminal output for the champbox CLI with lipgloss.
//
// The [Palette] holds the named styles (title, ok, err, warn, help). [Banner] prints the serve
// startup summary and [StageLine] renders a [tasks.StageUpdate] as a single progress line.
package ui
