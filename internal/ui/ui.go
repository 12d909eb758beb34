// Package ui holds the terminal styles the command layer prints with.
package ui

import "github.com/charmbracelet/lipgloss"

var (
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	faintStyle  = lipgloss.NewStyle().Faint(true)
	doneStyle   = lipgloss.NewStyle().Faint(true).Strikethrough(true)
	tagStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
)

// Accent renders headings and identifiers.
func Accent(s string) string { return accentStyle.Render(s) }

// Pass renders success messages.
func Pass(s string) string { return passStyle.Render(s) }

// Warn renders warnings.
func Warn(s string) string { return warnStyle.Render(s) }

// Err renders errors.
func Err(s string) string { return errStyle.Render(s) }

// Faint renders secondary detail like timestamps.
func Faint(s string) string { return faintStyle.Render(s) }

// Done renders completed task titles.
func Done(s string) string { return doneStyle.Render(s) }

// Tag renders a tag label.
func Tag(s string) string { return tagStyle.Render("#" + s) }
