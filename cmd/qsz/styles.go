package main

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1)

	pausedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#D97706")).
			Padding(0, 1)

	// QR codes need dark modules on a light background to scan.
	symbolStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#000000")).
			Background(lipgloss.Color("#FFFFFF"))

	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	errorMessageStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#FF0000")).
				Render

	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render

	docStyle = lipgloss.NewStyle().Padding(0, 1)
)
