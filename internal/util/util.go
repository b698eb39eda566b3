package util

import (
	"bufio"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/manifoldco/promptui"
)

var (
	IsDebug bool

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B")).
			Bold(true).
			Underline(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF4757")).
			Bold(true)

	debugErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B")).
			Bold(true).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#FF4757")).
			Padding(1, 2)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFA726")).
			Bold(true)

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF69B4")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00FF00")).
			Bold(true)
)

// SetDebugMode sets the debug mode
func SetDebugMode(debug bool) {
	IsDebug = debug
}

// Title renders a section heading.
func Title(s string) string {
	return titleStyle.Render(s)
}

// Success renders a success line.
func Success(s string) string {
	return successStyle.Render("✓ " + s)
}

// ErrorHandler returns a stylized error message
func ErrorHandler(err error) string {
	if IsDebug {
		header := errorStyle.Render("🚨 DEBUG ERROR 🔍")
		return fmt.Sprintf("%s\n%s", header, debugErrorStyle.Render(fmt.Sprintf("%+v", err)))
	}

	styledError := errorStyle.Render(fmt.Sprintf("❌ %v", err))
	styledHint := warningStyle.Render("💡 run the command with --debug to see details")
	return fmt.Sprintf("%s\n%s", styledError, styledHint)
}

// PromptText asks for a line of text of at least minLen characters.
func PromptText(label string, minLen int) (string, error) {
	var (
		value string
		err   error
	)
	// promptui's readline misbehaves in the Windows console
	if runtime.GOOS == "windows" {
		fmt.Print(promptStyle.Render(label + ": "))
		value, err = bufio.NewReader(os.Stdin).ReadString('\n')
	} else {
		prompt := promptui.Prompt{Label: promptStyle.Render(label)}
		value, err = prompt.Run()
	}
	if err != nil {
		return "", err
	}

	value = strings.TrimSpace(value)
	if len(value) < minLen {
		return "", fmt.Errorf("input must have at least %d characters, you entered: %q", minLen, value)
	}
	return value, nil
}

// SelectMenuItem lets the user pick one of items.
func SelectMenuItem(label string, items []string) (int, string, error) {
	if len(items) == 0 {
		return -1, "", fmt.Errorf("nothing to select")
	}

	choice := items[0]
	menu := huh.NewSelect[string]().
		Title(label).
		Value(&choice)
	options := make([]huh.Option[string], 0, len(items))
	for _, item := range items {
		options = append(options, huh.NewOption(item, item))
	}
	menu.Options(options...)

	if err := menu.Run(); err != nil {
		return -1, "", err
	}
	for i, item := range items {
		if item == choice {
			fmt.Println(Success("Selected: " + item))
			return i, item, nil
		}
	}
	return -1, "", fmt.Errorf("invalid selection: %s", choice)
}

// Confirm asks a yes/no question.
func Confirm(title, description string) (bool, error) {
	var ok bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Description(description).
				Value(&ok),
		),
	)
	if err := form.Run(); err != nil {
		return false, fmt.Errorf("prompt failed: %w", err)
	}
	return ok, nil
}
