// Package tui rendering functions.
package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

type styles struct {
	header    lipgloss.Style
	badge     lipgloss.Style
	userTag   lipgloss.Style
	botTag    lipgloss.Style
	muted     lipgloss.Style
	errorText lipgloss.Style
	spinner   lipgloss.Style
	input     lipgloss.Style
}

func defaultStyles() styles {
	green := lipgloss.Color("42")
	return styles{
		header:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("231")).Background(green).Padding(0, 1),
		badge:     lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		userTag:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")).MarginTop(1),
		botTag:    lipgloss.NewStyle().Bold(true).Foreground(green).MarginTop(1),
		muted:     lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		errorText: lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		spinner:   lipgloss.NewStyle().Foreground(green),
		input:     lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(green).Padding(0, 1),
	}
}

func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	switch m.state {
	case stateLoading:
		return m.renderSkeleton()
	case stateUnauthorized:
		return m.renderSignInPrompt()
	case stateFailed:
		return m.renderLoadError()
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.renderHeader(),
		m.viewport.View(),
		m.styles.input.Render(m.textarea.View()),
		m.renderFooter(),
	)
}

func (m Model) renderHistory() string {
	if len(m.messages) == 0 {
		return m.styles.muted.Render("No messages yet. Ask how to green up your day.")
	}

	var sb strings.Builder
	for _, msg := range m.messages {
		switch msg.Role {
		case "user":
			sb.WriteString(m.styles.userTag.Render("You") + "\n")
			sb.WriteString(msg.Content)
			sb.WriteString("\n")

		default: // "assistant"
			sb.WriteString(m.styles.botTag.Render("EcoSense") + "\n")
			if strings.HasPrefix(msg.Content, "Error: ") {
				sb.WriteString(m.styles.errorText.Render(msg.Content))
				sb.WriteString("\n")
				continue
			}
			sb.WriteString(m.safeRenderMarkdown(msg.Content))
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// safeRenderMarkdown renders markdown with panic recovery
func (m Model) safeRenderMarkdown(content string) (result string) {
	defer func() {
		if r := recover(); r != nil {
			result = content
		}
	}()

	if m.renderer != nil && content != "" {
		if rendered, err := m.renderer.Render(content); err == nil {
			return rendered
		}
	}
	return content
}

func (m Model) renderHeader() string {
	title := m.styles.header.Render(" EcoSense ")
	user := m.styles.badge.Render(m.username)

	var status string
	if m.awaitingReply {
		status = lipgloss.JoinHorizontal(lipgloss.Center, m.spinner.View(), " ", m.styles.muted.Render("Assistant is typing..."))
	} else {
		status = m.styles.muted.Render("Ready")
	}

	return lipgloss.JoinHorizontal(lipgloss.Center, title, "  ", user, "  ", status)
}

func (m Model) renderFooter() string {
	hint := "Enter: send | PgUp/PgDn: scroll | Ctrl+C: quit"
	if m.awaitingReply {
		hint = "Waiting for the assistant... | Ctrl+C: quit"
	}
	return m.styles.muted.Render(hint)
}

// renderSkeleton is the placeholder shown while the first history fetch runs.
func (m Model) renderSkeleton() string {
	var sb strings.Builder
	sb.WriteString(m.renderHeader() + "\n\n")
	for _, w := range []int{28, 44, 36} {
		sb.WriteString("  " + m.styles.muted.Render(strings.Repeat("░", w)) + "\n\n")
	}
	sb.WriteString("  " + m.spinner.View() + " " + m.styles.muted.Render("Loading conversation..."))
	return sb.String()
}

func (m Model) renderSignInPrompt() string {
	body := lipgloss.JoinVertical(
		lipgloss.Left,
		m.styles.header.Render(" EcoSense "),
		"",
		"Your session was not accepted.",
		"",
		m.styles.muted.Render("Sign in and restart the widget:"),
		m.styles.muted.Render("  ecosense-chat --token <your token>"),
		m.styles.muted.Render("  ecosense-chat --session <session id>"),
	)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, body)
}

func (m Model) renderLoadError() string {
	errText := ""
	if m.err != nil {
		errText = m.err.Error()
	}
	body := lipgloss.JoinVertical(
		lipgloss.Left,
		m.styles.header.Render(" EcoSense "),
		"",
		"Could not load the conversation.",
		m.styles.errorText.Render(errText),
		"",
		m.styles.muted.Render("Check that the server is reachable, then restart."),
	)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, body)
}
