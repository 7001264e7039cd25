// Package tui is the terminal chat widget for the EcoSense assistant.
// The state machine and Update loop live in this file; view.go renders it.
package tui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"ecosense/internal/chatclient"
	"ecosense/internal/models"
)

// api is the slice of the backend client the widget needs.
type api interface {
	History(ctx context.Context) ([]models.ChatMessage, error)
	Send(ctx context.Context, message string) (models.ChatMessage, error)
}

// state is the widget's top-level mode.
type state int

const (
	stateLoading      state = iota // first history fetch in flight, skeleton visible
	stateReady                     // conversation on screen
	stateUnauthorized              // session rejected, sign-in prompt
	stateFailed                    // history fetch exhausted its retries
)

// Messages for tea updates
type (
	historyMsg    []models.ChatMessage
	historyErrMsg struct{ err error }
	sentMsg       models.ChatMessage
	sendFailedMsg struct{ err error }
)

// Model is the chat widget.
type Model struct {
	textarea textarea.Model
	viewport viewport.Model
	spinner  spinner.Model
	styles   styles
	renderer *glamour.TermRenderer

	api      api
	username string

	state    state
	messages []models.ChatMessage
	err      error

	// awaitingReply locks the input between a send and the assistant's
	// reply (or its failure).
	awaitingReply bool

	width  int
	height int
	ready  bool
}

func New(client api, username string) Model {
	st := defaultStyles()

	ta := textarea.New()
	ta.Placeholder = "Ask about recycling, energy, anything green... (Enter to send)"
	ta.Focus()
	ta.Prompt = "| "
	ta.CharLimit = 2000
	ta.SetWidth(80)
	ta.SetHeight(1)
	ta.ShowLineNumbers = false

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = st.spinner

	vp := viewport.New(80, 20)

	renderer, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)

	return Model{
		textarea: ta,
		viewport: vp,
		spinner:  sp,
		styles:   st,
		renderer: renderer,
		api:      client,
		username: username,
		state:    stateLoading,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spinner.Tick, m.fetchHistory())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit

		case tea.KeyEnter:
			// Alt+Enter inserts a newline
			if !msg.Alt {
				return m.handleSubmit()
			}

		case tea.KeyPgUp, tea.KeyPgDown:
			m.viewport, vpCmd = m.viewport.Update(msg)
			return m, vpCmd
		}

		// Input stays locked while a reply is pending
		if m.state == stateReady && !m.awaitingReply {
			m.textarea, tiCmd = m.textarea.Update(msg)
		}

	case tea.MouseMsg:
		m.viewport, vpCmd = m.viewport.Update(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		headerHeight := 1
		footerHeight := 1
		inputHeight := 3
		paddingHeight := 2

		chatWidth := msg.Width - 4
		if chatWidth < 1 {
			chatWidth = 1
		}
		chatHeight := msg.Height - headerHeight - footerHeight - inputHeight - paddingHeight
		if chatHeight < 1 {
			chatHeight = 1
		}

		if !m.ready {
			m.viewport = viewport.New(chatWidth, chatHeight)
			m.ready = true
		} else {
			m.viewport.Width = chatWidth
			m.viewport.Height = chatHeight
		}
		m.textarea.SetWidth(chatWidth - 4)

		// Re-wrap markdown for the new width
		m.renderer, _ = glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(chatWidth-4),
		)
		m.viewport.SetContent(m.renderHistory())
		m.viewport.GotoBottom()

	case spinner.TickMsg:
		if m.state == stateLoading || m.awaitingReply {
			var spCmd tea.Cmd
			m.spinner, spCmd = m.spinner.Update(msg)
			return m, spCmd
		}

	case historyMsg:
		// The server's copy replaces whatever was on screen, optimistic
		// lines included.
		m.state = stateReady
		m.err = nil
		m.messages = msg
		m.viewport.SetContent(m.renderHistory())
		m.viewport.GotoBottom()

	case historyErrMsg:
		if chatclient.IsUnauthorized(msg.err) {
			// Retrying cannot fix a missing session
			m.state = stateUnauthorized
		} else {
			m.state = stateFailed
			m.err = msg.err
		}

	case sentMsg:
		m.awaitingReply = false
		return m, m.fetchHistory()

	case sendFailedMsg:
		m.awaitingReply = false
		m.messages = append(m.messages, models.ChatMessage{
			Role:    "assistant",
			Content: "Error: " + errorText(msg.err),
		})
		m.viewport.SetContent(m.renderHistory())
		m.viewport.GotoBottom()
	}

	return m, tea.Batch(tiCmd, vpCmd)
}

// handleSubmit sends the drafted message. The draft goes into the
// conversation immediately; the stored copy arrives with the reply.
func (m Model) handleSubmit() (tea.Model, tea.Cmd) {
	if m.state != stateReady || m.awaitingReply {
		return m, nil
	}
	input := strings.TrimSpace(m.textarea.Value())
	if input == "" {
		return m, nil
	}

	m.messages = append(m.messages, models.ChatMessage{Role: "user", Content: input})
	m.textarea.Reset()
	m.awaitingReply = true
	m.viewport.SetContent(m.renderHistory())
	m.viewport.GotoBottom()

	return m, tea.Batch(m.spinner.Tick, m.sendMessage(input))
}

func (m Model) fetchHistory() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		messages, err := m.api.History(ctx)
		if err != nil {
			return historyErrMsg{err}
		}
		return historyMsg(messages)
	}
}

func (m Model) sendMessage(input string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		reply, err := m.api.Send(ctx, input)
		if err != nil {
			return sendFailedMsg{err}
		}
		return sentMsg(reply)
	}
}

// errorText is what lands in the synthetic assistant message after a
// failed send.
func errorText(err error) string {
	var apiErr *chatclient.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}
