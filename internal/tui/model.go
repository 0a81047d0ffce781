// Package tui is the terminal front end of a chat session.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"chat-exchange/internal/domain"
	"chat-exchange/internal/usecase"
)

const (
	newCommand    = "/new"
	headerHeight  = 1
	footerHeight  = 2
	defaultWidth  = 80
	defaultHeight = 24
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	assistantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13"))
	systemStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	noticeStyle    = lipgloss.NewStyle().Faint(true)
)

// Conversation is the part of usecase.Session the UI drives.
type Conversation interface {
	ID() string
	Backend() string
	Turns() []domain.Turn
	Project() domain.ProjectContext
	Pending() bool
	Input() string
	SetInput(text string)
	Begin(text string) (*usecase.Exchange, error)
	Reset()
}

type settledMsg struct {
	outcome usecase.Outcome
}

// Model is the bubbletea model of the chat screen.
type Model struct {
	ctx     context.Context
	conv    Conversation
	timeout time.Duration

	input  textinput.Model
	spin   spinner.Model
	view   viewport.Model
	width  int
	notice string
}

// New returns a Model bound to conv. Each request is limited to timeout;
// zero means no limit beyond ctx.
func New(ctx context.Context, conv Conversation, timeout time.Duration) Model {
	in := textinput.New()
	in.Placeholder = "Type a message, /new to start over, exit to quit"
	in.Prompt = "> "
	in.CharLimit = 0
	in.Width = defaultWidth - 4
	in.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))

	m := Model{
		ctx:     ctx,
		conv:    conv,
		timeout: timeout,
		input:   in,
		spin:    s,
		view:    viewport.New(defaultWidth, defaultHeight-headerHeight-footerHeight),
		width:   defaultWidth,
	}
	m.refresh()
	return m
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = max(msg.Width-4, 10)
		m.view.Width = msg.Width
		m.view.Height = max(msg.Height-headerHeight-footerHeight, 1)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "ctrl+n":
			return m.reset()
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.view, cmd = m.view.Update(msg)
			return m, cmd
		case "enter":
			return m.submit()
		}
		if m.conv.Pending() {
			return m, nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		m.conv.SetInput(m.input.Value())
		return m, cmd

	case settledMsg:
		if msg.outcome.Stale {
			return m, nil
		}
		m.refresh()
		m.input.Focus()
		return m, textinput.Blink

	case spinner.TickMsg:
		if !m.conv.Pending() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	if m.conv.Pending() {
		return m, nil
	}
	text := m.conv.Input()
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "exit", "quit":
		return m, tea.Quit
	case newCommand:
		return m.reset()
	}

	x, err := m.conv.Begin(text)
	if err != nil {
		m.notice = err.Error()
		return m, nil
	}
	if x == nil {
		return m, nil
	}
	m.notice = ""
	m.input.Reset()
	m.input.Blur()
	m.refresh()
	return m, tea.Batch(m.spin.Tick, m.resolve(x))
}

func (m Model) reset() (tea.Model, tea.Cmd) {
	m.conv.Reset()
	m.input.Reset()
	m.notice = "started a new conversation"
	m.refresh()
	m.input.Focus()
	return m, textinput.Blink
}

func (m Model) resolve(x *usecase.Exchange) tea.Cmd {
	ctx, timeout := m.ctx, m.timeout
	return func() tea.Msg {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		return settledMsg{outcome: x.Resolve(ctx)}
	}
}

// refresh re-renders the transcript into the viewport and scrolls to the end.
func (m *Model) refresh() {
	m.view.SetContent(renderTurns(m.conv.Turns(), m.width))
	m.view.GotoBottom()
}

func (m Model) View() string {
	id := m.conv.ID()
	if len(id) > 8 {
		id = id[:8]
	}
	title := fmt.Sprintf("chat · %s · session %s", m.conv.Backend(), id)
	if desc := m.conv.Project().ProjectDescription; desc != "" {
		title += " · " + desc
	}
	header := headerStyle.Render(title)

	footer := m.input.View()
	if m.conv.Pending() {
		footer = m.spin.View() + " waiting for a reply"
	}
	notice := ""
	if m.notice != "" {
		notice = noticeStyle.Render(m.notice)
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, m.view.View(), footer, notice)
}

func renderTurns(turns []domain.Turn, width int) string {
	if len(turns) == 0 {
		return noticeStyle.Render("No messages yet.")
	}
	body := lipgloss.NewStyle().Width(max(width-2, 10))
	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		lines = append(lines, body.Render(label(t.Sender)+" "+t.Text))
	}
	return strings.Join(lines, "\n")
}

func label(s domain.Sender) string {
	switch s {
	case domain.SenderUser:
		return userStyle.Render("You:")
	case domain.SenderAssistant:
		return assistantStyle.Render("Assistant:")
	default:
		return systemStyle.Render("System:")
	}
}
