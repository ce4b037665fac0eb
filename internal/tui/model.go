package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ragchat/internal/history"
	"ragchat/internal/indexer"
	"ragchat/internal/session"
)

// Controller is the TUI-facing subset of the chat session.
type Controller interface {
	State() session.State
	Apply(ev session.Event) (session.State, session.Effect, error)
	AskEvent(ctx context.Context, question string) session.Event
}

// BuildFunc rebuilds the retrieval index from the corpus directory.
type BuildFunc func(ctx context.Context) (indexer.Stats, error)

type focus int

const (
	focusInput focus = iota
	focusSidebar
)

const (
	sidebarWidth = 30
	helpText     = "tab: sidebar  ctrl+n: new chat  ctrl+b: build index  ctrl+c: quit"
)

type answerMsg struct{ ev session.Event }

type builtMsg struct {
	stats indexer.Stats
	err   error
}

// Model is the Bubble Tea model for the chat application.
type Model struct {
	ctx      context.Context
	ctrl     Controller
	build    BuildFunc
	state    session.State
	input    textinput.Model
	rename   textinput.Model
	viewport viewport.Model
	focus    focus
	cursor   int
	status   string
	width    int
	height   int
	ready    bool
}

// New creates a new TUI model instance. build may be nil when indexing from
// the UI is not wanted.
func New(ctx context.Context, ctrl Controller, build BuildFunc) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about accounts and deposits"
	ti.Focus()
	ti.CharLimit = 0
	rn := textinput.New()
	rn.Prompt = "rename: "
	rn.CharLimit = 120
	return Model{
		ctx:      ctx,
		ctrl:     ctrl,
		build:    build,
		state:    ctrl.State(),
		input:    ti,
		rename:   rn,
		viewport: viewport.New(0, 0),
		status:   helpText,
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and completion events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		return m, nil
	case answerMsg:
		m.apply(msg.ev)
		return m, nil
	case builtMsg:
		m.apply(session.BuildDone{Err: msg.err})
		if msg.err == nil {
			m.status = fmt.Sprintf("Indexed %d documents: %d chunks added, %d skipped",
				msg.stats.Documents, msg.stats.Added, msg.stats.Skipped)
		}
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m.updateInputs(msg)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		return m, tea.Quit
	}
	if m.state.RenameTarget != "" {
		switch key {
		case "enter":
			m.apply(session.CommitRename{New: m.rename.Value()})
			m.rename.Blur()
			return m, nil
		case "esc":
			m.apply(session.CancelRename{})
			m.rename.Blur()
			return m, nil
		}
		var cmd tea.Cmd
		m.rename, cmd = m.rename.Update(msg)
		return m, cmd
	}

	switch key {
	case "tab":
		m.toggleFocus()
		return m, nil
	case "ctrl+n":
		m.apply(session.NewChat{})
		m.input.Reset()
		return m, nil
	case "ctrl+b":
		cmd := m.startBuild()
		return m, cmd
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	if m.focus == focusSidebar {
		return m.handleSidebarKey(key)
	}
	if key == "enter" {
		text := m.input.Value()
		_, eff := m.apply(session.Submit{Text: text})
		if eff.Ask == "" {
			return m, nil
		}
		m.input.Reset()
		return m, m.ask(eff.Ask)
	}
	return m.updateInputs(msg)
}

func (m Model) handleSidebarKey(key string) (tea.Model, tea.Cmd) {
	names := m.state.History.Names()
	switch key {
	case "up", "k":
		if len(names) > 0 {
			m.cursor = (m.cursor - 1 + len(names)) % len(names)
		}
	case "down", "j":
		if len(names) > 0 {
			m.cursor = (m.cursor + 1) % len(names)
		}
	case "enter":
		if name, ok := m.selected(); ok {
			m.apply(session.Open{Name: name})
			m.toggleFocus()
		}
	case "m", "right":
		if name, ok := m.selected(); ok {
			m.apply(session.ToggleMenu{Name: name})
		}
	case "esc":
		if m.state.MenuOpen != "" {
			m.apply(session.ToggleMenu{Name: m.state.MenuOpen})
		}
	case "r":
		if name, ok := m.selected(); ok {
			m.apply(session.BeginRename{Name: name})
			if m.state.RenameTarget != "" {
				m.rename.SetValue(name)
				m.rename.CursorEnd()
				m.rename.Focus()
			}
		}
	case "d":
		if name, ok := m.selected(); ok {
			m.apply(session.Delete{Name: name})
		}
	}
	return m, nil
}

func (m *Model) apply(ev session.Event) (session.State, session.Effect) {
	st, eff, err := m.ctrl.Apply(ev)
	m.state = st
	switch {
	case err != nil:
		m.status = "Error: " + err.Error()
	case st.Status != "":
		m.status = st.Status
	default:
		m.status = helpText
	}
	if n := len(st.History); m.cursor >= n {
		m.cursor = max(0, n-1)
	}
	m.refresh()
	return st, eff
}

func (m Model) ask(question string) tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		return answerMsg{ev: ctrl.AskEvent(ctx, question)}
	}
}

func (m *Model) startBuild() tea.Cmd {
	if m.build == nil {
		return nil
	}
	if _, eff := m.apply(session.BuildStarted{}); !eff.Build {
		return nil
	}
	build, ctx := m.build, m.ctx
	return func() tea.Msg {
		stats, err := build(ctx)
		return builtMsg{stats: stats, err: err}
	}
}

func (m *Model) toggleFocus() {
	if m.focus == focusInput {
		m.focus = focusSidebar
		m.input.Blur()
		return
	}
	m.focus = focusInput
	m.input.Focus()
}

func (m Model) selected() (string, bool) {
	names := m.state.History.Names()
	if m.cursor < 0 || m.cursor >= len(names) {
		return "", false
	}
	return names[m.cursor], true
}

func (m Model) updateInputs(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) resize() {
	_, ch := chatBoxStyle.GetFrameSize()
	_, ih := inputBoxStyle.GetFrameSize()
	m.viewport.Width = max(20, m.chatWidth())
	m.viewport.Height = max(3, m.height-ch-ih-3)
	m.input.Width = max(10, m.chatWidth()-4)
	m.refresh()
}

func (m Model) chatWidth() int {
	fw, _ := chatBoxStyle.GetFrameSize()
	return m.width - sidebarWidth - fw - 2
}

func (m *Model) refresh() {
	m.viewport.SetContent(renderMessages(m.state.Messages, m.viewport.Width))
	m.viewport.GotoBottom()
}

// View renders the sidebar, the conversation and the input box.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("Banking Assistant") + "  " + dimStyle.Render(m.state.Current)
	chat := chatBoxStyle.Render(m.viewport.View())
	var bottom string
	if m.state.RenameTarget != "" {
		bottom = inputBoxStyle.Render(m.rename.View())
	} else {
		bottom = inputBoxStyle.Render(m.input.View())
	}
	main := lipgloss.JoinVertical(lipgloss.Left, chat, bottom)
	body := lipgloss.JoinHorizontal(lipgloss.Top, m.renderSidebar(), main)
	status := m.status
	switch {
	case m.state.Pending:
		status = "Thinking..."
	case m.state.Building:
		status = "Building index..."
	}
	footer := statusStyle.Render(status)
	if len(m.state.Sources) > 0 {
		footer += "  " + dimStyle.Render("sources: "+strings.Join(m.state.Sources, ", "))
	}
	return header + "\n" + body + "\n" + footer
}

func (m Model) renderSidebar() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Conversations"))
	b.WriteString("\n")
	names := m.state.History.Names()
	if len(names) == 0 {
		b.WriteString(dimStyle.Render("No saved chats"))
	}
	for i, name := range names {
		label := truncate(name, sidebarWidth-6)
		style := itemStyle
		if name == m.state.Current {
			style = activeItemStyle
		}
		prefix := "  "
		if m.focus == focusSidebar && i == m.cursor {
			prefix = "> "
		}
		b.WriteString(style.Render(prefix + label))
		b.WriteString("\n")
		if m.state.MenuOpen == name {
			b.WriteString(dimStyle.Render("    r rename  d delete"))
			b.WriteString("\n")
		}
	}
	box := sidebarStyle
	if m.focus == focusSidebar {
		box = box.BorderForeground(lipgloss.Color("12"))
	}
	return box.Width(sidebarWidth).Height(max(3, m.height-4)).Render(strings.TrimRight(b.String(), "\n"))
}

func renderMessages(msgs []history.Message, width int) string {
	if len(msgs) == 0 {
		return dimStyle.Render("Start a conversation by asking a question.")
	}
	bubble := max(10, width*2/3)
	var parts []string
	for i, msg := range msgs {
		switch msg.Sender {
		case history.SenderUser:
			text := userStyle.Width(bubble).Render(msg.Text)
			parts = append(parts, lipgloss.PlaceHorizontal(width, lipgloss.Right, text))
		default:
			text := msg.Text
			if i > 0 && msgs[i-1].Sender == history.SenderUser {
				text = highlightBestSentence(text, msgs[i-1].Text)
			}
			parts = append(parts, assistantStyle.Width(bubble).Render(text))
		}
	}
	return strings.Join(parts, "\n\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

var (
	headerStyle     = lipgloss.NewStyle().Bold(true)
	dimStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	sidebarStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	chatBoxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	itemStyle       = lipgloss.NewStyle()
	activeItemStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	userStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Background(lipgloss.Color("24")).Padding(0, 1).Align(lipgloss.Right)
	assistantStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Padding(0, 1)
)
