package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ConsultationPort is the TUI-facing subset of the API client.
type ConsultationPort interface {
	CreateSession(text string) (*SessionReply, error)
	Ask(sessionID, question string) (*AnswerReply, error)
}

// Model is the Bubble Tea model for the consultation chat.
type Model struct {
	client    ConsultationPort
	input     textinput.Model
	viewport  viewport.Model
	lines     []string
	sessionID string
	status    string
	ready     bool
}

// New creates the chat model. The first message the user sends is treated as
// birth details; everything after that is a question for the astrologer.
func New(client ConsultationPort) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Your birth date, time and place (e.g. 15 May 1990, 14:30, Jaipur)"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		client:   client,
		input:    ti,
		viewport: vp,
		lines:    []string{welcomeText},
		status:   "Waiting for birth details.",
	}
}

const welcomeText = "Welcome to VastuAi. Tell me when and where you were born and I will read your chart."

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, fh := chatBoxStyle.GetFrameSize()
		_, ih := inputBoxStyle.GetFrameSize()
		vh := msg.Height - fh - ih - 4
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width-4)
		m.viewport.Height = vh
		m.refresh()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		if msg.String() == "enter" {
			text := strings.TrimSpace(m.input.Value())
			if text == "" {
				return m, nil
			}
			m.input.SetValue("")
			m.lines = append(m.lines, userStyle.Render("You: ")+text)
			if m.sessionID == "" {
				m.startSession(text)
			} else {
				m.ask(text)
			}
			m.refresh()
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) startSession(text string) {
	reply, err := m.client.CreateSession(text)
	if err != nil {
		m.status = "Error: " + err.Error()
		m.lines = append(m.lines, errStyle.Render(err.Error()))
		return
	}
	m.sessionID = reply.SessionID
	m.lines = append(m.lines, astroStyle.Render("Astrologer:")+"\n"+reply.Reading)
	m.status = "Session started. Ask about health, wealth, education or marriage."
	if reply.Degraded {
		m.status += " (rule store unavailable; answers may be generic)"
	}
	m.input.Placeholder = "Ask a question about your chart"
}

func (m *Model) ask(question string) {
	reply, err := m.client.Ask(m.sessionID, question)
	if err != nil {
		m.status = "Error: " + err.Error()
		m.lines = append(m.lines, errStyle.Render(err.Error()))
		return
	}
	m.lines = append(m.lines, astroStyle.Render("Astrologer: ")+reply.Answer)
	if len(reply.Rules) > 0 {
		refs := make([]string, 0, len(reply.Rules))
		for _, r := range reply.Rules {
			if r.Chunk.Heading != "" {
				refs = append(refs, r.Chunk.Heading)
			}
		}
		if len(refs) > 0 {
			m.lines = append(m.lines, refStyle.Render("Based on: "+strings.Join(refs, "; ")))
		}
	}
	m.status = fmt.Sprintf("Answered from %d rule(s).", len(reply.Rules))
	if reply.Degraded {
		m.status += " (rule store unavailable)"
	}
}

func (m *Model) refresh() {
	m.viewport.SetContent(strings.Join(m.lines, "\n\n"))
	m.viewport.GotoBottom()
}

// View renders the chat layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("VastuAi Consultation")
	chat := chatBoxStyle.Render(m.viewport.View())
	input := inputBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return header + "\n" + chat + "\n" + input + "\n" + status
}

var (
	chatBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	userStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	astroStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	refStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	errStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
