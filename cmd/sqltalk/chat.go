// This file implements the interactive chat interface using bubbletea.
package main

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

	"sqltalk/internal/conversation"
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	sqlStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("106"))
	metaStyle      = lipgloss.NewStyle().Faint(true)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// chatModel is the main model for the interactive chat interface
type chatModel struct {
	// UI components
	textinput textinput.Model
	viewport  viewport.Model
	spinner   spinner.Model

	// State
	history   []chatMessage
	isLoading bool
	err       error
	width     int
	height    int
	ready     bool

	// Backend
	app     *app
	session *conversation.Session
}

type chatMessage struct {
	role    string // "user" or "assistant"
	content string
	sql     string
	meta    string
	time    time.Time
}

type answerMsg struct {
	result *conversation.Result
	err    error
}

func newChatModel(a *app) chatModel {
	ti := textinput.New()
	ti.Placeholder = "Ask about your data..."
	ti.Focus()
	ti.CharLimit = 500

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return chatModel{
		textinput: ti,
		spinner:   sp,
		app:       a,
		session:   a.manager.NewSession(),
	}
}

func (m chatModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		headerHeight := 2
		footerHeight := 3
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-headerHeight-footerHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - headerHeight - footerHeight
		}
		m.viewport.SetContent(m.renderHistory())

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			if m.isLoading {
				break
			}
			input := strings.TrimSpace(m.textinput.Value())
			if input == "" {
				break
			}
			if input == "/quit" || input == "/exit" {
				return m, tea.Quit
			}
			if input == "/history" {
				m.history = append(m.history, chatMessage{
					role:    "assistant",
					content: m.session.History(),
					time:    time.Now(),
				})
				m.textinput.Reset()
				m.viewport.SetContent(m.renderHistory())
				m.viewport.GotoBottom()
				break
			}
			m.history = append(m.history, chatMessage{role: "user", content: input, time: time.Now()})
			m.textinput.Reset()
			m.isLoading = true
			m.viewport.SetContent(m.renderHistory())
			m.viewport.GotoBottom()
			cmds = append(cmds, m.submit(input), m.spinner.Tick)
		}

	case answerMsg:
		m.isLoading = false
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.err = nil
			m.history = append(m.history, chatMessage{
				role:    "assistant",
				content: msg.result.Answer,
				sql:     msg.result.SQL,
				meta:    describeResult(msg.result),
				time:    time.Now(),
			})
		}
		m.viewport.SetContent(m.renderHistory())
		m.viewport.GotoBottom()

	case spinner.TickMsg:
		if m.isLoading {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	var cmd tea.Cmd
	m.textinput, cmd = m.textinput.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m chatModel) submit(input string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		res, err := m.session.Submit(ctx, input)
		return answerMsg{result: res, err: err}
	}
}

func (m chatModel) renderHistory() string {
	var b strings.Builder
	for _, msg := range m.history {
		switch msg.role {
		case "user":
			b.WriteString(userStyle.Render("You: ") + msg.content + "\n")
		default:
			if msg.sql != "" {
				b.WriteString(sqlStyle.Render("  "+msg.sql) + "\n")
			}
			b.WriteString(assistantStyle.Render(msg.content) + "\n")
			if msg.meta != "" {
				b.WriteString(metaStyle.Render("  "+msg.meta) + "\n")
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m chatModel) View() string {
	if !m.ready {
		return "starting..."
	}

	header := titleStyle.Render("sqltalk") + metaStyle.Render("  /history for context, /quit to leave") + "\n"

	footer := "\n"
	if m.isLoading {
		footer += m.spinner.View() + " thinking...\n"
	} else if m.err != nil {
		footer += errorStyle.Render(m.err.Error()) + "\n"
	} else {
		footer += "\n"
	}
	footer += m.textinput.View()

	return header + m.viewport.View() + footer
}

// describeResult renders the per-turn metadata line.
func describeResult(res *conversation.Result) string {
	var parts []string
	if res.IsFollowup {
		parts = append(parts, fmt.Sprintf("follow-up (%s, %.2f)", res.Intent, res.Confidence))
	}
	for _, chart := range res.Charts {
		parts = append(parts, fmt.Sprintf("chart: %s", chart.Title))
	}
	return strings.Join(parts, " · ")
}

// runChat wires the backend and hands the terminal to bubbletea.
func runChat() error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	p := tea.NewProgram(newChatModel(a), tea.WithAltScreen())
	_, err = p.Run()
	return err
}
