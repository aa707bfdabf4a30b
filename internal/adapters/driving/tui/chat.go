// Package tui implements the interactive chat interface using bubbletea.
package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/docchat-cli/docchat/internal/core/ports/driving"
)

var (
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
)

// entry is one rendered line of the conversation transcript.
type entry struct {
	speaker string
	text    string
	isError bool
}

// replyMsg carries the assistant's answer back into the event loop.
type replyMsg struct {
	text string
}

// replyErrMsg carries a failed turn back into the event loop.
type replyErrMsg struct {
	err error
}

// Chat is the bubbletea model for the conversational interface.
type Chat struct {
	session driving.ChatSession
	ctx     context.Context

	viewport viewport.Model
	input    textinput.Model
	history  []entry

	waiting bool
	ready   bool
	width   int
	height  int
}

// NewChat creates the chat model around a chat session.
func NewChat(session driving.ChatSession) *Chat {
	input := textinput.New()
	input.Placeholder = "Ask about your documents..."
	input.Focus()
	input.CharLimit = 2000

	return &Chat{
		session: session,
		ctx:     context.Background(),
		input:   input,
	}
}

// WithContext sets the context used for chat requests.
func (c *Chat) WithContext(ctx context.Context) {
	if ctx != nil {
		c.ctx = ctx
	}
}

// Init implements tea.Model.
func (c *Chat) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (c *Chat) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		c.width = msg.Width
		c.height = msg.Height
		inputHeight := 3
		if !c.ready {
			c.viewport = viewport.New(msg.Width, msg.Height-inputHeight)
			c.ready = true
		} else {
			c.viewport.Width = msg.Width
			c.viewport.Height = msg.Height - inputHeight
		}
		c.refreshTranscript()
		return c, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return c, tea.Quit
		case tea.KeyEnter:
			return c, c.send()
		}

	case replyMsg:
		c.waiting = false
		c.history = append(c.history, entry{speaker: "assistant", text: msg.text})
		c.refreshTranscript()
		return c, nil

	case replyErrMsg:
		c.waiting = false
		c.history = append(c.history, entry{speaker: "error", text: msg.err.Error(), isError: true})
		c.refreshTranscript()
		return c, nil
	}

	var inputCmd, viewportCmd tea.Cmd
	c.input, inputCmd = c.input.Update(msg)
	c.viewport, viewportCmd = c.viewport.Update(msg)
	return c, tea.Batch(inputCmd, viewportCmd)
}

// send dispatches the current input to the chat session.
func (c *Chat) send() tea.Cmd {
	text := strings.TrimSpace(c.input.Value())
	if text == "" || c.waiting {
		return nil
	}
	if strings.EqualFold(text, "exit") {
		return tea.Quit
	}

	c.history = append(c.history, entry{speaker: "you", text: text})
	c.input.SetValue("")
	c.waiting = true
	c.refreshTranscript()

	session := c.session
	ctx := c.ctx
	return func() tea.Msg {
		answer, err := session.Send(ctx, text)
		if err != nil {
			return replyErrMsg{err: err}
		}
		return replyMsg{text: answer}
	}
}

// refreshTranscript re-renders the history into the viewport and keeps
// the latest message in view.
func (c *Chat) refreshTranscript() {
	if !c.ready {
		return
	}
	c.viewport.SetContent(c.transcript())
	c.viewport.GotoBottom()
}

// transcript renders the conversation history as styled text.
func (c *Chat) transcript() string {
	var b strings.Builder
	for i, e := range c.history {
		if i > 0 {
			b.WriteString("\n\n")
		}
		switch {
		case e.isError:
			b.WriteString(errorStyle.Render("error: " + e.text))
		case e.speaker == "you":
			b.WriteString(userStyle.Render("You: "))
			b.WriteString(e.text)
		default:
			b.WriteString(assistantStyle.Render("Assistant: "))
			b.WriteString(e.text)
		}
	}
	return b.String()
}

// View implements tea.Model.
func (c *Chat) View() string {
	if !c.ready {
		return "Loading..."
	}

	status := ""
	if c.waiting {
		status = statusStyle.Render("thinking...")
	}

	return c.viewport.View() + "\n" + status + "\n" + c.input.View()
}
