// Command client is an interactive terminal client for the chat relay.
//
// It prompts for a username, joins the relay over TCP, and then runs a
// compose loop with an asynchronous feed of incoming messages. A reply
// containing "Welcome" confirms a successful join; any other reply means the
// server rejected the name and the client reconnects for another attempt.
package main

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	defaultAddr  = "localhost:8080"
	welcomeToken = "Welcome"
	quitCommand  = "/quit"
	historyLines = 20
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	selfStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("36"))
)

// serverLine is one message received from the relay.
type serverLine struct {
	text string
}

// serverClosed signals that the receive loop has ended.
type serverClosed struct {
	err error
}

type model struct {
	addr   string
	input  textinput.Model
	conn   net.Conn
	events chan tea.Msg

	lines    []string
	loggedIn bool
	status   string
}

func initialModel(addr string) model {
	input := textinput.New()
	input.Placeholder = "username"
	input.CharLimit = 256
	input.Focus()

	return model{
		addr:   addr,
		input:  input,
		status: fmt.Sprintf("Enter a username to join %s", addr),
	}
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

// connect dials the relay and starts the receive loop feeding server lines
// into an event channel the update loop waits on.
func connect(addr string) (net.Conn, chan tea.Msg, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, nil, err
	}

	events := make(chan tea.Msg, 32)
	go func() {
		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			events <- serverLine{text: scanner.Text()}
		}
		events <- serverClosed{err: scanner.Err()}
	}()

	return conn, events, nil
}

func waitForServer(events chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-events
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.disconnect()
			return m, tea.Quit
		case tea.KeyEnter:
			return m.submit()
		}

	case serverLine:
		if !m.loggedIn {
			if strings.Contains(msg.text, welcomeToken) {
				m.loggedIn = true
				m.input.Placeholder = "user:message, /list or /quit"
				m.status = "Connected"
			} else {
				m.status = msg.text
			}
		}
		m.lines = append(m.lines, msg.text)
		return m, waitForServer(m.events)

	case serverClosed:
		m.conn = nil
		if m.loggedIn {
			m.loggedIn = false
			m.status = "Connection closed by server"
			m.input.Placeholder = "username"
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit handles one entered line: a username while joining, a chat line
// afterwards.
func (m model) submit() (tea.Model, tea.Cmd) {
	value := strings.TrimSpace(m.input.Value())
	if value == "" {
		return m, nil
	}
	m.input.Reset()

	if !m.loggedIn {
		return m.join(value)
	}

	if err := m.sendLine(value); err != nil {
		m.status = fmt.Sprintf("Connection to server lost: %v", err)
		return m, nil
	}
	if strings.EqualFold(value, quitCommand) {
		_ = m.conn.Close()
		return m, tea.Quit
	}

	m.lines = append(m.lines, selfStyle.Render("you: "+value))
	return m, nil
}

// join dials the relay if necessary and submits the candidate username.
// The verdict arrives asynchronously as a server line.
func (m model) join(name string) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	if m.conn == nil {
		conn, events, err := connect(m.addr)
		if err != nil {
			m.status = fmt.Sprintf("Could not connect to server: %v", err)
			return m, nil
		}
		m.conn = conn
		m.events = events
		cmds = append(cmds, waitForServer(events))
	}

	if err := m.sendLine(name); err != nil {
		m.status = fmt.Sprintf("Connection lost during login: %v", err)
		return m, tea.Batch(cmds...)
	}

	m.status = fmt.Sprintf("Joining as %s...", name)
	return m, tea.Batch(cmds...)
}

func (m model) sendLine(line string) error {
	if m.conn == nil {
		return fmt.Errorf("not connected")
	}
	_, err := fmt.Fprintf(m.conn, "%s\n", line)
	return err
}

func (m model) disconnect() {
	if m.conn == nil {
		return
	}
	if m.loggedIn {
		_ = m.sendLine(quitCommand)
	}
	_ = m.conn.Close()
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("chat relay"))
	b.WriteString("\n\n")

	start := 0
	if len(m.lines) > historyLines {
		start = len(m.lines) - historyLines
	}
	for _, line := range m.lines[start:] {
		b.WriteString(line)
		b.WriteByte('\n')
	}

	b.WriteString("\n")
	b.WriteString(statusStyle.Render(m.status))
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")

	return b.String()
}

func main() {
	addr := os.Getenv("CHAT_ADDR")
	if addr == "" {
		addr = defaultAddr
	}

	program := tea.NewProgram(initialModel(addr))
	if _, err := program.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "client error: %v\n", err)
		os.Exit(1)
	}
}
