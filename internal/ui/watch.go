package ui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// ErrWatchClosed is returned when the relay stops sending room updates.
var ErrWatchClosed = errors.New("relay connection closed")

// RoomsMsg carries a fresh room list into the watch model.
type RoomsMsg []string

type watchClosedMsg struct{}

// WatchModel shows the live room list pushed by the relay.
type WatchModel struct {
	server   string
	rooms    []string
	updates  <-chan []string
	updated  time.Time
	spinner  spinner.Model
	err      error
	quitting bool
}

func NewWatchModel(server string, updates <-chan []string) *WatchModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	return &WatchModel{
		server:  server,
		updates: updates,
		spinner: s,
	}
}

// Err reports why the model stopped, nil when the user quit.
func (m *WatchModel) Err() error { return m.err }

func (m *WatchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForUpdates())
}

func (m *WatchModel) listenForUpdates() tea.Cmd {
	return func() tea.Msg {
		rooms, ok := <-m.updates
		if !ok {
			return watchClosedMsg{}
		}
		return RoomsMsg(rooms)
	}
}

func (m *WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		}

	case RoomsMsg:
		m.rooms = []string(msg)
		m.updated = time.Now()
		return m, m.listenForUpdates()

	case watchClosedMsg:
		m.err = ErrWatchClosed
		m.quitting = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *WatchModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(HeaderStyle.Render(fmt.Sprintf("%s Rooms on %s", IconRoom, m.server)))
	b.WriteString("\n")

	if m.updated.IsZero() {
		b.WriteString(fmt.Sprintf("%s %s Waiting for the relay...\n", m.spinner.View(), IconWaiting))
	} else {
		b.WriteString(fmt.Sprintf("%s %s\n\n", m.spinner.View(),
			StatusStyle.Render(fmt.Sprintf("%d open", len(m.rooms)))))
		b.WriteString(RoomTableView(m.rooms))
		b.WriteString("\n")
		b.WriteString(MutedStyle.Render("updated " + m.updated.Format(time.TimeOnly)))
	}

	b.WriteString("\n" + FooterStyle.Render("Press q to quit"))
	return b.String()
}

// RunWatch runs the watch view inline until the user quits or updates closes.
func RunWatch(server string, updates <-chan []string) error {
	model := NewWatchModel(server, updates)
	if _, err := tea.NewProgram(model).Run(); err != nil {
		return err
	}
	return model.Err()
}
