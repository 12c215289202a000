package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/zarlcorp/core/pkg/zstyle"
	"github.com/zarlcorp/zotp/internal/credential"
)

type confirmKind int

const (
	confirmNone confirmKind = iota
	confirmDelete
	confirmClear
)

// keysModel lists every key with its live code and countdown.
type keysModel struct {
	records  []credential.Credential
	cursor   int
	confirm  confirmKind
	renaming bool
	input    textinput.Model
}

// deleteKeyMsg requests deletion of a key.
type deleteKeyMsg struct {
	id string
}

// clearKeysMsg requests deletion of every key.
type clearKeysMsg struct{}

// copyCodeMsg requests copying a key's current code.
type copyCodeMsg struct {
	id string
}

// showQRMsg requests the QR view for a key.
type showQRMsg struct {
	id string
}

// beginRenameMsg starts an inline rename, committing any other first.
type beginRenameMsg struct {
	id string
}

type commitRenameMsg struct {
	name string
}

type cancelRenameMsg struct{}

func newKeysModel(records []credential.Credential) keysModel {
	ti := textinput.New()
	ti.CharLimit = 64
	ti.Width = 24

	return keysModel{records: records, input: ti}
}

// setRecords replaces the rows and keeps the cursor in range.
func (m *keysModel) setRecords(records []credential.Credential) {
	m.records = records
	if m.cursor >= len(records) {
		m.cursor = max(len(records)-1, 0)
	}
	if len(records) == 0 {
		m.confirm = confirmNone
	}
}

func (m *keysModel) startRename(buffer string) tea.Cmd {
	m.renaming = true
	m.input.SetValue(buffer)
	m.input.CursorEnd()
	return m.input.Focus()
}

func (m *keysModel) stopRename() {
	m.renaming = false
	m.input.Blur()
	m.input.SetValue("")
}

func (m keysModel) selected() (credential.Credential, bool) {
	if len(m.records) == 0 {
		return credential.Credential{}, false
	}
	return m.records[m.cursor], true
}

func (m keysModel) Update(msg tea.Msg) (keysModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if m.renaming {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m keysModel) handleKey(msg tea.KeyMsg) (keysModel, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}

	if m.renaming {
		return m.handleRenameKey(msg)
	}

	if m.confirm != confirmNone {
		return m.handleConfirm(msg)
	}

	if key.Matches(msg, zstyle.KeyQuit) {
		return m, tea.Quit
	}

	if key.Matches(msg, zstyle.KeyUp) {
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	}

	if key.Matches(msg, zstyle.KeyDown) {
		if len(m.records) > 0 && m.cursor < len(m.records)-1 {
			m.cursor++
		}
		return m, nil
	}

	if msg.String() == "a" {
		return m, func() tea.Msg { return navigateMsg{view: viewAdd} }
	}

	c, ok := m.selected()
	if !ok {
		return m, nil
	}

	if key.Matches(msg, zstyle.KeyEnter) {
		return m, func() tea.Msg { return copyCodeMsg{id: c.ID} }
	}

	switch msg.String() {
	case "c":
		return m, func() tea.Msg { return copyCodeMsg{id: c.ID} }
	case "r":
		return m, func() tea.Msg { return beginRenameMsg{id: c.ID} }
	case "v":
		return m, func() tea.Msg { return showQRMsg{id: c.ID} }
	case "d":
		m.confirm = confirmDelete
	case "X":
		m.confirm = confirmClear
	}

	return m, nil
}

func (m keysModel) handleRenameKey(msg tea.KeyMsg) (keysModel, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		name := m.input.Value()
		return m, func() tea.Msg { return commitRenameMsg{name: name} }

	case tea.KeyEsc:
		return m, func() tea.Msg { return cancelRenameMsg{} }

	case tea.KeyUp, tea.KeyDown:
		// moving away commits the rename, like leaving the field
		name := m.input.Value()
		if msg.Type == tea.KeyUp && m.cursor > 0 {
			m.cursor--
		}
		if msg.Type == tea.KeyDown && m.cursor < len(m.records)-1 {
			m.cursor++
		}
		return m, func() tea.Msg { return commitRenameMsg{name: name} }
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m keysModel) handleConfirm(msg tea.KeyMsg) (keysModel, tea.Cmd) {
	kind := m.confirm
	m.confirm = confirmNone

	if msg.String() != "y" {
		return m, nil
	}

	switch kind {
	case confirmDelete:
		id := m.records[m.cursor].ID
		return m, func() tea.Msg { return deleteKeyMsg{id: id} }
	case confirmClear:
		return m, func() tea.Msg { return clearKeysMsg{} }
	}
	return m, nil
}

func (m keysModel) View() string {
	title := zstyle.Title.Render(fmt.Sprintf("keys (%d)", len(m.records)))
	s := fmt.Sprintf("\n  %s\n\n", title)

	if len(m.records) == 0 {
		s += "  " + zstyle.MutedText.Render("no saved keys, press a to add some") + "\n"
		return s
	}

	for i, c := range m.records {
		name := truncate(credential.DisplayName(c, i), 24)
		if m.renaming && i == m.cursor {
			name = m.input.View()
		}

		code := zstyle.Highlight.Render(fmt.Sprintf("%-10s", c.Token))
		if credential.IsSentinel(c.Token) {
			code = zstyle.StatusErr.Render(fmt.Sprintf("%-10s", c.Token))
		}

		line := fmt.Sprintf("%-24s  %s  %s", name, code, countdown(c.UpdatingIn, c.Period))
		if i == m.cursor {
			s += "> " + line + "\n"
		} else {
			s += "  " + line + "\n"
		}
	}

	switch m.confirm {
	case confirmDelete:
		name := credential.DisplayName(m.records[m.cursor], m.cursor)
		s += "\n  " + zstyle.StatusWarn.Render(fmt.Sprintf("delete key %q? this cannot be undone. (y/n)", name)) + "\n"
	case confirmClear:
		s += "\n  " + zstyle.StatusWarn.Render(fmt.Sprintf("clear all %d keys? this cannot be undone. (y/n)", len(m.records))) + "\n"
	}

	return s
}

// countdown renders the seconds left with a warning color near expiry.
func countdown(left, period int) string {
	s := fmt.Sprintf("%2ds", left)
	if left <= 5 && period > 5 {
		return zstyle.StatusWarn.Render(s)
	}
	return zstyle.MutedText.Render(s)
}
