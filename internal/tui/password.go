package tui

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/zarlcorp/core/pkg/zcrypto"
	"github.com/zarlcorp/core/pkg/zfilesystem"
	"github.com/zarlcorp/core/pkg/zstore"
	"github.com/zarlcorp/core/pkg/zstyle"
	"github.com/zarlcorp/zotp/internal/store"
)

var errWrongPassword = errors.New("wrong password")

type unlockStage int

const (
	stageUnlock unlockStage = iota
	stageCreate
	stageConfirm
)

// passwordModel unlocks the encrypted slot store in dataDir, creating it
// with a confirmed password on first run.
type passwordModel struct {
	dataDir  string
	input    textinput.Model
	stage    unlockStage
	pending  string
	busy     bool
	failures int
	errMsg   string
}

// unlockedMsg carries the open store and its slots to the root model,
// which owns closing it.
type unlockedMsg struct {
	store *zstore.Store
	slots *store.ZstoreSlots
}

// unlockFailedMsg reports why the store could not be opened.
type unlockFailedMsg struct {
	err error
}

func newPasswordModel(dataDir string, firstRun bool) passwordModel {
	ti := textinput.New()
	ti.EchoMode = textinput.EchoPassword
	ti.EchoCharacter = '*'
	ti.CharLimit = 128
	ti.Width = 40
	ti.Focus()

	stage := stageUnlock
	if firstRun {
		stage = stageCreate
	}
	return passwordModel{dataDir: dataDir, input: ti, stage: stage}
}

func (m passwordModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m passwordModel) Update(msg tea.Msg) (passwordModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.busy {
			return m, nil
		}
		if key.Matches(msg, zstyle.KeyEnter) {
			return m.submit()
		}

	case unlockFailedMsg:
		m.busy = false
		m.failures++
		m.errMsg = msg.err.Error()
		if m.stage == stageConfirm {
			m.stage = stageCreate
		}
		m.pending = ""
		m.input.SetValue("")
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m passwordModel) submit() (passwordModel, tea.Cmd) {
	val := m.input.Value()
	if val == "" {
		return m, nil
	}
	m.input.SetValue("")
	m.errMsg = ""

	switch m.stage {
	case stageCreate:
		m.pending = val
		m.stage = stageConfirm
		return m, nil

	case stageConfirm:
		if val != m.pending {
			m.pending = ""
			m.stage = stageCreate
			m.errMsg = "passwords do not match"
			return m, nil
		}
		m.pending = ""
	}

	m.busy = true
	dir := m.dataDir
	return m, func() tea.Msg { return unlock(dir, []byte(val)) }
}

// unlock opens the zstore in dir and its slots collection. The password
// bytes are erased before it returns.
func unlock(dir string, password []byte) tea.Msg {
	defer zcrypto.Erase(password)

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return unlockFailedMsg{err: fmt.Errorf("create data dir: %w", err)}
	}

	s, err := zstore.Open(zfilesystem.NewOSFileSystem(dir), password)
	if errors.Is(err, zstore.ErrWrongPassword) {
		return unlockFailedMsg{err: errWrongPassword}
	}
	if err != nil {
		return unlockFailedMsg{err: fmt.Errorf("open store: %w", err)}
	}

	slots, err := store.NewZstoreSlots(s)
	if err != nil {
		s.Close()
		return unlockFailedMsg{err: err}
	}
	return unlockedMsg{store: s, slots: slots}
}

func (m passwordModel) View() string {
	indent := lipgloss.NewStyle().MarginLeft(2)
	logo := indent.Render(zstyle.StyledLogo(lipgloss.NewStyle().Foreground(accent)))
	name := indent.Render(zstyle.MutedText.Render("zotp"))

	prompt := "master password:"
	switch m.stage {
	case stageCreate:
		prompt = "create master password:"
	case stageConfirm:
		prompt = "confirm password:"
	}

	s := fmt.Sprintf("\n%s\n%s\n\n  %s\n  %s\n", logo, name, prompt, m.input.View())
	s += "  " + zstyle.MutedText.Render(m.dataDir) + "\n"

	switch {
	case m.busy:
		s += "\n  " + zstyle.MutedText.Render("unlocking...")
	case m.errMsg != "" && m.failures > 1:
		s += "\n  " + zstyle.StatusErr.Render(fmt.Sprintf("%s (%d attempts)", m.errMsg, m.failures))
	case m.errMsg != "":
		s += "\n  " + zstyle.StatusErr.Render(m.errMsg)
	}

	return s + "\n"
}
