// Package tui implements the root Bubble Tea model for zotp.
package tui

import (
	"fmt"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/zarlcorp/core/pkg/zstyle"
	"github.com/zarlcorp/zotp/internal/batch"
	"github.com/zarlcorp/zotp/internal/config"
	"github.com/zarlcorp/zotp/internal/qr"
	"github.com/zarlcorp/zotp/internal/refresh"
	"github.com/zarlcorp/zotp/internal/store"
	"github.com/zarlcorp/zotp/internal/vault"
)

// accent is zotp's header and logo color.
var accent = lipgloss.Color("#3fb68b")

// flashDuration is how long a notice stays on screen.
const flashDuration = 3 * time.Second

type viewID int

const (
	viewPassword viewID = iota
	viewKeys
	viewAdd
	viewQR
)

// navigateMsg switches the active view.
type navigateMsg struct {
	view viewID
}

// flashMsg clears the flash line if no newer flash replaced it.
type flashMsg struct {
	seq int
}

// tickMsg refreshes every code.
type tickMsg struct {
	at time.Time
}

// Model is the root TUI model.
type Model struct {
	version string
	cfg     config.Config
	log     *slog.Logger

	vault   *vault.Vault
	release func()
	clip    vault.Clipboard

	active   viewID
	password passwordModel
	keys     keysModel
	add      addModel
	qr       qrModel

	flash    string
	flashErr bool
	flashSeq int

	width  int
	height int
}

// New creates the root TUI model. It starts on the password view; call
// Attach to skip it for backends that need no password.
func New(version string, cfg config.Config, firstRun bool, log *slog.Logger) Model {
	if log == nil {
		log = slog.Default()
	}
	return Model{
		version:  version,
		cfg:      cfg,
		log:      log,
		clip:     vault.SystemClipboard{},
		active:   viewPassword,
		password: newPasswordModel(cfg.DataDir, firstRun),
	}
}

// Attach loads the vault from slots and switches to the keys view.
// release is called by Close.
func (m *Model) Attach(slots store.Slots, release func(), opts ...vault.Option) error {
	opts = append([]vault.Option{
		vault.WithLogger(m.log),
		vault.WithDefaults(batch.ParseDefaults(m.cfg.Digits, m.cfg.Period)),
	}, opts...)

	v, err := vault.Open(slots, refresh.TOTP{}, opts...)
	if err != nil {
		return err
	}

	m.vault = v
	m.release = release
	m.keys = newKeysModel(v.Records())
	m.active = viewKeys
	m.takeNotices()
	return nil
}

// Close releases the underlying store.
func (m Model) Close() {
	if m.release != nil {
		m.release()
	}
}

func (m Model) Init() tea.Cmd {
	if m.vault == nil {
		return m.password.Init()
	}
	cmds := []tea.Cmd{tick()}
	if m.flash != "" {
		cmds = append(cmds, clearFlashAfter(m.flashSeq))
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case unlockedMsg:
		return m.unlocked(msg)

	case navigateMsg:
		return m.navigate(msg.view)

	case tickMsg:
		if m.vault == nil {
			return m, nil
		}
		m.vault.Tick(msg.at)
		m.syncKeys()
		return m, tea.Batch(tick(), m.takeNotices())

	case flashMsg:
		if msg.seq == m.flashSeq {
			m.flash = ""
			m.flashErr = false
		}
		return m, nil

	case submitBatchMsg:
		return m.handleBatch(msg)

	case beginRenameMsg:
		return m.handleBeginRename(msg.id)

	case commitRenameMsg:
		m.vault.SetRenameBuffer(msg.name)
		m.vault.CommitRename()
		m.keys.stopRename()
		m.syncKeys()
		return m, m.takeNotices()

	case cancelRenameMsg:
		m.vault.CancelRename()
		m.keys.stopRename()
		return m, nil

	case deleteKeyMsg:
		if err := m.vault.Remove(msg.id); err != nil {
			m.syncKeys()
			return m, m.setFlash("delete: "+err.Error(), true)
		}
		m.syncKeys()
		return m, m.takeNotices()

	case clearKeysMsg:
		if _, err := m.vault.Clear(true); err != nil {
			return m, m.setFlash("clear: "+err.Error(), true)
		}
		m.syncKeys()
		return m, m.takeNotices()

	case copyCodeMsg:
		code, err := m.vault.Copy(msg.id, m.clip)
		if err != nil {
			return m, m.setFlash("copy: "+err.Error(), true)
		}
		return m, m.setFlash(fmt.Sprintf("code %s copied", code), false)

	case showQRMsg:
		return m.showQR(msg.id)
	}

	return m.updateActive(msg)
}

func (m Model) View() string {
	if m.active == viewPassword {
		return m.password.View()
	}

	var content string
	switch m.active {
	case viewKeys:
		content = m.keys.View()
	case viewAdd:
		content = m.add.View()
	case viewQR:
		content = m.qr.View()
	}

	header := zstyle.RenderHeader("zotp", viewTitle(m.active), accent)
	sep := zstyle.RenderSeparator(m.width)
	footer := zstyle.RenderFooter(helpFor(m.active, m.keys))

	flash := "\n"
	if m.flash != "" {
		style := zstyle.StatusOK
		if m.flashErr {
			style = zstyle.StatusErr
		}
		flash = "  " + style.Render(m.flash) + "\n"
	}

	return "\n" + header + "\n" + sep + "\n" + content + "\n" + flash + footer + "\n"
}

// viewTitle returns the display title for each view.
func viewTitle(id viewID) string {
	switch id {
	case viewKeys:
		return "Keys"
	case viewAdd:
		return "Add Keys"
	case viewQR:
		return "QR Code"
	}
	return ""
}

// helpFor returns keybinding pairs for each view's footer.
func helpFor(id viewID, keys keysModel) []zstyle.HelpPair {
	switch id {
	case viewKeys:
		if keys.renaming {
			return []zstyle.HelpPair{
				{Key: "enter", Desc: "save"},
				{Key: "esc", Desc: "cancel"},
			}
		}
		if keys.confirm != confirmNone {
			return []zstyle.HelpPair{
				{Key: "y", Desc: "confirm"},
				{Key: "n", Desc: "cancel"},
			}
		}
		return []zstyle.HelpPair{
			{Key: "j/k", Desc: "navigate"},
			{Key: "enter", Desc: "copy"},
			{Key: "a", Desc: "add"},
			{Key: "r", Desc: "rename"},
			{Key: "v", Desc: "qr"},
			{Key: "d", Desc: "delete"},
			{Key: "X", Desc: "clear"},
			{Key: "q", Desc: "quit"},
		}
	case viewAdd:
		return []zstyle.HelpPair{
			{Key: "tab", Desc: "next field"},
			{Key: "ctrl+s", Desc: "add"},
			{Key: "esc", Desc: "back"},
		}
	case viewQR:
		return []zstyle.HelpPair{
			{Key: "esc", Desc: "back"},
			{Key: "q", Desc: "quit"},
		}
	}
	return nil
}

func (m Model) updateActive(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.active {
	case viewPassword:
		m.password, cmd = m.password.Update(msg)
	case viewKeys:
		m.keys, cmd = m.keys.Update(msg)
		if m.keys.renaming && m.vault != nil {
			m.vault.SetRenameBuffer(m.keys.input.Value())
		}
	case viewAdd:
		m.add, cmd = m.add.Update(msg)
	case viewQR:
		m.qr, cmd = m.qr.Update(msg)
	}

	return m, cmd
}

// unlocked attaches the store opened by the password view.
func (m Model) unlocked(msg unlockedMsg) (tea.Model, tea.Cmd) {
	if err := m.Attach(msg.slots, func() { msg.store.Close() }); err != nil {
		msg.store.Close()
		m.password, _ = m.password.Update(unlockFailedMsg{err: err})
		return m, nil
	}

	m.log.Info("vault unlocked", "keys", m.vault.Len())
	cmds := []tea.Cmd{tick(), tea.ClearScreen}
	if m.flash != "" {
		cmds = append(cmds, clearFlashAfter(m.flashSeq))
	}
	return m, tea.Batch(cmds...)
}

func (m Model) navigate(view viewID) (tea.Model, tea.Cmd) {
	switch view {
	case viewKeys:
		m.syncKeys()
		m.active = viewKeys
		return m, tea.ClearScreen

	case viewAdd:
		d := m.vault.Defaults()
		m.add = newAddModel(d.Digits, d.Period)
		m.active = viewAdd
		return m, tea.Batch(m.add.Init(), tea.ClearScreen)
	}

	return m, nil
}

func (m Model) handleBatch(msg submitBatchMsg) (tea.Model, tea.Cmd) {
	m.vault.SetDefaults(msg.digits, msg.period)
	res := m.vault.AddBatch(msg.text)
	if res.Blank {
		return m, nil
	}

	m.syncKeys()
	m.active = viewKeys
	return m, tea.Batch(m.takeNotices(), tea.ClearScreen)
}

func (m Model) handleBeginRename(id string) (tea.Model, tea.Cmd) {
	buf, err := m.vault.BeginRename(id)
	if err != nil {
		return m, m.setFlash("rename: "+err.Error(), true)
	}
	m.syncKeys()
	cmd := m.keys.startRename(buf)
	return m, tea.Batch(cmd, m.takeNotices())
}

func (m Model) showQR(id string) (tea.Model, tea.Cmd) {
	c, ok := m.vault.Get(id)
	if !ok {
		return m, nil
	}

	uri, err := qr.URI(c)
	if err != nil {
		return m, m.setFlash("qr: "+err.Error(), true)
	}
	code, err := qr.Terminal(uri)
	if err != nil {
		return m, m.setFlash("qr: "+err.Error(), true)
	}

	m.qr = newQRModel(qr.Label(c), code, uri)
	m.active = viewQR
	return m, tea.ClearScreen
}

// syncKeys copies the vault's current records into the keys view.
func (m *Model) syncKeys() {
	if m.vault == nil {
		return
	}
	m.keys.setRecords(m.vault.Records())
}

// takeNotices moves pending vault notices to the flash line. An error
// notice wins over informational ones.
func (m *Model) takeNotices() tea.Cmd {
	if m.vault == nil {
		return nil
	}
	ns := m.vault.Notices()
	if len(ns) == 0 {
		return nil
	}

	n := ns[len(ns)-1]
	for _, x := range ns {
		if x.Err {
			n = x
		}
	}
	return m.setFlash(n.Message, n.Err)
}

func (m *Model) setFlash(msg string, isErr bool) tea.Cmd {
	m.flashSeq++
	m.flash = msg
	m.flashErr = isErr
	return clearFlashAfter(m.flashSeq)
}

func clearFlashAfter(seq int) tea.Cmd {
	return tea.Tick(flashDuration, func(time.Time) tea.Msg {
		return flashMsg{seq: seq}
	})
}

func tick() tea.Cmd {
	return tea.Tick(refresh.Interval, func(t time.Time) tea.Msg {
		return tickMsg{at: t}
	})
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}
