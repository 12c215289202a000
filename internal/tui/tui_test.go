package tui

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/zarlcorp/zotp/internal/config"
	"github.com/zarlcorp/zotp/internal/store"
	"github.com/zarlcorp/zotp/internal/vault"
)

// helpers

func keyMsg(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func specialKey(t tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: t}
}

func enterKey() tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyEnter}
}

func escKey() tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyEsc}
}

var fixedNow = time.Unix(1_700_000_000, 0)

type fakeClipboard struct {
	got string
	err error
}

func (f *fakeClipboard) WriteAll(s string) error {
	if f.err != nil {
		return f.err
	}
	f.got = s
	return nil
}

func testConfig(t *testing.T) config.Config {
	return config.Config{
		DataDir: t.TempDir(),
		Backend: config.BackendZstore,
		Digits:  "6",
		Period:  "30",
	}
}

// attached returns a model on the keys view backed by memory slots.
func attached(t *testing.T, slots *store.MemSlots) Model {
	t.Helper()
	m := New("1.0", testConfig(t), false, slog.New(slog.NewTextHandler(io.Discard, nil)))
	m.clip = &fakeClipboard{}

	n := 0
	err := m.Attach(slots, nil,
		vault.WithClock(func() time.Time { return fixedNow }),
		vault.WithIDFunc(func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		}),
	)
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	return m
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	result, cmd := m.Update(msg)
	rm, ok := result.(Model)
	if !ok {
		t.Fatalf("Update returned %T", result)
	}
	return rm, cmd
}

// add submits a batch through the root model.
func add(t *testing.T, m Model, text string) Model {
	t.Helper()
	m, _ = update(t, m, submitBatchMsg{text: text, digits: "6", period: "30"})
	return m
}

// root model tests

func TestRootStartsAtPassword(t *testing.T) {
	m := New("1.0", testConfig(t), true, nil)
	if m.active != viewPassword {
		t.Errorf("active = %d, want viewPassword", m.active)
	}
	if !strings.Contains(m.View(), "create master password") {
		t.Error("first run should ask to create a password")
	}
}

func TestRootQuitFromPassword(t *testing.T) {
	m := New("1.0", testConfig(t), false, nil)
	_, cmd := update(t, m, specialKey(tea.KeyCtrlC))
	if cmd == nil {
		t.Fatal("ctrl+c should quit from password view")
	}
}

func TestRootAttachShowsKeys(t *testing.T) {
	m := attached(t, store.NewMemSlots())

	if m.active != viewKeys {
		t.Fatalf("active = %d, want viewKeys", m.active)
	}
	if !strings.Contains(m.View(), "no saved keys") {
		t.Error("empty vault should show empty keys view")
	}
	if m.Init() == nil {
		t.Error("attached model should start ticking")
	}
}

func TestRootAttachMigrationNoticeFlashes(t *testing.T) {
	slots := store.NewMemSlots()
	slots.SetItem(store.KeyV4, `[{"name":"old","secret":"JBSWY3DPEHPK3PXP","digits":"6","period":"30"}]`)

	m := attached(t, slots)

	if !strings.Contains(m.flash, "migrated") {
		t.Errorf("flash = %q, want migration notice", m.flash)
	}
	if len(m.keys.records) != 1 || m.keys.records[0].Name != "old" {
		t.Errorf("records = %+v", m.keys.records)
	}
}

// enterPassword types pw into the password view (twice when confirm is
// set) and delivers the unlock result back to the root model.
func enterPassword(t *testing.T, m Model, pw string, confirm bool) Model {
	t.Helper()
	entries := 1
	if confirm {
		entries = 2
	}

	var cmd tea.Cmd
	for range entries {
		m.password.input.SetValue(pw)
		m, cmd = update(t, m, enterKey())
	}
	if cmd == nil {
		t.Fatal("submitting a password should start the unlock")
	}
	m, _ = update(t, m, cmd())
	return m
}

func TestRootUnlockRoundTrip(t *testing.T) {
	cfg := testConfig(t)

	m := enterPassword(t, New("1.0", cfg, true, nil), "pw", true)
	if m.active != viewKeys {
		t.Fatalf("active = %d, want viewKeys after unlock", m.active)
	}
	m = add(t, m, "github:JBSWY3DPEHPK3PXP")
	m.Close()

	m = enterPassword(t, New("1.0", cfg, false, nil), "pw", false)
	defer m.Close()

	if len(m.keys.records) != 1 || m.keys.records[0].Name != "github" {
		t.Errorf("records after reopen = %+v", m.keys.records)
	}
}

func TestRootUnlockWrongPassword(t *testing.T) {
	cfg := testConfig(t)

	m := enterPassword(t, New("1.0", cfg, true, nil), "right", true)
	m.Close()

	m = enterPassword(t, New("1.0", cfg, false, nil), "wrong", false)

	if m.active != viewPassword {
		t.Fatalf("active = %d, want viewPassword", m.active)
	}
	if m.vault != nil {
		t.Error("no vault should be attached after a wrong password")
	}
	if !strings.Contains(m.View(), "wrong password") {
		t.Error("view should report wrong password")
	}
}

func TestRootAddBatch(t *testing.T) {
	m := attached(t, store.NewMemSlots())

	m, _ = update(t, m, navigateMsg{view: viewAdd})
	if m.active != viewAdd {
		t.Fatalf("active = %d, want viewAdd", m.active)
	}

	m = add(t, m, "github:JBSWY3DPEHPK3PXP\nbad!!")

	if m.active != viewKeys {
		t.Errorf("active = %d, want viewKeys after submit", m.active)
	}
	if len(m.keys.records) != 1 {
		t.Fatalf("records = %d, want 1", len(m.keys.records))
	}
	if got := m.keys.records[0].Token; got != "324550" {
		t.Errorf("token = %q, want 324550", got)
	}
	if m.flash != "added 1, 1 failed" {
		t.Errorf("flash = %q", m.flash)
	}
}

func TestRootAddBlankStays(t *testing.T) {
	m := attached(t, store.NewMemSlots())
	m, _ = update(t, m, navigateMsg{view: viewAdd})

	m = add(t, m, "  \n ")
	if m.active != viewAdd {
		t.Errorf("active = %d, want viewAdd on blank submit", m.active)
	}
	if m.flash != "" {
		t.Errorf("flash = %q, want none", m.flash)
	}
}

func TestRootAddAllInvalidIsError(t *testing.T) {
	m := attached(t, store.NewMemSlots())
	m = add(t, m, "bad!!")

	if !m.flashErr {
		t.Error("no valid keys should flash as error")
	}
	if !strings.Contains(m.flash, "no valid keys") {
		t.Errorf("flash = %q", m.flash)
	}
}

func TestRootAddUsesBatchDefaults(t *testing.T) {
	m := attached(t, store.NewMemSlots())
	m, _ = update(t, m, submitBatchMsg{text: "JBSWY3DPEHPK3PXP", digits: "8", period: "60"})

	c := m.keys.records[0]
	if c.Digits != 8 || c.Period != 60 || len(c.Token) != 8 {
		t.Errorf("record = %+v", c)
	}

	// the add view reopens with the last defaults
	m, _ = update(t, m, navigateMsg{view: viewAdd})
	if m.add.digits.Value() != "8" || m.add.period.Value() != "60" {
		t.Errorf("defaults = %s/%s, want 8/60", m.add.digits.Value(), m.add.period.Value())
	}
}

func TestRootTickRefreshes(t *testing.T) {
	m := attached(t, store.NewMemSlots())
	m = add(t, m, "JBSWY3DPEHPK3PXP")

	m, cmd := update(t, m, tickMsg{at: time.Unix(59, 0)})
	if cmd == nil {
		t.Error("tick should schedule the next tick")
	}
	if got := m.keys.records[0].Token; got != "996554" {
		t.Errorf("token = %q, want 996554", got)
	}
	if got := m.keys.records[0].UpdatingIn; got != 1 {
		t.Errorf("updatingIn = %d, want 1", got)
	}
}

func TestRootTickBeforeUnlockIgnored(t *testing.T) {
	m := New("1.0", testConfig(t), false, nil)
	_, cmd := update(t, m, tickMsg{at: fixedNow})
	if cmd != nil {
		t.Error("tick before unlock should not reschedule")
	}
}

func TestRootRename(t *testing.T) {
	slots := store.NewMemSlots()
	m := attached(t, slots)
	m = add(t, m, "github:JBSWY3DPEHPK3PXP")

	m, _ = update(t, m, beginRenameMsg{id: "id-1"})
	if !m.keys.renaming {
		t.Fatal("keys view should be renaming")
	}
	if m.keys.input.Value() != "github" {
		t.Errorf("buffer = %q, want github", m.keys.input.Value())
	}

	m, _ = update(t, m, keyMsg('!'))
	m, _ = update(t, m, commitRenameMsg{name: "  work  "})

	if m.keys.renaming {
		t.Error("rename should stop after commit")
	}
	if got := m.keys.records[0].Name; got != "work" {
		t.Errorf("name = %q, want work", got)
	}

	raw, _, _ := slots.GetItem(store.CanonicalKey)
	if !strings.Contains(raw, `"name":"work"`) {
		t.Errorf("saved = %s", raw)
	}
}

func TestRootRenameTypingUpdatesBuffer(t *testing.T) {
	m := attached(t, store.NewMemSlots())
	m = add(t, m, "github:JBSWY3DPEHPK3PXP")

	m, _ = update(t, m, beginRenameMsg{id: "id-1"})
	m, _ = update(t, m, keyMsg('x'))

	// a tick in the middle of typing must not reset the field
	m, _ = update(t, m, tickMsg{at: fixedNow})
	if got := m.keys.input.Value(); got != "githubx" {
		t.Errorf("input = %q, want githubx", got)
	}

	m, _ = update(t, m, cancelRenameMsg{})
	if got := m.keys.records[0].Name; got != "github" {
		t.Errorf("name = %q after cancel, want github", got)
	}
	if _, ok := m.vault.Renaming(); ok {
		t.Error("vault should not be renaming after cancel")
	}
}

func TestRootRenameSwitchCommitsPrevious(t *testing.T) {
	m := attached(t, store.NewMemSlots())
	m = add(t, m, "a:JBSWY3DPEHPK3PXP\nb:GEZDGNBVGY3TQOJQ")

	m, _ = update(t, m, beginRenameMsg{id: "id-1"})
	m.vault.SetRenameBuffer("first")
	m, _ = update(t, m, beginRenameMsg{id: "id-2"})

	if got := m.keys.records[0].Name; got != "first" {
		t.Errorf("first name = %q, want first", got)
	}
	if id, _ := m.vault.Renaming(); id != "id-2" {
		t.Errorf("renaming = %q, want id-2", id)
	}
}

func TestRootDelete(t *testing.T) {
	m := attached(t, store.NewMemSlots())
	m = add(t, m, "a:JBSWY3DPEHPK3PXP\nb:GEZDGNBVGY3TQOJQ")

	m, _ = update(t, m, deleteKeyMsg{id: "id-1"})

	if len(m.keys.records) != 1 || m.keys.records[0].ID != "id-2" {
		t.Errorf("records = %+v", m.keys.records)
	}
	if m.flash != `key "a" deleted` {
		t.Errorf("flash = %q", m.flash)
	}
}

func TestRootDeleteMissing(t *testing.T) {
	m := attached(t, store.NewMemSlots())

	m, _ = update(t, m, deleteKeyMsg{id: "nope"})
	if !m.flashErr {
		t.Error("deleting a missing key should flash an error")
	}
}

func TestRootClear(t *testing.T) {
	m := attached(t, store.NewMemSlots())
	m = add(t, m, "a:JBSWY3DPEHPK3PXP\nb:GEZDGNBVGY3TQOJQ")

	m, _ = update(t, m, clearKeysMsg{})

	if len(m.keys.records) != 0 {
		t.Errorf("records = %d, want 0", len(m.keys.records))
	}
	if m.flash != "all keys cleared" {
		t.Errorf("flash = %q", m.flash)
	}
}

func TestRootCopy(t *testing.T) {
	m := attached(t, store.NewMemSlots())
	m = add(t, m, "JBSWY3DPEHPK3PXP")

	m, _ = update(t, m, copyCodeMsg{id: "id-1"})

	if got := m.clip.(*fakeClipboard).got; got != "324550" {
		t.Errorf("clipboard = %q, want 324550", got)
	}
	if m.flash != "code 324550 copied" {
		t.Errorf("flash = %q", m.flash)
	}
}

func TestRootCopyError(t *testing.T) {
	m := attached(t, store.NewMemSlots())
	m = add(t, m, "JBSWY3DPEHPK3PXP")
	m.clip = &fakeClipboard{err: errors.New("no display")}

	m, _ = update(t, m, copyCodeMsg{id: "id-1"})
	if !m.flashErr || !strings.Contains(m.flash, "no display") {
		t.Errorf("flash = %q (err %v)", m.flash, m.flashErr)
	}
}

func TestRootCopySentinelRefused(t *testing.T) {
	slots := store.NewMemSlots()
	slots.SetItem(store.CanonicalKey, `[{"id":"x","name":"broken","secret":"","digits":6,"period":30}]`)
	m := attached(t, slots)

	m, _ = update(t, m, copyCodeMsg{id: "x"})
	if !m.flashErr {
		t.Error("copying a sentinel should flash an error")
	}
	if m.clip.(*fakeClipboard).got != "" {
		t.Error("sentinel should not reach the clipboard")
	}
}

func TestRootShowQR(t *testing.T) {
	m := attached(t, store.NewMemSlots())
	m = add(t, m, "github:JBSWY3DPEHPK3PXP")

	m, _ = update(t, m, showQRMsg{id: "id-1"})
	if m.active != viewQR {
		t.Fatalf("active = %d, want viewQR", m.active)
	}
	view := m.View()
	if !strings.Contains(view, "github") || !strings.Contains(view, "otpauth://totp/") {
		t.Error("qr view should show label and uri")
	}

	_, cmd := update(t, m, escKey())
	nav, ok := emitted(t, cmd).(navigateMsg)
	if !ok || nav.view != viewKeys {
		t.Errorf("esc should navigate back, got %#v", nav)
	}
}

func TestRootSaveFailureFlashes(t *testing.T) {
	slots := store.NewMemSlots()
	m := attached(t, slots)
	slots.FailWrites(true)

	m = add(t, m, "JBSWY3DPEHPK3PXP")

	if !m.flashErr || !strings.Contains(m.flash, "could not save") {
		t.Errorf("flash = %q (err %v), want save failure", m.flash, m.flashErr)
	}
	if len(m.keys.records) != 1 {
		t.Error("record should stay in memory when the save fails")
	}
}

func TestRootFlashClearsOnlyLatest(t *testing.T) {
	m := attached(t, store.NewMemSlots())
	m = add(t, m, "JBSWY3DPEHPK3PXP")
	stale := m.flashSeq

	m, _ = update(t, m, copyCodeMsg{id: "id-1"})

	m, _ = update(t, m, flashMsg{seq: stale})
	if m.flash == "" {
		t.Error("stale flashMsg should not clear a newer flash")
	}

	m, _ = update(t, m, flashMsg{seq: m.flashSeq})
	if m.flash != "" {
		t.Errorf("flash = %q, want cleared", m.flash)
	}
}

func TestRootViewHeaderAndHelp(t *testing.T) {
	m := attached(t, store.NewMemSlots())
	view := m.View()

	for _, want := range []string{"zotp", "Keys", "add", "rename", "quit"} {
		if !strings.Contains(view, want) {
			t.Errorf("view should contain %q", want)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		input string
		max   int
		want  string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is too long", 10, "this is t…"},
	}

	for _, tt := range tests {
		got := truncate(tt.input, tt.max)
		if got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.input, tt.max, got, tt.want)
		}
	}
}
