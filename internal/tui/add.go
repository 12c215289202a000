package tui

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/zarlcorp/core/pkg/zstyle"
)

const (
	focusText = iota
	focusDigits
	focusPeriod
	focusCount
)

// addModel collects a batch of keys, one per line, plus the digits and
// period used for every line of the batch.
type addModel struct {
	area   textarea.Model
	digits textinput.Model
	period textinput.Model
	focus  int
}

// submitBatchMsg carries the raw batch text and default fields.
type submitBatchMsg struct {
	text   string
	digits string
	period string
}

func newAddModel(digits, period int) addModel {
	ta := textarea.New()
	ta.Placeholder = "name:SECRET or SECRET, one per line"
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.SetWidth(60)
	ta.SetHeight(8)
	ta.Focus()

	d := textinput.New()
	d.CharLimit = 2
	d.Width = 4
	d.SetValue(strconv.Itoa(digits))

	p := textinput.New()
	p.CharLimit = 4
	p.Width = 6
	p.SetValue(strconv.Itoa(period))

	return addModel{area: ta, digits: d, period: p}
}

func (m addModel) Init() tea.Cmd {
	return textarea.Blink
}

func (m addModel) Update(msg tea.Msg) (addModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.Type {
		case tea.KeyCtrlC:
			return m, tea.Quit

		case tea.KeyCtrlS:
			return m, m.submit()

		case tea.KeyEsc:
			return m, func() tea.Msg { return navigateMsg{view: viewKeys} }
		}

		if key.Matches(msg, zstyle.KeyTab) {
			return m.cycleFocus()
		}

		// pasting into an empty box adds the pasted keys right away
		if msg.Paste && m.focus == focusText && m.area.Value() == "" {
			text := string(msg.Runes)
			m.area.SetValue(text)
			return m, m.submit()
		}
	}

	var cmd tea.Cmd
	switch m.focus {
	case focusText:
		m.area, cmd = m.area.Update(msg)
	case focusDigits:
		m.digits, cmd = m.digits.Update(msg)
	case focusPeriod:
		m.period, cmd = m.period.Update(msg)
	}
	return m, cmd
}

func (m addModel) submit() tea.Cmd {
	msg := submitBatchMsg{
		text:   m.area.Value(),
		digits: m.digits.Value(),
		period: m.period.Value(),
	}
	return func() tea.Msg { return msg }
}

func (m addModel) cycleFocus() (addModel, tea.Cmd) {
	m.area.Blur()
	m.digits.Blur()
	m.period.Blur()

	m.focus = (m.focus + 1) % focusCount

	var cmd tea.Cmd
	switch m.focus {
	case focusText:
		cmd = m.area.Focus()
	case focusDigits:
		cmd = m.digits.Focus()
	case focusPeriod:
		cmd = m.period.Focus()
	}
	return m, cmd
}

func (m addModel) View() string {
	s := fmt.Sprintf("\n  %s\n", zstyle.Title.Render("add keys"))
	s += "  " + zstyle.MutedText.Render("separate name and secret with a colon or a tab") + "\n\n"
	s += m.area.View() + "\n\n"

	s += fmt.Sprintf("  %s %s   %s %s\n",
		label("digits", m.focus == focusDigits), m.digits.View(),
		label("period", m.focus == focusPeriod), m.period.View(),
	)
	return s
}

func label(name string, active bool) string {
	if active {
		return zstyle.Highlight.Render(name + ":")
	}
	return zstyle.Subtitle.Render(name + ":")
}
