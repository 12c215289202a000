package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/zarlcorp/core/pkg/zstyle"
)

// qrModel shows an otpauth QR code for scanning into another app.
type qrModel struct {
	label string
	code  string
	uri   string
}

func newQRModel(label, code, uri string) qrModel {
	return qrModel{label: label, code: code, uri: uri}
}

func (m qrModel) Update(msg tea.Msg) (qrModel, tea.Cmd) {
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	if key.Matches(km, zstyle.KeyBack) || key.Matches(km, zstyle.KeyEnter) {
		return m, func() tea.Msg { return navigateMsg{view: viewKeys} }
	}
	if key.Matches(km, zstyle.KeyQuit) {
		return m, tea.Quit
	}
	return m, nil
}

func (m qrModel) View() string {
	s := fmt.Sprintf("\n  %s\n\n", zstyle.Title.Render(m.label))
	s += m.code + "\n"
	s += "  " + zstyle.MutedText.Render(m.uri) + "\n"
	return s
}
