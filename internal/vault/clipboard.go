package vault

import "github.com/atotto/clipboard"

// SystemClipboard writes to the OS clipboard.
type SystemClipboard struct{}

// WriteAll copies text to the clipboard.
func (SystemClipboard) WriteAll(text string) error {
	return clipboard.WriteAll(text)
}
