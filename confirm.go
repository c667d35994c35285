package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	input "github.com/tcnksm/go-input"
)

// confirmer blocks until the user says the browser login is done.
type confirmer interface {
	Confirm(prompt string) error
}

// terminalConfirmer reads ENTER from the controlling terminal. The prompt
// goes to stderr so stdout stays machine-readable.
type terminalConfirmer struct {
	ui *input.UI
}

func newTerminalConfirmer(r io.Reader, w io.Writer) *terminalConfirmer {
	return &terminalConfirmer{ui: &input.UI{Reader: r, Writer: w}}
}

func (t *terminalConfirmer) Confirm(prompt string) error {
	_, err := t.ui.Ask(prompt, &input.Options{
		HideDefault: true,
		HideOrder:   true,
	})
	return confirmError(err)
}

// confirmError maps a terminal read failure; Ctrl-C means the user gave up.
func confirmError(err error) error {
	if errors.Is(err, input.ErrInterrupted) {
		return ErrUserCancelled
	}
	if err != nil {
		return fmt.Errorf("failed to read confirmation: %w", err)
	}
	return nil
}

var defaultConfirmer confirmer = newTerminalConfirmer(os.Stdin, os.Stderr)
