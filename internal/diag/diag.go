// Package diag provides the core's debug/warning loggers, following the
// teacher's "dbg"/"warn" logger pair (see mewmew-x's cmd/x/main.go and
// disasm/x86/x86.go), colored via mewkiz/pkg/term.
package diag

import (
	"io"
	"log"
	"os"

	"github.com/mewkiz/pkg/term"
)

var (
	// Debug logs debug messages with a "lexer:" prefix to standard error.
	// It is silenced unless config.General.Debug is set.
	Debug = log.New(io.Discard, term.MagentaBold("lexer:")+" ", 0)
	// Warn logs non-fatal recovered errors with a "warning:" prefix to
	// standard error. It is always enabled.
	Warn = log.New(os.Stderr, term.RedBold("warning:")+" ", 0)
)

// SetDebug toggles whether Debug writes to stderr.
func SetDebug(enabled bool) {
	if enabled {
		Debug.SetOutput(os.Stderr)
		return
	}
	Debug.SetOutput(io.Discard)
}
