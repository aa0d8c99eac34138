// Package lexerr defines the error kinds the core distinguishes, per the
// error handling design: disassembly failures are recovered (they mark an
// address invalid and construction continues elsewhere); only I/O and
// configuration errors at the periphery are fatal.
package lexerr

import (
	"fmt"

	"github.com/kilobyte-re/lexer/internal/addr"
)

// DecodeFailed reports that a single instruction could not be decoded.
type DecodeFailed struct {
	Address addr.Addr
	Cause   error
}

func (e *DecodeFailed) Error() string {
	return fmt.Sprintf("decode failed at %v: %v", e.Address, e.Cause)
}

func (e *DecodeFailed) Unwrap() error { return e.Cause }

// NonExecutable reports that a block started outside any executable range.
type NonExecutable struct {
	Address addr.Addr
}

func (e *NonExecutable) Error() string {
	return fmt.Sprintf("%v: does not start in executable memory", e.Address)
}

// NonContiguous reports that block construction found instruction
// addresses out of order.
type NonContiguous struct {
	Address addr.Addr
}

func (e *NonContiguous) Error() string {
	return fmt.Sprintf("block %v: is not contiguous", e.Address)
}

// NoTerminator reports that a block ran to the end of the image without
// finding a terminator instruction.
type NoTerminator struct {
	Address addr.Addr
}

func (e *NoTerminator) Error() string {
	return fmt.Sprintf("block %v: has no terminating instruction", e.Address)
}

// InvalidPattern reports that the pattern-length invariant was violated for
// an instruction (len(pattern) == 2*len(bytes)).
type InvalidPattern struct {
	Address addr.Addr
}

func (e *InvalidPattern) Error() string {
	return fmt.Sprintf("instruction %v: invalid pattern length", e.Address)
}
