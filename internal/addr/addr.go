// Package addr provides a uniform representation of virtual addresses.
package addr

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Addr is a 64-bit virtual address. It is the identity of every instruction,
// block and function in the control-flow graph.
type Addr uint64

// String returns the hexadecimal string representation of v.
func (v Addr) String() string {
	return fmt.Sprintf("0x%016X", uint64(v))
}

// Set sets v to the numeric value represented by s. It implements
// flag.Value so addresses can be supplied directly on the command line.
func (v *Addr) Set(s string) error {
	x, err := parseUint64(s)
	if err != nil {
		return errors.WithStack(err)
	}
	*v = Addr(x)
	return nil
}

// MarshalText returns the textual representation of v.
func (v Addr) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText unmarshals the text into v.
func (v *Addr) UnmarshalText(text []byte) error {
	return v.Set(string(text))
}

// MarshalJSON marshals v as a JSON number, per spec: "Numeric addresses are
// unsigned 64-bit integers."
func (v Addr) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatUint(uint64(v), 10)), nil
}

// UnmarshalJSON unmarshals a JSON number or a 0x-prefixed hex string into v.
func (v *Addr) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if len(s) >= 2 && s[0] == '"' {
		unquoted, err := strconv.Unquote(s)
		if err != nil {
			return errors.WithStack(err)
		}
		return v.Set(unquoted)
	}
	x, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return errors.WithStack(err)
	}
	*v = Addr(x)
	return nil
}

// Addrs implements sort.Interface, sorting addresses in ascending order.
type Addrs []Addr

func (as Addrs) Len() int           { return len(as) }
func (as Addrs) Swap(i, j int)      { as[i], as[j] = as[j], as[i] }
func (as Addrs) Less(i, j int) bool { return as[i] < as[j] }

// Sorted returns a sorted copy of as.
func (as Addrs) Sorted() Addrs {
	out := make(Addrs, len(as))
	copy(out, as)
	sort.Sort(out)
	return out
}

// Range is a half-open virtual-address interval [Start, End).
type Range struct {
	Start Addr
	End   Addr
}

// Contains reports whether a lies within r.
func (r Range) Contains(a Addr) bool { return a >= r.Start && a < r.End }

// parseUint64 interprets s in base 10, or base 16 if prefixed with 0x/0X.
func parseUint64(s string) (uint64, error) {
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[len("0x"):]
		base = 16
	}
	x, err := strconv.ParseUint(s, base, 64)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return x, nil
}
