// Package disasm drives recursive-descent disassembly over a controlflow.Graph
// (spec §4.2), using the x86 package's decoder/classifier as its instruction
// source.
package disasm

import (
	"github.com/kilobyte-re/lexer/disasm/x86"
	"github.com/kilobyte-re/lexer/internal/addr"
)

// Sweep runs the linear-sweep heuristic over ranges, returning a superset
// of candidate function entrypoints (spec §4.2.1). False positives are
// pruned downstream by the prologue/validity checks the recursive
// disassembler performs when it tries to build each candidate.
func Sweep(d *x86.Decoder, ranges []addr.Range, jumpThreshold, instructionThreshold int) addr.Addrs {
	var candidates addr.Addrs

	for _, r := range ranges {
		validJumps := 0
		validInstructions := 0
		pc := r.Start

		for pc < r.End {
			inst, err := d.Decode(pc)
			if err != nil {
				pc++
				validJumps, validInstructions = 0, 0
				continue
			}

			if d.IsPrivilegedAt(pc) || inst.IsTrap {
				pc++
				validJumps, validInstructions = 0, 0
				continue
			}

			if inst.IsJump {
				inRange := false
				for _, t := range inst.To {
					if d.Executable(t) {
						inRange = true
						break
					}
				}
				if inRange {
					validJumps++
				} else if len(inst.To) > 0 {
					validJumps, validInstructions = 0, 0
					pc++
					continue
				}
			}

			if inst.IsCall && len(inst.Functions) > 0 &&
				validJumps >= jumpThreshold && validInstructions >= instructionThreshold {
				candidates = append(candidates, inst.Functions[0])
			}

			validInstructions++
			next, ok := inst.Next()
			if !ok {
				pc++
				continue
			}
			pc = next
		}
	}

	return candidates.Sorted()
}
