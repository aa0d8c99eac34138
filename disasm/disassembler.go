package disasm

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/kilobyte-re/lexer/controlflow"
	"github.com/kilobyte-re/lexer/disasm/x86"
	"github.com/kilobyte-re/lexer/internal/addr"
	"github.com/kilobyte-re/lexer/internal/arch"
	"github.com/kilobyte-re/lexer/internal/config"
	"github.com/kilobyte-re/lexer/internal/diag"
	"github.com/kilobyte-re/lexer/internal/lexerr"
)

// Disassembler drives recursive-descent control-flow recovery over a
// controlflow.Graph (spec §4.2).
type Disassembler struct {
	Decoder *x86.Decoder
	Graph   *controlflow.Graph
	Ranges  []addr.Range
}

// New returns a Disassembler for the given architecture, backed by decoder
// and writing into graph.
func New(architecture arch.Architecture, decoder *x86.Decoder, ranges []addr.Range, cfg *config.Config) *Disassembler {
	g := controlflow.New(architecture, cfg)
	return &Disassembler{Decoder: decoder, Graph: g, Ranges: ranges}
}

// DisassembleBlock builds the block rooted at a into g, per spec §4.2's
// disassemble_block contract.
func DisassembleBlock(a addr.Addr, decoder *x86.Decoder, g *controlflow.Graph) error {
	if g.Blocks.IsInvalid(a) {
		return &lexerr.NonExecutable{Address: a}
	}
	if !decoder.Executable(a) {
		g.Blocks.SetProcessed(a)
		g.Blocks.SetInvalid(a)
		return &lexerr.NonExecutable{Address: a}
	}

	g.Blocks.SetProcessed(a)

	pc := a
	prologue := decoder.IsPrologue(a)
	var terminator *controlflow.Instruction

	for {
		if existing, ok := g.GetInstruction(pc); ok {
			if existing.Address != a {
				terminator = existing
				break
			}
		}

		inst, err := decoder.Decode(pc)
		if err != nil {
			g.Blocks.SetInvalid(a)
			return err
		}
		if pc == a {
			inst.IsPrologue = prologue
			inst.IsBlockStart = true
		} else if inst.IsTrap {
			// A trap terminating a block that didn't start with it (spec
			// §4.1) still closes out the preceding instructions' fall-through
			// edge, unlike a block that is itself nothing but the trap.
			inst.Edges = 1
		}

		if pc != a && (inst.IsTrap || inst.IsTerminator() || inst.IsBlockStart) {
			terminator = inst
			g.InsertInstruction(inst)
			break
		}

		g.InsertInstruction(inst)

		if inst.IsTrap || inst.IsTerminator() {
			terminator = inst
			break
		}

		next, ok := inst.Next()
		if !ok {
			terminator = inst
			break
		}
		pc = next
	}

	g.Blocks.SetValid(a)
	for _, succ := range terminator.Successors() {
		if decoder.Executable(succ) {
			g.Blocks.Enqueue(succ)
		}
	}
	return nil
}

// DisassembleFunction builds every block reachable from entry into g, via
// a local per-function worklist seeded with entry (spec §4.2).
func DisassembleFunction(entry addr.Addr, decoder *x86.Decoder, g *controlflow.Graph) error {
	local := g.Blocks
	seen := make(map[addr.Addr]bool)
	pending := addr.Addrs{entry}
	ok := false

	for len(pending) > 0 {
		a := pending[0]
		pending = pending[1:]
		if seen[a] {
			continue
		}
		seen[a] = true

		if local.IsProcessed(a) {
			if local.IsValid(a) {
				ok = true
			}
			continue
		}

		if err := DisassembleBlock(a, decoder, g); err != nil {
			diag.Debug.Printf("function %v: block %v failed: %v", entry, a, err)
			continue
		}
		ok = true

		block, err := controlflow.NewBlock(a, g)
		if err != nil {
			continue
		}
		for _, succ := range block.Successors() {
			if !seen[succ] {
				pending = append(pending, succ)
			}
		}
	}

	if !ok {
		g.Functions.SetProcessed(entry)
		g.Functions.SetInvalid(entry)
		return &lexerr.NonExecutable{Address: entry}
	}

	g.Functions.SetProcessed(entry)
	g.Functions.SetValid(entry)
	return nil
}

// Run is the disassemble_controlflow driver (spec §4.2): optional linear
// sweep, then a worklist of parallel per-function workers whose subgraphs
// are absorbed into the master graph after each batch.
func (d *Disassembler) Run(ctx context.Context, entrypoints addr.Addrs) error {
	cfg := d.Graph.Config

	all := entrypoints
	if cfg.Disassembler.Sweep.Enabled {
		swept := Sweep(d.Decoder, d.Ranges, cfg.Disassembler.Sweep.ValidJumpThreshold, cfg.Disassembler.Sweep.ValidInstructionThreshold)
		all = append(append(addr.Addrs{}, entrypoints...), swept...)
	}
	d.Graph.Functions.EnqueueAll(all)

	threads := cfg.General.Threads
	if threads < 1 {
		threads = 1
	}
	sem := semaphore.NewWeighted(int64(threads))

	for {
		batch := d.Graph.Functions.DequeueAll()
		if len(batch) == 0 {
			break
		}

		g, gctx := errgroup.WithContext(ctx)
		locals := make([]*controlflow.Graph, len(batch))
		for i, entry := range batch {
			i, entry := i, entry
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			g.Go(func() error {
				defer sem.Release(1)
				local := controlflow.New(d.Graph.Architecture, cfg)
				if err := DisassembleFunction(entry, d.Decoder, local); err != nil {
					diag.Debug.Printf("function %v: %v", entry, err)
				}
				locals[i] = local
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		for _, local := range locals {
			d.Graph.Absorb(local)
			d.Graph.Functions.EnqueueAll(calleesOf(local))
		}
	}
	return nil
}

// calleesOf collects every call/RIP-load target discovered across g's
// valid blocks, feeding recursive-descent's call-site discovery channel
// (spec §4.1/§4.2) back into the function worklist.
func calleesOf(g *controlflow.Graph) addr.Addrs {
	var out addr.Addrs
	for _, a := range g.Blocks.ValidAddrs() {
		block, err := controlflow.NewBlock(a, g)
		if err != nil {
			continue
		}
		for _, callee := range block.Functions() {
			out = append(out, callee)
		}
	}
	return out
}
