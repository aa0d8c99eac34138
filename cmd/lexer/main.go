// Command lexer disassembles a PE executable and emits per-block and
// per-function pattern records as newline-delimited JSON.
package main

import (
	"context"
	"io"
	"log"
	"os"
	"sync"

	"github.com/spf13/cobra"

	"github.com/kilobyte-re/lexer/controlflow"
	"github.com/kilobyte-re/lexer/disasm"
	"github.com/kilobyte-re/lexer/disasm/x86"
	"github.com/kilobyte-re/lexer/format"
	"github.com/kilobyte-re/lexer/internal/addr"
	"github.com/kilobyte-re/lexer/internal/config"
	"github.com/kilobyte-re/lexer/internal/diag"
	"github.com/kilobyte-re/lexer/mmapcache"
	"github.com/kilobyte-re/lexer/record"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatalf("%+v", err)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		outputPath string
		mmapDir    string
	)

	cmd := &cobra.Command{
		Use:   "lexer <binary>",
		Short: "Disassemble a binary and emit per-block/function pattern records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0], configPath, outputPath, mmapDir)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to TOML configuration file")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "output path (default stdout)")
	cmd.Flags().StringVar(&mmapDir, "mmap-dir", "", "directory for the mmap-backed image cache (overrides config)")

	return cmd
}

func run(binPath, configPath, outputPath, mmapDir string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	diag.SetDebug(cfg.General.Debug)

	if mmapDir != "" {
		cfg.Mmap.Directory = mmapDir
	}

	img, err := format.OpenPE(binPath)
	if err != nil {
		return err
	}
	defer img.Close()

	laidOut := img.Bytes()

	var cache *mmapcache.Cache
	if cfg.Mmap.Cache.Enabled || cfg.Mmap.Directory != "" {
		cache, err = mmapcache.Open(cfg.Mmap.Directory, img.SHA256(), len(laidOut), cfg.Mmap.Cache.Enabled, func(w *os.File) error {
			_, err := w.WriteAt(laidOut, 0)
			return err
		})
		if err != nil {
			diag.Warn.Printf("mmap cache: %v", err)
		} else {
			defer cache.Close()
			laidOut = cache.Bytes()
		}
	}

	ranges := img.ExecutableRanges()
	executable := func(a addr.Addr) bool {
		for _, r := range ranges {
			if r.Contains(a) {
				return true
			}
		}
		return false
	}

	decoder := x86.NewDecoder(img.Architecture(), laidOut, img.ImageBase(), executable)

	entrypoints, err := img.Entrypoints()
	if err != nil {
		return err
	}

	d := disasm.New(img.Architecture(), decoder, ranges, cfg)
	d.Graph.File = &controlflow.FileInfo{SHA256: img.SHA256(), TLSH: img.TLSH(), Size: img.Size()}

	if err := d.Run(context.Background(), entrypoints); err != nil {
		return err
	}

	var out io.Writer = os.Stdout
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	writer := record.New(out, cfg.General.LZ4)

	if err := emit(d.Graph, writer); err != nil {
		return err
	}
	return writer.Flush()
}

// emit walks every valid block and function and writes its record,
// parallelizing across the configured thread count (spec §4.4: "blocks
// and functions are iterated in parallel, each producing one record
// independently against the read-only graph").
func emit(g *controlflow.Graph, w *record.Writer) error {
	threads := g.Config.General.Threads
	if threads < 1 {
		threads = 1
	}

	blockAddrs := g.Blocks.ValidAddrs()
	funcAddrs := g.Functions.ValidAddrs()

	sem := make(chan struct{}, threads)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	for _, a := range blockAddrs {
		a := a
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			block, err := controlflow.NewBlock(a, g)
			if err != nil {
				diag.Debug.Printf("block %v: %v", a, err)
				return
			}
			if err := w.WriteBlock(block.Process()); err != nil {
				fail(err)
			}
		}()
	}
	for _, a := range funcAddrs {
		a := a
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			fn, err := controlflow.NewFunction(a, g)
			if err != nil {
				diag.Debug.Printf("function %v: %v", a, err)
				return
			}
			if err := w.WriteFunction(fn.Process()); err != nil {
				fail(err)
			}
		}()
	}
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	return nil
}
