// Command lexcompare reads two ndjson streams of block/function records
// (as produced by lexer) and emits a "comparison" record for every
// cross-product pair sharing an architecture and record type, scored by
// TLSH distance. Grounded on the upstream project's trait-comparison tool.
package main

import (
	"bufio"
	"encoding/json"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kilobyte-re/lexer/hash/tlsh"
)

// entry is the subset of a block/function record lexcompare cares about.
type entry struct {
	raw          json.RawMessage
	Type         string `json:"type"`
	Architecture string `json:"architecture"`
	Signature    struct {
		TLSH *string `json:"tlsh"`
	} `json:"signature"`
}

type comparisonJSON struct {
	Type string          `json:"type"`
	LHS  json.RawMessage `json:"lhs"`
	RHS  json.RawMessage `json:"rhs"`
	TLSH *int            `json:"tlsh"`
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatalf("%+v", err)
	}
}

func newRootCmd() *cobra.Command {
	var (
		lhsPath string
		rhsPath string
		threads int
	)

	cmd := &cobra.Command{
		Use:   "lexcompare",
		Short: "Compare two ndjson pattern-record streams by TLSH similarity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(lhsPath, rhsPath, threads)
		},
	}

	cmd.Flags().StringVarP(&lhsPath, "input-lhs", "i", "", "left-hand ndjson file (default stdin)")
	cmd.Flags().StringVarP(&rhsPath, "input-rhs", "r", "", "right-hand ndjson file")
	cmd.Flags().IntVarP(&threads, "threads", "t", 1, "worker count")
	cmd.MarkFlagRequired("input-rhs")

	return cmd
}

func run(lhsPath, rhsPath string, threads int) error {
	lhsEntries, err := loadEntries(lhsPath, os.Stdin)
	if err != nil {
		return err
	}
	rhsEntries, err := loadEntries(rhsPath, nil)
	if err != nil {
		return err
	}

	if threads < 1 {
		threads = 1
	}

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	var writeMu = make(chan struct{}, 1)
	writeMu <- struct{}{}

	g := new(errgroup.Group)
	g.SetLimit(threads)

	for _, lhs := range lhsEntries {
		lhs := lhs
		g.Go(func() error {
			for _, rhs := range rhsEntries {
				if lhs.Architecture != rhs.Architecture || lhs.Type != rhs.Type {
					continue
				}
				if lhs.Signature.TLSH == nil || rhs.Signature.TLSH == nil {
					continue
				}
				dist, err := tlsh.Distance(*lhs.Signature.TLSH, *rhs.Signature.TLSH)
				var score *int
				if err == nil {
					score = &dist
				}
				comparison := comparisonJSON{Type: "comparison", LHS: lhs.raw, RHS: rhs.raw, TLSH: score}
				data, err := json.Marshal(comparison)
				if err != nil {
					continue
				}
				<-writeMu
				out.Write(data)
				out.WriteByte('\n')
				writeMu <- struct{}{}
			}
			return nil
		})
	}
	return g.Wait()
}

// loadEntries reads ndjson from path, or from fallback if path is empty.
func loadEntries(path string, fallback io.Reader) ([]entry, error) {
	var r io.Reader
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	} else if fallback != nil {
		r = fallback
	} else {
		return nil, nil
	}

	var out []entry
	dec := json.NewDecoder(r)
	for {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		var e entry
		if err := json.Unmarshal(raw, &e); err != nil {
			continue
		}
		e.raw = raw
		if e.Architecture == "" || e.Type == "" {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
