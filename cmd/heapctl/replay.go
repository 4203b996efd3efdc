package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joshuapare/heapkit/heap/alloc"
	"github.com/joshuapare/heapkit/heap/checked"
	"github.com/joshuapare/heapkit/internal/logger"
)

// trace is an allocation trace. Allocations are named by handle so a trace
// does not depend on the addresses the allocator picks.
//
//	name: grow-and-release
//	ops:
//	  - {op: malloc, id: a, size: 64}
//	  - {op: calloc, id: b, count: 4, size: 8}
//	  - {op: realloc, id: a, size: 4096}
//	  - {op: free, id: a}
type trace struct {
	Name string    `yaml:"name"`
	Ops  []traceOp `yaml:"ops"`
}

type traceOp struct {
	Op    string `yaml:"op"`
	ID    string `yaml:"id"`
	Size  uint64 `yaml:"size"`
	Count uint64 `yaml:"count"`
}

var errTrace = errors.New("invalid trace")

func loadTrace(r io.Reader) (*trace, error) {
	var tr trace
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&tr); err != nil {
		return nil, fmt.Errorf("decoding trace: %w", err)
	}
	for i, op := range tr.Ops {
		switch op.Op {
		case "malloc", "calloc", "realloc", "free":
		default:
			return nil, fmt.Errorf("%w: op %d: unknown operation %q", errTrace, i, op.Op)
		}
		if op.ID == "" {
			return nil, fmt.Errorf("%w: op %d (%s): missing id", errTrace, i, op.Op)
		}
	}
	return &tr, nil
}

// replayTrace runs tr against h and returns the handles still live.
func replayTrace(h *checked.Heap, tr *trace) (map[string]alloc.Ptr, error) {
	live := make(map[string]alloc.Ptr)
	for i, op := range tr.Ops {
		if err := replayOp(h, live, op); err != nil {
			return live, fmt.Errorf("op %d (%s %s): %w", i, op.Op, op.ID, err)
		}
	}
	return live, nil
}

func replayOp(h *checked.Heap, live map[string]alloc.Ptr, op traceOp) error {
	p, exists := live[op.ID]
	switch op.Op {
	case "malloc", "calloc":
		if exists {
			return fmt.Errorf("%w: handle already live", errTrace)
		}
		var err error
		if op.Op == "malloc" {
			p, err = h.Alloc(op.Size)
		} else {
			p, err = h.AllocArray(op.Count, op.Size)
		}
		if err != nil {
			return err
		}
	case "realloc":
		var err error
		if p, err = h.Realloc(p, op.Size); err != nil {
			return err
		}
	case "free":
		if !exists {
			return fmt.Errorf("%w: handle not live", errTrace)
		}
		if err := h.Free(p); err != nil {
			return err
		}
		p = alloc.Nil
	}

	if p == alloc.Nil {
		delete(live, op.ID)
	} else {
		live[op.ID] = p
	}
	return nil
}

func newReplayCmd(g *globalOptions) *cobra.Command {
	var useCalloc, stats bool
	cmd := &cobra.Command{
		Use:   "replay <trace.yaml>",
		Short: "Replay an allocation trace",
		Long: `The replay command runs the malloc, calloc, realloc and free operations of
a YAML trace against a checked heap. Use "-" to read the trace from stdin.

Example:
  heapctl replay testdata/grow.yaml
  heapctl replay -s --json trace.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r := cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("failed to open trace: %w", err)
				}
				defer f.Close()
				r = f
			}
			tr, err := loadTrace(r)
			if err != nil {
				return err
			}
			tag, err := g.langTag()
			if err != nil {
				return err
			}

			h, err := g.newHeap(useCalloc)
			if err != nil {
				return err
			}
			defer h.Close()

			logger.L.Info("replay start", "trace", tr.Name, "ops", len(tr.Ops))
			live, err := replayTrace(h, tr)
			if err != nil {
				return err
			}
			if err := h.CheckData(); err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			st := h.Stats()
			if g.jsonOut {
				out := struct {
					Name  string       `json:"name"`
					Ops   int          `json:"ops"`
					Live  int          `json:"live"`
					Stats *statsReport `json:"stats,omitempty"`
				}{Name: tr.Name, Ops: len(tr.Ops), Live: len(live)}
				if stats {
					sr := newStatsReport(st)
					out.Stats = &sr
				}
				return printJSON(w, out)
			}
			g.printInfo(w, "replayed %d operations, %d allocations live\n", len(tr.Ops), len(live))
			if stats {
				fmt.Fprintln(w)
				printStats(w, tag, st, g.verbose)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&useCalloc, "use-calloc", "c", false, "Use calloc instead of malloc for every allocation")
	cmd.Flags().BoolVarP(&stats, "stats", "s", false, "Print statistics on heap usage at the end")
	return cmd
}
