package main

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/joshuapare/heapkit/heap/scenario"
	"github.com/joshuapare/heapkit/internal/logger"
)

type runOptions struct {
	useCalloc bool
	stats     bool
	fresh     bool
}

type scenarioResult struct {
	Name     string        `json:"name"`
	Passed   bool          `json:"passed"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

type runReport struct {
	Scenarios []scenarioResult `json:"scenarios"`
	Stats     *statsReport     `json:"stats,omitempty"`
}

func newRunCmd(g *globalOptions) *cobra.Command {
	o := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run [SCENARIO]...",
		Short: "Run allocator scenarios",
		Long: `The run command runs the named scenarios, in order, against one checked
heap. Without arguments every scenario is run. Scenarios share the heap unless
--fresh is given, and the run stops at the first failure on a shared heap.

Example:
  heapctl run malloc-simple free-reuse locality
  heapctl run -c -s fragmentation-8
  heapctl run --fresh --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(cmd, g, o, args)
		},
	}
	cmd.Flags().BoolVarP(&o.useCalloc, "use-calloc", "c", false, "Use calloc instead of malloc for every allocation the harness makes")
	cmd.Flags().BoolVarP(&o.stats, "stats", "s", false, "Print statistics on heap usage at the end")
	cmd.Flags().BoolVar(&o.fresh, "fresh", false, "Run every scenario on a new heap")
	return cmd
}

func runScenarios(cmd *cobra.Command, g *globalOptions, o *runOptions, names []string) error {
	if len(names) == 0 {
		names = scenario.Names()
	}
	known := scenario.Names()
	for _, n := range names {
		if !slices.Contains(known, n) {
			return fmt.Errorf("unknown scenario %q (available: %s)", n, strings.Join(known, ", "))
		}
	}
	tag, err := g.langTag()
	if err != nil {
		return err
	}

	h, err := g.newHeap(o.useCalloc)
	if err != nil {
		return err
	}
	defer func() { h.Close() }()

	w := cmd.OutOrStdout()
	var (
		report runReport
		failed int
	)
	for i, name := range names {
		if o.fresh && i > 0 {
			if err := h.Close(); err != nil {
				return err
			}
			if h, err = g.newHeap(o.useCalloc); err != nil {
				return err
			}
		}

		logger.L.Info("scenario start", "name", name)
		start := time.Now()
		runErr := scenario.Run(name, h)
		res := scenarioResult{Name: name, Passed: runErr == nil, Duration: time.Since(start)}
		if runErr != nil {
			res.Error = runErr.Error()
			failed++
		}
		report.Scenarios = append(report.Scenarios, res)

		if !g.jsonOut {
			if runErr != nil {
				g.printInfo(w, "FAIL %s: %v\n", name, runErr)
			} else {
				g.printInfo(w, "ok   %-18s %v\n", name, res.Duration.Round(time.Microsecond))
			}
		}
		if runErr != nil && !o.fresh {
			break
		}
	}

	if o.stats {
		st := h.Stats()
		if g.jsonOut {
			sr := newStatsReport(st)
			report.Stats = &sr
		} else {
			fmt.Fprintln(w)
			printStats(w, tag, st, g.verbose)
		}
	}
	if g.jsonOut {
		if err := printJSON(w, report); err != nil {
			return err
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d scenarios failed", failed, len(report.Scenarios))
	}
	return nil
}
