package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"

	"github.com/joshuapare/heapkit/heap/alloc"
	"github.com/joshuapare/heapkit/heap/checked"
	"github.com/joshuapare/heapkit/internal/logger"
)

const envVarPrefix = "HEAPCTL"

// envConfig holds the flag defaults taken from the environment.
type envConfig struct {
	BrkSize       string `envconfig:"BRK_SIZE"       default:"128M"`
	Backend       string `envconfig:"BACKEND"        default:"slice"`
	Verbose       bool   `envconfig:"VERBOSE"`
	TrimThreshold string `envconfig:"TRIM_THRESHOLD" default:"0"`
}

func loadEnv() (envConfig, error) {
	var c envConfig
	if err := envconfig.Process(envVarPrefix, &c); err != nil {
		return c, fmt.Errorf("parsing environment variables: %w", err)
	}
	return c, nil
}

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	verbose       bool
	quiet         bool
	jsonOut       bool
	logJSON       bool
	brkSize       string
	backend       string
	trimThreshold string
	lang          string
}

func newRootCmd() *cobra.Command {
	env, envErr := loadEnv()
	g := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "heapctl",
		Short: "Exercise and inspect the heapkit allocator",
		Long: `heapctl drives the heapkit allocator through named scenarios and
allocation traces. Every result is checked for alignment, overlap and data
integrity, and heap statistics can be printed at the end of a run.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if envErr != nil {
				return envErr
			}
			logger.Init(logger.Options{
				Enabled: g.verbose,
				JSON:    g.logJSON,
				Level:   slog.LevelDebug,
				Out:     cmd.ErrOrStderr(),
			})
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", env.Verbose, "Log allocator events to stderr")
	cmd.PersistentFlags().BoolVarP(&g.quiet, "quiet", "q", false, "Suppress all output except errors")
	cmd.PersistentFlags().BoolVar(&g.jsonOut, "json", false, "Output in JSON format")
	cmd.PersistentFlags().BoolVar(&g.logJSON, "log-json", false, "Write verbose logs as JSON")
	cmd.PersistentFlags().StringVarP(&g.brkSize, "brk-size", "m", env.BrkSize, "Maximum brk (heap) size, e.g. 4096, 0x10000, 64K, 128M")
	cmd.PersistentFlags().StringVar(&g.backend, "backend", env.Backend, "Growth primitive: slice or reserved")
	cmd.PersistentFlags().StringVar(&g.trimThreshold, "trim-threshold", env.TrimThreshold, "Smallest free tail given back to the system (0 = one page)")

	cmd.PersistentFlags().StringVar(&g.lang, "lang", "en", "Language tag used to format numbers in statistics")

	cmd.AddCommand(
		newRunCmd(g),
		newListCmd(g),
		newReplayCmd(g),
		newVersionCmd(),
	)
	return cmd
}

func execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// newHeap builds a checked heap from the global flags.
func (g *globalOptions) newHeap(useCalloc bool) (*checked.Heap, error) {
	size, err := parseSize(g.brkSize)
	if err != nil {
		return nil, fmt.Errorf("--brk-size: %w", err)
	}
	trim, err := parseSize(g.trimThreshold)
	if err != nil {
		return nil, fmt.Errorf("--trim-threshold: %w", err)
	}
	return checked.New(checked.Config{
		BrkSize:   int(size),
		Backend:   g.backend,
		UseCalloc: useCalloc,
		Alloc:     &alloc.Options{TrimThreshold: trim},
		Logger:    logger.L,
	})
}

// langTag parses the --lang flag.
func (g *globalOptions) langTag() (language.Tag, error) {
	tag, err := language.Parse(g.lang)
	if err != nil {
		return language.Und, fmt.Errorf("--lang: %w", err)
	}
	return tag, nil
}

// printInfo prints an info message if not in quiet mode
func (g *globalOptions) printInfo(w io.Writer, format string, args ...any) {
	if !g.quiet {
		fmt.Fprintf(w, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
