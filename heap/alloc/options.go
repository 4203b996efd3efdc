package alloc

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joshuapare/heapkit/internal/format"
)

// Runtime allocation logging, controlled by the HEAP_LOG_ALLOC env var.
var logAlloc = os.Getenv("HEAP_LOG_ALLOC") != ""

const (
	// DefaultRecentCap is the number of recently released blocks kept for reuse.
	DefaultRecentCap = 5

	// DefaultTrimThreshold is the smallest free tail given back to the system.
	DefaultTrimThreshold = format.PageSize

	// MaxAlloc is the largest payload a single request may ask for.
	MaxAlloc = uint64(1) << 47
)

// Options tunes an Allocator. The zero value of every field selects its default.
type Options struct {
	// RecentCap is the recency cache capacity. A negative value disables it.
	RecentCap int

	// TrimThreshold is the minimum size of a free tail block, header
	// included, that is returned to the growth primitive.
	TrimThreshold uint64

	// NoTrim keeps every page once obtained.
	NoTrim bool

	// PageSize is the growth granularity. Must be a power of two no smaller
	// than the word size.
	PageSize uint64

	// MinGrowPages is the minimum number of pages requested per growth.
	MinGrowPages uint64

	// Logger receives growth, shrink and usage-error events. When nil the
	// allocator is silent unless HEAP_LOG_ALLOC is set.
	Logger *slog.Logger
}

// DefaultOptions returns the options used when New is given nil.
func DefaultOptions() Options {
	return Options{
		RecentCap:     DefaultRecentCap,
		TrimThreshold: DefaultTrimThreshold,
		PageSize:      format.PageSize,
		MinGrowPages:  1,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	switch {
	case o.RecentCap == 0:
		o.RecentCap = d.RecentCap
	case o.RecentCap < 0:
		o.RecentCap = 0
	}
	if o.TrimThreshold == 0 {
		o.TrimThreshold = d.TrimThreshold
	}
	if o.PageSize == 0 {
		o.PageSize = d.PageSize
	}
	if o.MinGrowPages == 0 {
		o.MinGrowPages = d.MinGrowPages
	}
	if o.Logger == nil {
		o.Logger = defaultLogger()
	}
	return o
}

func (o Options) validate() error {
	if !format.IsPowerOfTwo(o.PageSize) || o.PageSize < format.WordSize {
		return fmt.Errorf("alloc: page size %d is not a power of two >= %d", o.PageSize, format.WordSize)
	}
	return nil
}

func defaultLogger() *slog.Logger {
	if logAlloc {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.DiscardHandler)
}

// Validate reports whether New would accept o.
func (o Options) Validate() error {
	return o.withDefaults().validate()
}
