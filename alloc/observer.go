package alloc

import (
	"context"
	"log/slog"
	"os"
)

// Runtime allocation logging, controlled by the ARENAKIT_LOG_ALLOC env var.
var logAlloc = os.Getenv("ARENAKIT_LOG_ALLOC") != ""

// Op identifies the operation an Event describes.
type Op uint8

const (
	OpAlloc Op = iota + 1
	OpFree
	OpReset
	OpGrow
)

// String returns the lower-case operation name.
func (op Op) String() string {
	switch op {
	case OpAlloc:
		return "alloc"
	case OpFree:
		return "free"
	case OpReset:
		return "reset"
	case OpGrow:
		return "grow"
	default:
		return "unknown"
	}
}

// Event describes one completed allocator operation.
type Event struct {
	Allocator string // "bump", "stack", "pool" or "heap"
	Op        Op
	Size      int // requested bytes (alloc) or recorded bytes (free)
	Alignment int
	Offset    int // buffer offset of the user data, -1 if none
	Padding   int
	Total     int // bytes consumed including padding and header
	Split     bool
	Forward   bool // free merged with the following block
	Backward  bool // free merged into the preceding block
	Err       error
}

// Observer is invoked synchronously after every operation. Allocation
// results never depend on whether an observer is installed.
type Observer func(Event)

// LogObserver returns an Observer that writes each event to l: successful
// operations at debug level, failures at warn level.
func LogObserver(l *slog.Logger) Observer {
	return func(ev Event) {
		attrs := []slog.Attr{
			slog.String("allocator", ev.Allocator),
			slog.String("op", ev.Op.String()),
		}
		if ev.Size != 0 {
			attrs = append(attrs, slog.Int("size", ev.Size))
		}
		if ev.Alignment != 0 {
			attrs = append(attrs, slog.Int("align", ev.Alignment))
		}
		if ev.Offset >= 0 && ev.Op != OpReset {
			attrs = append(attrs, slog.Int("offset", ev.Offset))
		}
		if ev.Padding != 0 {
			attrs = append(attrs, slog.Int("padding", ev.Padding))
		}
		if ev.Total != 0 {
			attrs = append(attrs, slog.Int("total", ev.Total))
		}
		if ev.Split {
			attrs = append(attrs, slog.Bool("split", true))
		}
		if ev.Forward {
			attrs = append(attrs, slog.Bool("coalesce_forward", true))
		}
		if ev.Backward {
			attrs = append(attrs, slog.Bool("coalesce_backward", true))
		}

		level := slog.LevelDebug
		if ev.Err != nil {
			level = slog.LevelWarn
			attrs = append(attrs, slog.String("err", ev.Err.Error()))
		}
		l.LogAttrs(context.Background(), level, "alloc event", attrs...)
	}
}

func defaultObserver() Observer {
	if !logAlloc {
		return nil
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
	return LogObserver(slog.New(h))
}
