// Package xlog is a tiny leveled logger shared by the compiler's
// pipeline stages (§2.1, ambient). It follows the shape of
// GriffinCanCode-Typthon/pkg/logger — a package-level default logger
// backed by log/slog, configured once at startup and called by name
// from anywhere in the tree — rather than threading a logger value
// through every constructor.
package xlog

import (
	"io"
	"log/slog"
	"os"
)

var def *slog.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))

// Config selects the default logger's destination and verbosity.
type Config struct {
	Level  slog.Level
	Output io.Writer
	JSON   bool
}

// Init installs the package-level default logger. compiler.Compile calls
// this with slog.LevelDebug when compiler.Options' Verbose flag (§2.3) is
// set, and otherwise leaves the discard default in place.
func Init(cfg Config) {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: cfg.Level}
	var h slog.Handler
	if cfg.JSON {
		h = slog.NewJSONHandler(out, opts)
	} else {
		h = slog.NewTextHandler(out, opts)
	}
	def = slog.New(h)
}

func Debug(msg string, args ...any) { def.Debug(msg, args...) }
func Info(msg string, args ...any)  { def.Info(msg, args...) }
func Warn(msg string, args ...any)  { def.Warn(msg, args...) }
func Error(msg string, args ...any) { def.Error(msg, args...) }

// With returns a child logger carrying the given key-value attributes,
// for call sites that log more than once in the same scope (e.g. a
// single compiled function's pipeline stages).
func With(args ...any) *slog.Logger { return def.With(args...) }

// Phase-specific helpers, one per pipeline stage named in §5, mirroring
// typthon-compiler's LogSSAGeneration/LogCodeGen/LogLinkingStart style —
// call sites pass the fields that stage naturally has on hand rather
// than building an args slice themselves.

func SSABuilt(funcName string, blockCount, valueCount int) {
	Debug("ssa build complete", "function", funcName, "blocks", blockCount, "values", valueCount)
}

func RegAllocDone(funcName string, spillCount int) {
	Debug("register allocation complete", "function", funcName, "spills", spillCount)
}

func StackAllocDone(funcName string, frameSize int64) {
	Debug("stack allocation complete", "function", funcName, "frame_bytes", frameSize)
}

func Lowered(funcName string, instrCount int) {
	Debug("lowering complete", "function", funcName, "instructions", instrCount)
}

func ObjectWritten(path string, funcCount int) {
	Info("object file written", "path", path, "functions", funcCount)
}
