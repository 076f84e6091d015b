// Package logging builds the zap loggers used across ocburn.
package logging

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options controls logger construction.
type Options struct {
	Verbose bool
	// Console selects the human-readable encoder instead of JSON.
	Console bool
	// Path, when set, writes logs to a file instead of stderr.
	Path string
}

// New builds a production logger writing to stderr (or Path).
func New(opts Options) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if opts.Verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	if opts.Console {
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	if opts.Path != "" {
		cfg.OutputPaths = []string{opts.Path}
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return logger, nil
}

// ForTerminal builds a console logger when stderr is a terminal and a JSON logger otherwise.
func ForTerminal(verbose bool) (*zap.Logger, error) {
	return New(Options{Verbose: verbose, Console: isatty.IsTerminal(os.Stderr.Fd())})
}
