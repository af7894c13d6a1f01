// Package logging builds the zap logger used across hordedream.
package logging

import (
	"io"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options configure the logger. Verbosity and Quiet are the -v and -q counts.
type Options struct {
	Verbosity int
	Quiet     int
	Writer    io.Writer
	RunID     string
}

// Level maps the -v/-q counts onto a zap level. The base is Info; each -v
// lowers it by one and each -q raises it by one.
func Level(verbosity, quiet int) zapcore.Level {
	lvl := int(zapcore.InfoLevel) - verbosity + quiet
	if lvl < int(zapcore.DebugLevel) {
		lvl = int(zapcore.DebugLevel)
	}
	if lvl > int(zapcore.FatalLevel) {
		lvl = int(zapcore.FatalLevel)
	}
	return zapcore.Level(lvl)
}

// New returns a console logger tagged with a per-run id.
func New(opts Options) *zap.SugaredLogger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	runID := opts.RunID
	if runID == "" {
		runID = NewRunID()
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(zapcore.AddSync(w)),
		Level(opts.Verbosity, opts.Quiet),
	)
	return zap.New(core).Sugar().With("run", runID)
}

// NewRunID returns a short random id used to correlate one invocation's lines.
func NewRunID() string {
	return uuid.NewString()[:8]
}

// Nop returns a logger that discards everything.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
