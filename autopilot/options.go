package autopilot

import (
	"io"

	"go.uber.org/zap"

	"github.com/wippyai/autopilot-bridge/engine"
)

// DefaultClass is the binary name of the class every session loads.
const DefaultClass = "autopilot/interfaces/AutoPilotC"

type options struct {
	logger           *zap.Logger
	stdout           io.Writer
	stderr           io.Writer
	class            string
	cacheDir         string
	memoryLimitPages uint32
	teardownOnStop   bool
}

func defaultOptions() options {
	return options{
		logger:           zap.NewNop(),
		class:            DefaultClass,
		memoryLimitPages: engine.DefaultMemoryLimitPages,
	}
}

// Option configures Open.
type Option func(*options)

// WithLogger sets the session logger. nil keeps the no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClass overrides the binary name of the target class.
func WithClass(class string) Option {
	return func(o *options) {
		if class != "" {
			o.class = class
		}
	}
}

// WithMemoryLimitPages caps guest memory, in 64 KiB pages.
func WithMemoryLimitPages(pages uint32) Option {
	return func(o *options) {
		if pages > 0 {
			o.memoryLimitPages = pages
		}
	}
}

// WithCompilationCacheDir enables the on-disk compilation cache.
func WithCompilationCacheDir(dir string) Option {
	return func(o *options) { o.cacheDir = dir }
}

// WithStdout routes guest stdout to w.
func WithStdout(w io.Writer) Option {
	return func(o *options) { o.stdout = w }
}

// WithStderr routes guest stderr to w.
func WithStderr(w io.Writer) Option {
	return func(o *options) { o.stderr = w }
}

// WithTeardownOnStop makes Stop close the runtime. Without it Stop only
// marks the session inactive and the runtime lives until Close.
func WithTeardownOnStop(teardown bool) Option {
	return func(o *options) { o.teardownOnStop = teardown }
}
