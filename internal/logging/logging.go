// logging.go — Process-wide zap logger shared by all perftest components.
// Components obtain a named child logger via Named("api"), Named("selector"), etc.
package logging

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	once sync.Once
	root *zap.SugaredLogger
)

// initRoot builds the shared logger. Production encoder by default; the
// PERFTEST_DEBUG environment variable switches to the development encoder
// with debug-level output.
func initRoot() {
	var cfg zap.Config
	if os.Getenv("PERFTEST_DEBUG") != "" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
	cfg.DisableStacktrace = true
	logger, err := cfg.Build()
	if err != nil {
		// Logging must never take the daemon down; fall back to a no-op core.
		logger = zap.NewNop()
	}
	root = logger.Sugar()
}

// Named returns a child logger tagged with the given component name.
func Named(component string) *zap.SugaredLogger {
	once.Do(initRoot)
	return root.Named(component)
}

// Sync flushes buffered log entries. Called on daemon shutdown.
func Sync() {
	once.Do(initRoot)
	_ = root.Sync()
}
