// Package logging provides the structured logger shared by the schema packages.
//
// Records are console-encoded and written to stderr, so registration
// diagnostics reach the process error stream even before main runs.
package logging

import (
	"os"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)

	once sync.Once
	root *zap.SugaredLogger
)

func base() *zap.SugaredLogger {
	once.Do(func() {
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		core := zapcore.NewCore(
			zapcore.NewConsoleEncoder(encCfg),
			zapcore.Lock(os.Stderr),
			level,
		)
		root = zap.New(core).Sugar()
	})
	return root
}

// Named returns a child logger tagged with name.
func Named(name string) *zap.SugaredLogger {
	return base().Named(name)
}

// SetLevel changes the level of every logger handed out by this package.
func SetLevel(name string) error {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(name)); err != nil {
		return errors.Wrapf(err, "invalid log level %q", name)
	}
	level.SetLevel(l)
	return nil
}

// Sync flushes buffered records.
func Sync() {
	_ = base().Sync()
}
