package main

import (
	"io"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newLogger builds a console zap logger on w. verbosity n enables logr
// V(n) messages; zapr maps V(n) to zap level -n.
func newLogger(w io.Writer, verbosity int) logr.Logger {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	encCfg.TimeKey = ""
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.AddSync(w),
		zap.NewAtomicLevelAt(zapcore.Level(-verbosity)),
	)
	return zapr.NewLogger(zap.New(core)).WithName(appName)
}
