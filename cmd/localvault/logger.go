package main

import (
	"strings"

	smlog "github.com/godaddy/asherah/go/securememory/log"
	"go.uber.org/zap"

	lvlog "github.com/keelann95/localvault/pkg/log"
)

// newLogger returns a development logger writing to stderr when verbose is set,
// and a no-op logger otherwise. The library debug loggers are routed through it.
func newLogger(verbose bool) (*zap.Logger, error) {
	if !verbose {
		lvlog.SetLogger(nil)
		return zap.NewNop(), nil
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		return nil, err
	}

	sugar := logger.Sugar()

	debugf := func(format string, v ...interface{}) {
		sugar.Debugf(strings.TrimSuffix(format, "\n"), v...)
	}

	lvlog.SetLogger(lvlog.Func(debugf))
	smlog.SetLogger(lvlog.Func(debugf))

	return logger, nil
}
