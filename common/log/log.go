// Package log configures the process wide logrus logger the same way for every binary.
package log

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/scanomatic/som/common/log/hooks"
)

// LevelEnv overrides the configured level when set, e.g. SOM_LOGLEVEL=debug.
const LevelEnv = "SOM_LOGLEVEL"

// Configure sets the level (error|warn|info|debug), the formatter, and the call site hook.
func Configure(level string, json bool) error {
	if env := os.Getenv(LevelEnv); env != "" {
		level = env
	}
	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	logrus.SetLevel(lvl)
	if json {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	logrus.AddHook(hooks.NewContextHook())
	return nil
}
