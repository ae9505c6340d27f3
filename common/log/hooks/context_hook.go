package hooks

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

// contextHook adds the file:line of the logging call site to every entry.
type contextHook struct {
	// path fragment after which file names are reported
	trim string
}

func NewContextHook() contextHook {
	return contextHook{trim: "som/"}
}

func (hook contextHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (hook contextHook) Fire(entry *logrus.Entry) error {
	pcs := make([]uintptr, 16)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "sirupsen/logrus") && !strings.HasSuffix(frame.File, "context_hook.go") {
			file := frame.File
			if i := strings.LastIndex(file, hook.trim); i >= 0 {
				file = file[i+len(hook.trim):]
			}
			entry.Data["file:line"] = fmt.Sprintf("%s:%d", file, frame.Line)
			return nil
		}
		if !more {
			return nil
		}
	}
}
