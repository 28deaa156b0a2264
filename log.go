package offstage

import (
	"os"

	"github.com/sirupsen/logrus"
)

// log is the package logger. Quiet by default: warnings and errors only.
var log = newDefaultLogger()

func newDefaultLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.WarnLevel)
	return l
}

// SetLogger replaces the package logger. Set a logger at DebugLevel to see
// per-frame redraw decisions and cache activity.
func SetLogger(l *logrus.Logger) {
	if l == nil {
		panic("offstage: cannot set nil logger")
	}
	log = l
}

// Logger returns the package logger, for adjusting its level or output in
// place.
func Logger() *logrus.Logger {
	return log
}
