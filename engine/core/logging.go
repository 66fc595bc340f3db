package core

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

var once sync.Once

type logger struct {
	*log.Logger
}

var singleton *logger

func getLogger() *logger {
	if singleton == nil {
		once.Do(
			func() {
				l := log.NewWithOptions(os.Stderr, log.Options{
					ReportCaller:    true,
					ReportTimestamp: true,
					TimeFormat:      time.RFC3339,
					Prefix:          "Volcano 🌋 ",
				})
				l.SetLevel(log.InfoLevel)
				singleton = &logger{l}
			})
	}
	return singleton
}

// SetLogLevel accepts debug, info, warn, error or fatal. Unknown names
// leave the current level untouched and return false.
func SetLogLevel(level string) bool {
	lvl, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return false
	}
	getLogger().SetLevel(lvl)
	return true
}

// SetLogOutput redirects the logger, mostly for tests.
func SetLogOutput(w io.Writer) {
	getLogger().SetOutput(w)
}

func LogDebug(msg string, args ...interface{}) {
	l := getLogger()
	l.Helper()
	l.Debugf(msg, args...)
}

func LogInfo(msg string, args ...interface{}) {
	l := getLogger()
	l.Helper()
	l.Infof(msg, args...)
}

func LogWarn(msg string, args ...interface{}) {
	l := getLogger()
	l.Helper()
	l.Warnf(msg, args...)
}

func LogError(msg string, args ...interface{}) {
	l := getLogger()
	l.Helper()
	l.Errorf(msg, args...)
}

func LogFatal(msg string, args ...interface{}) {
	l := getLogger()
	l.Helper()
	l.Fatalf(msg, args...)
}
