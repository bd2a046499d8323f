// Package logger is a small level gated logger shared by the backtester, the
// api server and the command line tools.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

const (
	DebugLevel = "debug"
	InfoLevel  = "info"
	ErrorLevel = "error"
)

var levels = map[string]int{
	DebugLevel: 0,
	InfoLevel:  1,
	ErrorLevel: 2,
}

var (
	mu     sync.RWMutex
	level  = InfoLevel
	output = log.New(os.Stdout, "", log.LstdFlags)
)

func GetLevel() string {
	mu.RLock()
	defer mu.RUnlock()
	return level
}

// SetLevel accepts debug, info or error. An empty level means debug.
func SetLevel(lvl string) {
	lvl = strings.ToLower(strings.TrimSpace(lvl))
	if lvl == "" {
		lvl = DebugLevel
	}
	if _, ok := levels[lvl]; !ok {
		Errorf("Unknown log level %q, keeping %v\n", lvl, GetLevel())
		return
	}
	mu.Lock()
	level = lvl
	mu.Unlock()
	Debugf("Set logger level to %v\n", lvl)
}

// SetOutput redirects all log lines, mostly for tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	output = log.New(w, "", log.LstdFlags)
	mu.Unlock()
}

func enabled(lvl string) bool {
	mu.RLock()
	defer mu.RUnlock()
	return levels[lvl] >= levels[level]
}

func write(lvl string, msg string) {
	if !enabled(lvl) {
		return
	}
	mu.RLock()
	out := output
	mu.RUnlock()
	out.Print("[" + strings.ToUpper(lvl) + "] " + msg)
}

func Debugf(template string, args ...interface{}) {
	write(DebugLevel, fmt.Sprintf(template, args...))
}

func Infof(template string, args ...interface{}) {
	write(InfoLevel, fmt.Sprintf(template, args...))
}

func Errorf(template string, args ...interface{}) {
	write(ErrorLevel, fmt.Sprintf(template, args...))
}
