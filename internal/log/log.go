// Package log is haven's leveled debug log. Level Off keeps the process
// quiet except for Log calls; higher levels add progressively more detail.
package log

import (
	"fmt"
	"io"
	"os"
	"sync"
)

type Level int

const (
	Off Level = iota
	Basic
	Detailed
	Trace
	Wire
)

func (l Level) String() string {
	switch l {
	case Off:
		return "off"
	case Basic:
		return "basic"
	case Detailed:
		return "detailed"
	case Trace:
		return "trace"
	default:
		return "wire"
	}
}

var (
	mu     sync.RWMutex
	level            = Off
	output io.Writer = os.Stderr
)

// LevelFromInt clamps a numeric verbosity flag into a Level.
func LevelFromInt(i int) Level {
	switch {
	case i <= 0:
		return Off
	case i >= int(Wire):
		return Wire
	default:
		return Level(i)
	}
}

func SetLevel(l Level) {
	mu.Lock()
	level = l
	mu.Unlock()
}

func GetLevel() Level {
	mu.RLock()
	defer mu.RUnlock()
	return level
}

// SetOutput redirects all log output. Tests use it to capture lines.
func SetOutput(w io.Writer) {
	mu.Lock()
	output = w
	mu.Unlock()
}

// Debug writes when the current level is at least l.
func Debug(l Level, format string, a ...interface{}) {
	mu.RLock()
	enabled := level >= l && l > Off
	w := output
	mu.RUnlock()
	if !enabled {
		return
	}
	fmt.Fprintf(w, "DEBUG: "+format, a...)
}

// Log writes unconditionally.
func Log(format string, a ...interface{}) {
	mu.RLock()
	w := output
	mu.RUnlock()
	fmt.Fprintf(w, format, a...)
}
