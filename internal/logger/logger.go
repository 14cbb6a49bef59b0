package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

// Logger is a thin key/value wrapper over the standard library logger.
type Logger struct {
	std *log.Logger
}

func New(prefix string) *Logger {
	return NewWithWriter(os.Stdout, prefix)
}

func NewWithWriter(w io.Writer, prefix string) *Logger {
	if prefix != "" && !strings.HasSuffix(prefix, " ") {
		prefix += " "
	}
	return &Logger{std: log.New(w, prefix, log.LstdFlags|log.Lmsgprefix)}
}

// Discard returns a logger that drops everything, for tests.
func Discard() *Logger {
	return NewWithWriter(io.Discard, "")
}

func (l *Logger) Info(msg string, kvs ...interface{}) {
	l.print("INFO", msg, kvs)
}

func (l *Logger) Debug(msg string, kvs ...interface{}) {
	l.print("DEBUG", msg, kvs)
}

func (l *Logger) Error(msg string, kvs ...interface{}) {
	l.print("ERROR", msg, kvs)
}

func (l *Logger) Fatal(msg string, kvs ...interface{}) {
	l.print("FATAL", msg, kvs)
	os.Exit(1)
}

func (l *Logger) print(level, msg string, kvs []interface{}) {
	if l == nil {
		return
	}
	var b strings.Builder
	b.WriteString(level)
	b.WriteString(": ")
	b.WriteString(msg)
	for i := 0; i < len(kvs); i += 2 {
		key := fmt.Sprint(kvs[i])
		var value interface{} = "(missing)"
		if i+1 < len(kvs) {
			value = kvs[i+1]
		}
		fmt.Fprintf(&b, " %s=%v", key, value)
	}
	l.std.Print(b.String())
}
