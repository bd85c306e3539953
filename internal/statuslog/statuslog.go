// Package statuslog keeps the append-only status log shown to the user:
// one "HH:MM:SS message" line per entry, colored by class.
package statuslog

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/fatih/color"
)

// TimeFormat is the timestamp layout prefixed to every line.
const TimeFormat = "15:04:05"

// Level is the color class of an entry.
type Level int

const (
	Plain Level = iota // no color
	Info               // green
	Warn               // orange
	Error              // red
)

// Class returns the color class name of the level.
func (l Level) Class() string {
	switch l {
	case Info:
		return "green"
	case Warn:
		return "orange"
	case Error:
		return "red"
	default:
		return ""
	}
}

func (l Level) String() string {
	switch l {
	case Info:
		return "info"
	case Warn:
		return "warn"
	case Error:
		return "error"
	default:
		return "plain"
	}
}

// Entry is a single status message.
type Entry struct {
	Time  time.Time
	Level Level
	Text  string
}

// String renders the entry without color.
func (e Entry) String() string {
	return e.Time.Format(TimeFormat) + " " + e.Text
}

// Log is an append-only status log. Safe for concurrent use.
type Log struct {
	mu      sync.Mutex
	out     io.Writer
	entries []Entry
	now     func() time.Time
	palette map[Level]*color.Color
}

// Option configures a Log.
type Option func(*Log)

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(l *Log) { l.now = now }
}

// WithColor forces color output on or off regardless of the terminal.
func WithColor(enabled bool) Option {
	return func(l *Log) {
		for _, c := range l.palette {
			if enabled {
				c.EnableColor()
			} else {
				c.DisableColor()
			}
		}
	}
}

// New creates a Log writing rendered lines to out. A nil out only records entries.
func New(out io.Writer, opts ...Option) *Log {
	l := &Log{
		out: out,
		now: time.Now,
		palette: map[Level]*color.Color{
			Info:  color.New(color.FgGreen),
			Warn:  color.New(38, 5, 208), // 256-color orange
			Error: color.New(color.FgRed),
		},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Print appends an uncolored entry.
func (l *Log) Print(text string) { l.Append(Plain, text) }

// Info appends a green entry.
func (l *Log) Info(text string) { l.Append(Info, text) }

// Warn appends an orange entry.
func (l *Log) Warn(text string) { l.Append(Warn, text) }

// Error appends a red entry.
func (l *Log) Error(text string) { l.Append(Error, text) }

// Append records an entry and writes it out.
func (l *Log) Append(level Level, text string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := Entry{Time: l.now(), Level: level, Text: text}
	l.entries = append(l.entries, e)
	slog.Debug("[STATUS] "+text, "class", level.Class())

	if l.out == nil {
		return
	}
	line := e.String()
	if c, ok := l.palette[level]; ok {
		line = c.Sprint(line)
	}
	fmt.Fprintln(l.out, line)
}

// Entries returns a copy of all entries in append order.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
