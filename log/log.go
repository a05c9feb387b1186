// Copyright 2024 The archtape Authors
// This file is part of the archtape library.
//
// The archtape library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The archtape library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the archtape library. If not, see <http://www.gnu.org/licenses/>.

// Package log implements archtape's structured logger. It follows the
// teacher's own log package: a small Record/Handler pair, a root logger that
// every package-level "log.Info(...)" call goes through, and context loggers
// created with log.New(ctx...) that prepend fixed key/value pairs to every
// record.
package log

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/go-stack/stack"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// Lvl is a log level, ordered from most to least severe.
type Lvl int

const (
	LvlError Lvl = iota
	LvlWarn
	LvlInfo
	LvlDebug
)

func (l Lvl) String() string {
	switch l {
	case LvlError:
		return "ERROR"
	case LvlWarn:
		return "WARN"
	case LvlInfo:
		return "INFO"
	case LvlDebug:
		return "DEBUG"
	default:
		return "????"
	}
}

// Record is a single log event, handed to a Handler.
type Record struct {
	Time time.Time
	Lvl  Lvl
	Msg  string
	Ctx  []interface{}
	Call stack.Call
}

// Handler writes a Record somewhere.
type Handler interface {
	Log(r *Record) error
}

// Logger emits Records to a Handler, after merging in any context pairs
// fixed at construction time via New.
type Logger struct {
	ctx     []interface{}
	handler Handler
}

var (
	root   = &Logger{handler: StreamHandler(os.Stderr, TerminalFormat())}
	rootMu sync.RWMutex
)

// SetHandler replaces the handler used by the root logger and every Logger
// derived from it that hasn't been given its own handler.
func SetHandler(h Handler) {
	rootMu.Lock()
	defer rootMu.Unlock()
	root.handler = h
}

// New returns a Logger that prepends ctx (alternating key, value) to every
// record it emits, sharing the root handler.
func New(ctx ...interface{}) *Logger {
	return &Logger{ctx: ctx, handler: nil}
}

func (l *Logger) write(lvl Lvl, msg string, ctx []interface{}) {
	rec := &Record{
		Time: time.Now(),
		Lvl:  lvl,
		Msg:  msg,
		Ctx:  append(append([]interface{}{}, l.ctx...), ctx...),
		Call: stack.Caller(2),
	}
	h := l.handler
	if h == nil {
		rootMu.RLock()
		h = root.handler
		rootMu.RUnlock()
	}
	_ = h.Log(rec)
}

func (l *Logger) Debug(msg string, ctx ...interface{}) { l.write(LvlDebug, msg, ctx) }
func (l *Logger) Info(msg string, ctx ...interface{})  { l.write(LvlInfo, msg, ctx) }
func (l *Logger) Warn(msg string, ctx ...interface{})  { l.write(LvlWarn, msg, ctx) }
func (l *Logger) Error(msg string, ctx ...interface{}) { l.write(LvlError, msg, ctx) }

func Debug(msg string, ctx ...interface{}) { root.write(LvlDebug, msg, ctx) }
func Info(msg string, ctx ...interface{})  { root.write(LvlInfo, msg, ctx) }
func Warn(msg string, ctx ...interface{})  { root.write(LvlWarn, msg, ctx) }
func Error(msg string, ctx ...interface{}) { root.write(LvlError, msg, ctx) }

// Format renders a Record to bytes.
type Format interface {
	Format(r *Record) []byte
}

type formatFunc func(*Record) []byte

func (f formatFunc) Format(r *Record) []byte { return f(r) }

// TerminalFormat returns a human-readable, single-line format, matching the
// teacher's default console layout. It emits no color codes.
func TerminalFormat() Format {
	return formatFunc(func(r *Record) []byte {
		var b []byte
		b = append(b, r.Time.Format("2006-01-02T15:04:05.000-0700")...)
		b = append(b, ' ')
		b = append(b, padLevel(r.Lvl)...)
		b = append(b, ' ')
		b = append(b, r.Msg...)
		for i := 0; i+1 < len(r.Ctx); i += 2 {
			b = append(b, fmt.Sprintf(" %v=%v", r.Ctx[i], r.Ctx[i+1])...)
		}
		b = append(b, '\n')
		return b
	})
}

func padLevel(l Lvl) string {
	s := l.String()
	for len(s) < 5 {
		s += " "
	}
	return s
}

// StreamHandler writes formatted records to w. When w is a terminal, it is
// wrapped with go-colorable so ANSI escape sequences in the formatted
// output render on Windows and Unix consoles alike; the handler adds none.
func StreamHandler(w io.Writer, fmtr Format) Handler {
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		w = colorable.NewColorable(f)
	}
	return &streamHandler{w: w, fmtr: fmtr}
}

type streamHandler struct {
	mu   sync.Mutex
	w    io.Writer
	fmtr Format
}

func (h *streamHandler) Log(r *Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(h.fmtr.Format(r))
	return err
}
