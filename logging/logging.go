// Copyright 2024 The FATE Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package logging provides the structured logger used throughout the
// engine, wrapping logrus for every request/operation log line.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Level mirrors logrus' severities the engine actually emits.
type Level int

const (
	Error Level = iota
	Warn
	Info
	Debug
)

// Fields is a shorthand for structured log attributes.
type Fields map[string]interface{}

// Logger is the interface every engine component logs through.
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
	WithFields(fields Fields) Logger
	SetLevel(level Level)
	GetLevel() Level
}

// StandardLogger is the default logrus-backed implementation.
type StandardLogger struct {
	entry *logrus.Entry
	level Level
}

// New returns a StandardLogger writing JSON lines to stderr.
func New() *StandardLogger {
	base := logrus.New()
	base.SetFormatter(&logrus.JSONFormatter{})
	base.SetOutput(os.Stderr)
	return &StandardLogger{entry: logrus.NewEntry(base), level: Info}
}

// NewWithWriter is New but directs output elsewhere (tests, CLI -v).
func NewWithWriter(w io.Writer) *StandardLogger {
	l := New()
	l.entry.Logger.SetOutput(w)
	return l
}

func (l *StandardLogger) SetLevel(level Level) {
	l.level = level
	switch level {
	case Debug:
		l.entry.Logger.SetLevel(logrus.DebugLevel)
	case Info:
		l.entry.Logger.SetLevel(logrus.InfoLevel)
	case Warn:
		l.entry.Logger.SetLevel(logrus.WarnLevel)
	case Error:
		l.entry.Logger.SetLevel(logrus.ErrorLevel)
	}
}

func (l *StandardLogger) GetLevel() Level { return l.level }

func (l *StandardLogger) Debug(format string, args ...interface{}) { l.entry.Debugf(format, args...) }
func (l *StandardLogger) Info(format string, args ...interface{})  { l.entry.Infof(format, args...) }
func (l *StandardLogger) Warn(format string, args ...interface{})  { l.entry.Warnf(format, args...) }
func (l *StandardLogger) Error(format string, args ...interface{}) { l.entry.Errorf(format, args...) }

func (l *StandardLogger) WithFields(fields Fields) Logger {
	return &StandardLogger{entry: l.entry.WithFields(logrus.Fields(fields)), level: l.level}
}

// NoOp is a Logger that discards everything, used in tests that don't
// want log noise but still need to satisfy the Logger interface.
type NoOp struct{}

func NewNoOp() *NoOp                                         { return &NoOp{} }
func (NoOp) Debug(string, ...interface{})                    {}
func (NoOp) Info(string, ...interface{})                     {}
func (NoOp) Warn(string, ...interface{})                     {}
func (NoOp) Error(string, ...interface{})                    {}
func (n NoOp) WithFields(Fields) Logger                      { return n }
func (NoOp) SetLevel(Level)                                  {}
func (NoOp) GetLevel() Level                                 { return Info }

var _ Logger = (*StandardLogger)(nil)
var _ Logger = NoOp{}
