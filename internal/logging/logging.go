// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package logging provides the structured logger used throughout the
// nat64 core. It wraps logrus so every subsystem logs with consistent
// fields (component, session, bib) and can optionally mirror records to a
// remote syslog collector.
package logging

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// Logger is a component-scoped structured logger.
type Logger struct {
	entry *logrus.Entry
}

var (
	rootOnce sync.Once
	root     *logrus.Logger
)

func rootLogger() *logrus.Logger {
	rootOnce.Do(func() {
		root = logrus.New()
		root.SetOutput(os.Stderr)
		root.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		root.SetLevel(logrus.InfoLevel)
	})
	return root
}

// SetLevel adjusts the minimum level logged by every component logger.
func SetLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	rootLogger().SetLevel(lvl)
	return nil
}

// AddHook installs an additional logrus hook (e.g. the syslog writer) on
// the shared root logger.
func AddHook(hook logrus.Hook) {
	rootLogger().AddHook(hook)
}

// SetOutput redirects the local structured output stream (tests use this
// to capture log lines instead of writing to stderr).
func SetOutput(w io.Writer) {
	rootLogger().SetOutput(w)
}

// New returns a logger scoped to the named component (e.g. "bib", "filter",
// "translate", "admin").
func New(component string) *Logger {
	return &Logger{entry: rootLogger().WithField("component", component)}
}

// With returns a derived logger with additional structured fields attached.
func (l *Logger) With(fields map[string]any) *Logger {
	return &Logger{entry: l.entry.WithFields(logrus.Fields(fields))}
}

func (l *Logger) Debugf(format string, args ...any) { l.entry.Debugf(format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.entry.Infof(format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.entry.Warnf(format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.entry.Errorf(format, args...) }

// Bug logs a programming-error condition (spec.md §7: "impossible in
// principle" states must be logged loudly but never crash the host).
func (l *Logger) Bug(format string, args ...any) {
	l.entry.WithField("bug", true).Errorf(format, args...)
}
