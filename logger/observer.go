package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// Logs is the view of captured entries returned by NewObserverLogger.
type Logs interface {
	Len() int
	All() []observer.LoggedEntry
	// FilterMessage returns the entries with the given message.
	FilterMessage(msg string) *observer.ObservedLogs
}

var _ Logs = (*observer.ObservedLogs)(nil)

// NewObserverLogger returns a logger that keeps entries at or above level
// in memory instead of writing them, for tests. An unknown level keeps
// everything.
func NewObserverLogger(level string) (Logger, Logs) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		lvl = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	core, logs := observer.New(lvl)
	return &ZapLogger{zap.New(core)}, logs
}
