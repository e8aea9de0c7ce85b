package events

import (
	"strings"

	"go.uber.org/zap"
)

// LoggingObserver logs every event.
type LoggingObserver struct {
	name   string
	logger *zap.Logger
}

// NewLoggingObserver creates a new observer that logs events.
func NewLoggingObserver(logger *zap.Logger) *LoggingObserver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoggingObserver{name: "LoggingObserver", logger: logger}
}

// OnEvent logs the event.
func (o *LoggingObserver) OnEvent(event Event) error {
	o.logger.Info("event", zap.String("type", event.Type), zap.Any("data", event.Data))
	return nil
}

// GetName returns the observer's name.
func (o *LoggingObserver) GetName() string {
	return o.name
}

// ShouldHandle returns true for all events.
func (o *LoggingObserver) ShouldHandle(string) bool {
	return true
}

// FuncObserver runs a function for events whose type has one of the given
// prefixes (or every event when no prefix is given).
type FuncObserver struct {
	name     string
	prefixes []string
	fn       func(Event) error
}

// NewFuncObserver creates a FuncObserver.
func NewFuncObserver(name string, fn func(Event) error, prefixes ...string) *FuncObserver {
	return &FuncObserver{name: name, fn: fn, prefixes: prefixes}
}

// OnEvent calls the wrapped function.
func (o *FuncObserver) OnEvent(event Event) error {
	return o.fn(event)
}

// GetName returns the observer's name.
func (o *FuncObserver) GetName() string {
	return o.name
}

// ShouldHandle matches on type prefix.
func (o *FuncObserver) ShouldHandle(eventType string) bool {
	if len(o.prefixes) == 0 {
		return true
	}
	for _, p := range o.prefixes {
		if strings.HasPrefix(eventType, p) {
			return true
		}
	}
	return false
}
