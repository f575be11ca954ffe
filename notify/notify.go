package notify

import (
	"context"
	"log/slog"
	"sync"
)

// Level is the kind of a notification.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
)

// Notification is one transient user-facing message.
type Notification struct {
	Level   Level  `json:"level"`
	Title   string `json:"title"`
	Message string `json:"message,omitempty"`
}

// Notifier shows notifications. Notify must not block on the user.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Func adapts a function to Notifier.
type Func func(ctx context.Context, n Notification)

// Notify calls f.
func (f Func) Notify(ctx context.Context, n Notification) { f(ctx, n) }

// Discard drops every notification.
var Discard Notifier = Func(func(context.Context, Notification) {})

func Success(ctx context.Context, n Notifier, title, message string) {
	n.Notify(ctx, Notification{Level: LevelSuccess, Title: title, Message: message})
}

func Error(ctx context.Context, n Notifier, title, message string) {
	n.Notify(ctx, Notification{Level: LevelError, Title: title, Message: message})
}

func Info(ctx context.Context, n Notifier, title, message string) {
	n.Notify(ctx, Notification{Level: LevelInfo, Title: title, Message: message})
}

func Warning(ctx context.Context, n Notifier, title, message string) {
	n.Notify(ctx, Notification{Level: LevelWarning, Title: title, Message: message})
}

// Multi fans every notification out to each of notifiers, in order.
func Multi(notifiers ...Notifier) Notifier {
	return Func(func(ctx context.Context, n Notification) {
		for _, target := range notifiers {
			if target != nil {
				target.Notify(ctx, n)
			}
		}
	})
}

// Logger writes notifications through slog.
type Logger struct {
	logger *slog.Logger
}

// NewLogger returns a Notifier logging to logger, or slog.Default when nil.
func NewLogger(logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{logger: logger}
}

// Notify logs n at a level matching its kind.
func (l *Logger) Notify(ctx context.Context, n Notification) {
	level := slog.LevelInfo
	switch n.Level {
	case LevelError:
		level = slog.LevelError
	case LevelWarning:
		level = slog.LevelWarn
	}
	l.logger.Log(ctx, level, n.Title, "kind", string(n.Level), "message", n.Message)
}

// Recorder keeps every notification it receives.
type Recorder struct {
	mu    sync.Mutex
	items []Notification
}

// Notify records n.
func (r *Recorder) Notify(_ context.Context, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
}

// All returns a copy of the recorded notifications.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.items...)
}

// Reset forgets recorded notifications.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = nil
}
