// Package notify delivers user-facing notifications about pipeline events.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Status is the severity of a notification.
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
	StatusInfo  Status = "info"
	StatusWarn  Status = "warn"
)

// Options describe how a notification is shown. A zero Timeout lets the
// notifier pick its default.
type Options struct {
	Title   string
	Status  Status
	Timeout time.Duration
}

// Notifier shows a message and returns a token identifying it.
type Notifier interface {
	Notify(message string, opts Options) string
}

// LogNotifier writes notifications to a structured logger.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Notify(message string, opts Options) string {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.NewString()
	level := slog.LevelInfo
	switch opts.Status {
	case StatusError:
		level = slog.LevelError
	case StatusWarn:
		level = slog.LevelWarn
	}
	logger.Log(context.Background(), level, message, "notification_id", id, "title", opts.Title, "status", opts.Status)
	return id
}

// Multi fans a notification out to several notifiers and returns the token
// of the first one.
type Multi []Notifier

func (m Multi) Notify(message string, opts Options) string {
	var token string
	for i, n := range m {
		t := n.Notify(message, opts)
		if i == 0 {
			token = t
		}
	}
	return token
}
