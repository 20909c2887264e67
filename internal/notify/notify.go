// Package notify carries user-facing notifications (the storefront's toasts)
// from the stores to whatever shell renders them.
package notify

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

type Notification struct {
	Level   Level     `json:"level"`
	Title   string    `json:"title"`
	Message string    `json:"message,omitempty"`
	At      time.Time `json:"at"`
}

type Notifier interface {
	Notify(n Notification)
}

func Success(n Notifier, title, message string) { send(n, LevelSuccess, title, message) }
func Info(n Notifier, title, message string)    { send(n, LevelInfo, title, message) }
func Warning(n Notifier, title, message string) { send(n, LevelWarning, title, message) }
func Error(n Notifier, title, message string)   { send(n, LevelError, title, message) }

func send(n Notifier, level Level, title, message string) {
	if n == nil {
		return
	}
	n.Notify(Notification{Level: level, Title: title, Message: message, At: time.Now().UTC()})
}

// Discard drops every notification.
type Discard struct{}

func (Discard) Notify(Notification) {}

const DefaultFeedSize = 50

// Feed keeps the most recent notifications in a fixed-size ring.
type Feed struct {
	mu    sync.Mutex
	items []Notification
	next  int
	full  bool
}

func NewFeed(size int) *Feed {
	if size <= 0 {
		size = DefaultFeedSize
	}
	return &Feed{items: make([]Notification, size)}
}

func (f *Feed) Notify(n Notification) {
	log.Debug().Str("level", string(n.Level)).Str("title", n.Title).Str("message", n.Message).Msg("notify: notification")

	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[f.next] = n
	f.next = (f.next + 1) % len(f.items)
	if f.next == 0 {
		f.full = true
	}
}

// Recent returns notifications newest first.
func (f *Feed) Recent() []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()

	count := f.next
	if f.full {
		count = len(f.items)
	}
	out := make([]Notification, 0, count)
	for i := 1; i <= count; i++ {
		idx := (f.next - i + len(f.items)) % len(f.items)
		out = append(out, f.items[idx])
	}
	return out
}
