// Package notice holds short-lived status messages shown after user actions.
package notice

import (
	"sync"
	"time"
)

// DefaultTTL is how long a message stays visible.
const DefaultTTL = 3 * time.Second

// Level tells successes apart from failures.
type Level int

const (
	Info Level = iota
	Error
)

func (l Level) String() string {
	if l == Error {
		return "error"
	}
	return "info"
}

// Message is one status message.
type Message struct {
	Text    string
	Level   Level
	Expires time.Time
}

// Board keeps the latest message until it expires. Setting a new message
// replaces the current one. It is safe for concurrent use.
type Board struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	current *Message
}

// New creates a Board whose messages live for ttl.
func New(ttl time.Duration) *Board {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Board{ttl: ttl, now: time.Now}
}

// SetClock replaces the time source. Tests use it to expire messages.
func (b *Board) SetClock(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
}

// Info posts a success message.
func (b *Board) Info(text string) { b.set(Info, text) }

// Error posts a failure message.
func (b *Board) Error(text string) { b.set(Error, text) }

func (b *Board) set(level Level, text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = &Message{Text: text, Level: level, Expires: b.now().Add(b.ttl)}
}

// Current returns the visible message, if any.
func (b *Board) Current() (Message, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil {
		return Message{}, false
	}
	if !b.now().Before(b.current.Expires) {
		b.current = nil
		return Message{}, false
	}
	return *b.current, true
}

// Dismiss hides the current message.
func (b *Board) Dismiss() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = nil
}
