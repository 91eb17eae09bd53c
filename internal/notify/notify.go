// Package notify fans provider degradation events out to configured sinks.
// A manager in front of the sinks drops repeats of the same provider and
// error kind inside a dedup window so a burst of quota failures produces
// one notification, not hundreds.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/promptlab/promptlab/internal/domain"
)

// DefaultDedupWindow is how long repeats of one provider+kind pair stay
// suppressed.
const DefaultDedupWindow = 5 * time.Minute

// Event describes one degradation: a live provider call was replaced by
// the mock generator, or failed outright.
type Event struct {
	Provider  domain.Provider  `json:"provider"`
	Kind      domain.ErrorKind `json:"kind"`
	Message   string           `json:"message"`
	Timestamp time.Time        `json:"timestamp"`
}

// Sink delivers events to one channel (log, SNS).
type Sink interface {
	Send(ctx context.Context, event Event) error
}

// LogSink writes events to the process log. It is always configured so
// degradations are visible even without external notification wiring.
type LogSink struct{}

func (LogSink) Send(ctx context.Context, event Event) error {
	slog.Warn("provider degraded",
		"provider", string(event.Provider),
		"kind", string(event.Kind),
		"message", event.Message)
	return nil
}

// Manager implements the dispatcher's Notifier. Send failures are logged
// and swallowed; notification delivery never fails a generation.
type Manager struct {
	sinks  []Sink
	window time.Duration
	now    func() time.Time

	mu       sync.Mutex
	lastSent map[string]time.Time
}

func NewManager(window time.Duration, sinks ...Sink) *Manager {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	return &Manager{
		sinks:    sinks,
		window:   window,
		now:      time.Now,
		lastSent: make(map[string]time.Time),
	}
}

func (m *Manager) ProviderDegraded(ctx context.Context, p domain.Provider, kind domain.ErrorKind, message string) {
	now := m.now()
	key := string(p) + "|" + string(kind)

	m.mu.Lock()
	if last, ok := m.lastSent[key]; ok && now.Sub(last) < m.window {
		m.mu.Unlock()
		return
	}
	m.lastSent[key] = now
	m.mu.Unlock()

	event := Event{
		Provider:  p,
		Kind:      kind,
		Message:   message,
		Timestamp: now,
	}

	for _, sink := range m.sinks {
		if err := sink.Send(ctx, event); err != nil {
			slog.Error("notification send failed",
				"provider", string(p),
				"kind", string(kind),
				"error", err)
		}
	}
}
