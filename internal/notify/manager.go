package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/solpilot/solpilot/internal/config"
)

// Sink is one delivery target.
type Sink interface {
	Name() string
	Send(ctx context.Context, n Notification) error
}

// Manager drains the bus and fans each notification out to every sink.
// A sink failure is logged and skipped; the other sinks still receive it.
type Manager struct {
	bus   *Bus
	sinks []Sink
}

// NewManager builds a Manager with the sinks enabled in cfg.
func NewManager(bus *Bus, cfg config.NotifyConfig) *Manager {
	var sinks []Sink
	if cfg.Telegram.Enabled {
		sinks = append(sinks, NewTelegramSink(cfg.Telegram))
	}
	if cfg.Slack.Enabled {
		sinks = append(sinks, NewSlackSink(cfg.Slack))
	}
	return &Manager{bus: bus, sinks: sinks}
}

// NewManagerWithSinks builds a Manager with explicit sinks.
func NewManagerWithSinks(bus *Bus, sinks ...Sink) *Manager {
	return &Manager{bus: bus, sinks: sinks}
}

// Run drains the bus until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	if len(m.sinks) == 0 {
		slog.Info("notify: no sinks enabled")
	}
	for {
		select {
		case n := <-m.bus.Chan():
			m.deliver(ctx, n)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (m *Manager) deliver(ctx context.Context, n Notification) {
	for _, sink := range m.sinks {
		sctx, cancel := context.WithTimeout(ctx, 15*time.Second)
		if err := sink.Send(sctx, n); err != nil {
			slog.Warn("notify: delivery failed", "sink", sink.Name(), "err", err)
		} else {
			slog.Info("notify: delivered", "sink", sink.Name(), "title", n.Title)
		}
		cancel()
	}
}
