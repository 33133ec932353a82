// Package watch manages persistent price alerts.
//
// Alerts are stored as JSON:
//
//	{ "version": 1, "alerts": [ { "id":"…", "owner":"…", "symbol":"SOL",
//	    "direction":"above", "threshold":150.0,
//	    "createdAtMs":…, "lastCheckedMs":… } ] }
//
// A single cron entry polls prices for every distinct watched symbol and
// fires alerts whose threshold has been crossed.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	robfigcron "github.com/robfig/cron/v3"

	"github.com/solpilot/solpilot/internal/tools"
)

// Alert is one registered price watch. Alerts fire once and are then removed.
type Alert struct {
	ID            string  `json:"id"`
	Owner         string  `json:"owner"`
	Symbol        string  `json:"symbol"`
	Direction     string  `json:"direction"` // "above" | "below"
	Threshold     float64 `json:"threshold"`
	CreatedAtMs   int64   `json:"createdAtMs"`
	LastCheckedMs int64   `json:"lastCheckedMs,omitempty"`
}

type alertStore struct {
	Version int     `json:"version"`
	Alerts  []Alert `json:"alerts"`
}

// PriceFunc returns the current USD price of a token symbol.
type PriceFunc func(ctx context.Context, symbol string) (float64, error)

// OnFireFunc is called when an alert's threshold is crossed.
type OnFireFunc func(ctx context.Context, alert Alert, price float64)

// Service polls token prices and fires registered alerts.
// It also implements tools.AlertServicer so it can back the alert tools.
type Service struct {
	storePath string
	interval  time.Duration
	price     PriceFunc
	onFire    OnFireFunc

	mu     sync.Mutex
	store  alertStore
	loaded bool

	cron  *robfigcron.Cron
	entry robfigcron.EntryID
}

// NewService creates an alert watcher.
// storePath is the path to alerts.json (e.g. ~/.solpilot/alerts.json).
func NewService(storePath string, interval time.Duration, price PriceFunc) *Service {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Service{
		storePath: storePath,
		interval:  interval,
		price:     price,
		cron:      robfigcron.New(),
	}
}

// SetOnFire registers the callback invoked when an alert fires.
// Must be set before Start().
func (s *Service) SetOnFire(fn OnFireFunc) { s.onFire = fn }

// Start loads alerts from disk and begins the poll loop.
// Blocks until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if err := s.loadLocked(); err != nil {
		slog.Warn("watch: load failed, starting empty", "err", err)
	}
	n := len(s.store.Alerts)
	s.mu.Unlock()

	entry, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.interval), func() { s.checkAll(ctx) })
	if err != nil {
		return fmt.Errorf("schedule poll: %w", err)
	}
	s.entry = entry
	s.cron.Start()
	slog.Info("watch: started", "alerts", n, "interval", s.interval)

	<-ctx.Done()

	<-s.cron.Stop().Done()
	return ctx.Err()
}

// AddAlert registers a new alert and saves it.
// Implements tools.AlertServicer.AddAlert.
func (s *Service) AddAlert(owner, symbol, direction string, threshold float64) (tools.AlertSummary, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return tools.AlertSummary{}, fmt.Errorf("symbol is required")
	}
	if direction != "above" && direction != "below" {
		return tools.AlertSummary{}, fmt.Errorf("direction must be %q or %q", "above", "below")
	}
	if threshold <= 0 {
		return tools.AlertSummary{}, fmt.Errorf("threshold must be positive")
	}

	alert := Alert{
		ID:          shortID(),
		Owner:       owner,
		Symbol:      symbol,
		Direction:   direction,
		Threshold:   threshold,
		CreatedAtMs: nowMs(),
	}

	s.mu.Lock()
	if err := s.loadLocked(); err != nil {
		s.mu.Unlock()
		return tools.AlertSummary{}, fmt.Errorf("load alerts: %w", err)
	}
	s.store.Alerts = append(s.store.Alerts, alert)
	s.saveLocked()
	s.mu.Unlock()

	slog.Info("watch: alert added", "id", alert.ID, "symbol", symbol, "direction", direction, "threshold", threshold)
	return summarize(alert), nil
}

// ListAlerts returns the owner's alerts, oldest first.
// Implements tools.AlertServicer.ListAlerts.
func (s *Service) ListAlerts(owner string) []tools.AlertSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		slog.Warn("watch: load failed", "err", err)
		return nil
	}
	var out []tools.AlertSummary
	for _, a := range s.store.Alerts {
		if a.Owner == owner {
			out = append(out, summarize(a))
		}
	}
	return out
}

// RemoveAlert removes one of the owner's alerts by ID.
// Implements tools.AlertServicer.RemoveAlert.
func (s *Service) RemoveAlert(owner, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return fmt.Errorf("load alerts: %w", err)
	}
	before := len(s.store.Alerts)
	filtered := s.store.Alerts[:0]
	for _, a := range s.store.Alerts {
		if a.ID == id && a.Owner == owner {
			continue
		}
		filtered = append(filtered, a)
	}
	s.store.Alerts = filtered
	if len(filtered) == before {
		return fmt.Errorf("no alert with id %q", id)
	}
	s.saveLocked()
	return nil
}

// AllAlerts returns every stored alert regardless of owner.  CLI helper.
func (s *Service) AllAlerts() []Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.loadLocked()
	alerts := make([]Alert, len(s.store.Alerts))
	copy(alerts, s.store.Alerts)
	sort.Slice(alerts, func(i, k int) bool { return alerts[i].CreatedAtMs < alerts[k].CreatedAtMs })
	return alerts
}

// --------------------------------------------------------------------------
// Poll loop
// --------------------------------------------------------------------------

func (s *Service) checkAll(ctx context.Context) {
	s.mu.Lock()
	if err := s.loadLocked(); err != nil {
		slog.Warn("watch: load failed", "err", err)
		s.mu.Unlock()
		return
	}
	pending := make([]Alert, len(s.store.Alerts))
	copy(pending, s.store.Alerts)
	s.mu.Unlock()
	if len(pending) == 0 {
		return
	}

	// One price fetch per distinct symbol.
	prices := make(map[string]float64)
	for _, a := range pending {
		if _, done := prices[a.Symbol]; done {
			continue
		}
		p, err := s.price(ctx, a.Symbol)
		if err != nil {
			slog.Warn("watch: price fetch failed", "symbol", a.Symbol, "err", err)
			continue
		}
		prices[a.Symbol] = p
	}

	now := nowMs()
	var fired []Alert
	s.mu.Lock()
	kept := s.store.Alerts[:0]
	for _, a := range s.store.Alerts {
		price, ok := prices[a.Symbol]
		if !ok {
			kept = append(kept, a)
			continue
		}
		a.LastCheckedMs = now
		if crossed(a, price) {
			fired = append(fired, a)
			continue
		}
		kept = append(kept, a)
	}
	s.store.Alerts = kept
	if len(fired) > 0 {
		s.saveLocked()
	}
	s.mu.Unlock()

	for _, a := range fired {
		slog.Info("watch: alert fired", "id", a.ID, "symbol", a.Symbol, "price", prices[a.Symbol])
		if s.onFire != nil {
			s.onFire(ctx, a, prices[a.Symbol])
		}
	}
}

func crossed(a Alert, price float64) bool {
	switch a.Direction {
	case "above":
		return price >= a.Threshold
	case "below":
		return price <= a.Threshold
	}
	return false
}

// --------------------------------------------------------------------------
// Persistence
// --------------------------------------------------------------------------

// loadLocked reads the store from disk exactly once per Service. Every
// reading or mutating method must call it first: the chat CLI path never
// runs Start, and an unloaded store would shadow (and on save, destroy)
// whatever is already on disk.
func (s *Service) loadLocked() error {
	if s.loaded {
		return nil
	}
	data, err := os.ReadFile(s.storePath)
	if os.IsNotExist(err) {
		s.store = alertStore{Version: 1}
		s.loaded = true
		return nil
	}
	if err != nil {
		return err
	}
	var st alertStore
	if err := json.Unmarshal(data, &st); err != nil {
		return err
	}
	if st.Version == 0 {
		st.Version = 1
	}
	s.store = st
	s.loaded = true
	return nil
}

func (s *Service) saveLocked() {
	if s.store.Version == 0 {
		s.store.Version = 1
	}
	if err := os.MkdirAll(filepath.Dir(s.storePath), 0o755); err != nil {
		slog.Warn("watch: mkdir failed", "err", err)
		return
	}
	data, err := json.MarshalIndent(s.store, "", "  ")
	if err != nil {
		slog.Warn("watch: marshal failed", "err", err)
		return
	}
	if err := os.WriteFile(s.storePath, data, 0o644); err != nil {
		slog.Warn("watch: write failed", "err", err)
	}
}

func summarize(a Alert) tools.AlertSummary {
	return tools.AlertSummary{ID: a.ID, Symbol: a.Symbol, Direction: a.Direction, Threshold: a.Threshold}
}

func nowMs() int64 { return time.Now().UnixMilli() }

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
