package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func newTestService(t *testing.T, price PriceFunc) *Service {
	t.Helper()
	dir := t.TempDir()
	return NewService(filepath.Join(dir, "alerts.json"), 0, price)
}

func TestAddAlertValidation(t *testing.T) {
	s := newTestService(t, nil)

	if _, err := s.AddAlert("owner", "", "above", 100); err == nil {
		t.Fatal("expected error for empty symbol")
	}
	if _, err := s.AddAlert("owner", "SOL", "sideways", 100); err == nil {
		t.Fatal("expected error for bad direction")
	}
	if _, err := s.AddAlert("owner", "SOL", "above", -5); err == nil {
		t.Fatal("expected error for negative threshold")
	}

	a, err := s.AddAlert("owner", "sol", "above", 150)
	if err != nil {
		t.Fatalf("AddAlert: %v", err)
	}
	if a.Symbol != "SOL" {
		t.Errorf("symbol not upcased: %q", a.Symbol)
	}
	if a.ID == "" {
		t.Error("expected non-empty id")
	}
}

func TestRemoveAlertOwnerScoped(t *testing.T) {
	s := newTestService(t, nil)
	a, err := s.AddAlert("alice", "SOL", "above", 150)
	if err != nil {
		t.Fatalf("AddAlert: %v", err)
	}

	if err := s.RemoveAlert("bob", a.ID); err == nil {
		t.Fatal("expected error removing another owner's alert")
	}
	if got := len(s.ListAlerts("alice")); got != 1 {
		t.Fatalf("alert should survive foreign remove, have %d", got)
	}

	if err := s.RemoveAlert("alice", a.ID); err != nil {
		t.Fatalf("RemoveAlert: %v", err)
	}
	if got := len(s.ListAlerts("alice")); got != 0 {
		t.Fatalf("expected 0 alerts after remove, have %d", got)
	}
}

func TestCheckAllFiresAndRemoves(t *testing.T) {
	prices := map[string]float64{"SOL": 160, "BONK": 0.00001}
	s := newTestService(t, func(ctx context.Context, symbol string) (float64, error) {
		p, ok := prices[symbol]
		if !ok {
			return 0, fmt.Errorf("no price for %s", symbol)
		}
		return p, nil
	})

	var fired []Alert
	s.SetOnFire(func(ctx context.Context, a Alert, price float64) {
		fired = append(fired, a)
	})

	above, _ := s.AddAlert("owner", "SOL", "above", 150) // 160 >= 150, fires
	s.AddAlert("owner", "SOL", "below", 100)             // 160 > 100, stays
	s.AddAlert("owner", "WIF", "above", 1)               // no price, stays

	s.checkAll(context.Background())

	if len(fired) != 1 || fired[0].ID != above.ID {
		t.Fatalf("expected only the above-150 alert to fire, got %v", fired)
	}
	if got := len(s.ListAlerts("owner")); got != 2 {
		t.Fatalf("fired alert should be removed, have %d remaining", got)
	}
}

func TestAddAlertPreservesExistingStore(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "alerts.json")

	s1 := NewService(path, 0, nil)
	a1, err := s1.AddAlert("alice", "SOL", "above", 150)
	if err != nil {
		t.Fatalf("AddAlert: %v", err)
	}

	// A fresh instance that never ran Start must not clobber the file.
	s2 := NewService(path, 0, nil)
	if _, err := s2.AddAlert("bob", "BONK", "below", 0.00001); err != nil {
		t.Fatalf("AddAlert: %v", err)
	}
	if got := len(s2.ListAlerts("alice")); got != 1 {
		t.Fatalf("second instance should see alice's alert, have %d", got)
	}

	s3 := NewService(path, 0, nil)
	alerts := s3.AllAlerts()
	if len(alerts) != 2 {
		t.Fatalf("expected both alerts on disk, have %d", len(alerts))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read store: %v", err)
	}
	var st alertStore
	if err := json.Unmarshal(data, &st); err != nil {
		t.Fatalf("parse store: %v", err)
	}
	if st.Version != 1 {
		t.Errorf("store version = %d, want 1", st.Version)
	}
	if err := s3.RemoveAlert("alice", a1.ID); err != nil {
		t.Fatalf("RemoveAlert on loaded store: %v", err)
	}
}

func TestAlertIDsUnique(t *testing.T) {
	s := newTestService(t, nil)
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		a, err := s.AddAlert("owner", "SOL", "above", float64(100+i))
		if err != nil {
			t.Fatalf("AddAlert: %v", err)
		}
		if seen[a.ID] {
			t.Fatalf("alert id %q issued twice", a.ID)
		}
		seen[a.ID] = true
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "alerts.json")

	s1 := NewService(path, 0, nil)
	if _, err := s1.AddAlert("owner", "SOL", "below", 90); err != nil {
		t.Fatalf("AddAlert: %v", err)
	}

	s2 := NewService(path, 0, nil)
	alerts := s2.AllAlerts()
	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert after reload, have %d", len(alerts))
	}
	if alerts[0].Symbol != "SOL" || alerts[0].Threshold != 90 {
		t.Errorf("unexpected alert after reload: %+v", alerts[0])
	}
}
