package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type memSink struct {
	name string
	fail bool

	mu   sync.Mutex
	sent []Notification
}

func (m *memSink) Name() string { return m.name }
func (m *memSink) Send(ctx context.Context, n Notification) error {
	if m.fail {
		return errors.New("sink down")
	}
	m.mu.Lock()
	m.sent = append(m.sent, n)
	m.mu.Unlock()
	return nil
}

func (m *memSink) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func TestFanOutSurvivesSinkFailure(t *testing.T) {
	bus := NewBus(4)
	bad := &memSink{name: "bad", fail: true}
	good := &memSink{name: "good"}
	mgr := NewManagerWithSinks(bus, bad, good)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		mgr.Run(ctx)
		close(done)
	}()

	bus.Publish(PriceAlertNotification("SOL", "above", 150, 151.2))

	deadline := time.After(2 * time.Second)
	for good.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("notification never reached the working sink")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	<-done
}

func TestPublishNeverBlocks(t *testing.T) {
	bus := NewBus(1)
	if !bus.Publish(Notification{Title: "a"}) {
		t.Fatal("first publish should succeed")
	}
	// Buffer full and no consumer: must drop, not block.
	if bus.Publish(Notification{Title: "b"}) {
		t.Fatal("publish into a full buffer should report a drop")
	}
}
