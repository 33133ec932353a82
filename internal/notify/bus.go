// Package notify delivers out-of-band messages (fired price alerts, operator
// notices) to external chat services. It is outbound only; conversations with
// the assistant happen over the web transport.
package notify

import "fmt"

// Notification is one message to deliver to every enabled sink.
type Notification struct {
	Title string
	Body  string
}

// Bus decouples producers (the alert watcher) from delivery. The buffered
// channel means producers never block on a slow or down chat service.
type Bus struct {
	ch chan Notification
}

// NewBus creates a Bus with the given buffer size.
func NewBus(bufSize int) *Bus {
	if bufSize <= 0 {
		bufSize = 64
	}
	return &Bus{ch: make(chan Notification, bufSize)}
}

// Publish enqueues a notification. If the buffer is full the notification is
// dropped; alerts are advisory and must never stall the watcher.
func (b *Bus) Publish(n Notification) bool {
	select {
	case b.ch <- n:
		return true
	default:
		return false
	}
}

// Chan returns the receive side for the delivery manager.
func (b *Bus) Chan() <-chan Notification {
	return b.ch
}

// PriceAlertNotification formats a fired price alert.
func PriceAlertNotification(symbol, direction string, threshold, price float64) Notification {
	return Notification{
		Title: fmt.Sprintf("Price alert: %s", symbol),
		Body:  fmt.Sprintf("%s is now $%.4f, %s your $%g threshold.", symbol, price, direction, threshold),
	}
}
