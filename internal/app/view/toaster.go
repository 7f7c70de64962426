package view

import (
	"sync"
	"time"

	"earn_usdc/internal/app/port"
	"earn_usdc/internal/domain/entity"
)

// Toaster holds at most one visible toast. A new toast replaces the current one and every
// toast disappears after the configured duration.
type Toaster struct {
	bus      port.Publisher
	duration time.Duration
	now      func() time.Time

	mu      sync.Mutex
	current *entity.Toast
	timer   *time.Timer
	seq     uint64
}

// NewToaster creates a Toaster that announces each toast on bus.
func NewToaster(bus port.Publisher, duration time.Duration) *Toaster {
	return &Toaster{bus: bus, duration: duration, now: time.Now}
}

// Show replaces the visible toast.
func (t *Toaster) Show(message string, level entity.ToastLevel) {
	toast := entity.Toast{Message: message, Level: level, ExpiresAt: t.now().Add(t.duration)}

	t.mu.Lock()
	if t.timer != nil {
		t.timer.Stop()
	}
	t.seq++
	seq := t.seq
	t.current = &toast
	t.timer = time.AfterFunc(t.duration, func() { t.dismiss(seq) })
	t.mu.Unlock()

	t.bus.Publish(entity.TopicToast, toast)
}

func (t *Toaster) dismiss(seq uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.seq != seq {
		return
	}
	t.current = nil
	t.timer = nil
}

// Current returns the visible toast, if any.
func (t *Toaster) Current() (entity.Toast, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return entity.Toast{}, false
	}
	return *t.current, true
}

// Close dismisses the visible toast and stops its timer.
func (t *Toaster) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
	}
	t.seq++
	t.current = nil
	t.timer = nil
}
