package barcode

import (
	"sync"
	"time"
)

// DefaultDebounceWindow is how long the same code is ignored after a read.
const DefaultDebounceWindow = 2 * time.Second

// Debouncer drops repeated reads of the same code that arrive within a window,
// which is how a camera in continuous mode reports a code it keeps seeing.
type Debouncer struct {
	mu     sync.Mutex
	window time.Duration
	now    func() time.Time
	last   string
	lastAt time.Time
}

func NewDebouncer(window time.Duration, now func() time.Time) *Debouncer {
	if now == nil {
		now = time.Now
	}
	return &Debouncer{window: window, now: now}
}

// Accept reports whether code should be processed. A different code always
// passes and becomes the new reference.
func (d *Debouncer) Accept(code string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if code == d.last && now.Sub(d.lastAt) < d.window {
		return false
	}
	d.last = code
	d.lastAt = now
	return true
}

// Reset forgets the last accepted code.
func (d *Debouncer) Reset() {
	d.mu.Lock()
	d.last = ""
	d.lastAt = time.Time{}
	d.mu.Unlock()
}
