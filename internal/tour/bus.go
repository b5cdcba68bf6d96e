package tour

import "sync"

// Listener receives every event emitted on a Bus.
type Listener func(name string, data any)

// Bus is a synchronous publish/subscribe channel for application events
// that tour steps can wait on. There is no queue and no replay: an event
// reaches only the listeners subscribed at the moment Emit is called.
type Bus struct {
	mu        sync.Mutex
	nextID    uint64
	listeners []subscription
}

type subscription struct {
	id uint64
	fn Listener
}

func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers fn and returns a handle that removes it. Calling the
// handle more than once is harmless.
func (b *Bus) Subscribe(fn Listener) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.listeners = append(b.listeners, subscription{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

// Emit calls every currently subscribed listener in registration order and
// returns once all of them have run. Listeners added during Emit are not
// called; listeners removed during Emit are skipped if not yet reached.
func (b *Bus) Emit(name string, data any) {
	b.mu.Lock()
	snapshot := make([]subscription, len(b.listeners))
	copy(snapshot, b.listeners)
	b.mu.Unlock()

	for _, sub := range snapshot {
		if !b.subscribed(sub.id) {
			continue
		}
		sub.fn(name, data)
	}
}

// Len reports the number of registered listeners.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners)
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, sub := range b.listeners {
		if sub.id == id {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			return
		}
	}
}

func (b *Bus) subscribed(id uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.listeners {
		if sub.id == id {
			return true
		}
	}
	return false
}
