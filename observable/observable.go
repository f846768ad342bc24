package observable

import "sync"

// Value is a mutable piece of state with subscription support.
//
// All methods are safe for concurrent use. Notification runs synchronously on
// the goroutine calling Set, outside the internal lock, so a listener may read
// the Value but must not mutate it (doing so would re-notify recursively).
type Value[T any] struct {
	mu     sync.RWMutex
	v      T
	subs   map[uint64]func(T)
	nextID uint64
}

// New creates a Value holding the given initial state.
//
// Creating a Value never notifies anyone; only subsequent Set calls do.
func New[T any](initial T) *Value[T] {
	return &Value[T]{
		v:    initial,
		subs: make(map[uint64]func(T)),
	}
}

// Get returns the current state.
func (o *Value[T]) Get() T {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.v
}

// Set writes new state and notifies every subscriber with the new value.
//
// Set always notifies, even if the new state equals the old one; callers that
// want change-only notification compare before writing.
func (o *Value[T]) Set(v T) {
	o.mu.Lock()
	o.v = v
	listeners := make([]func(T), 0, len(o.subs))
	for _, fn := range o.subs {
		listeners = append(listeners, fn)
	}
	o.mu.Unlock()

	for _, fn := range listeners {
		fn(v)
	}
}

// Subscribe registers a listener invoked on every subsequent Set.
//
// The returned function removes the subscription. It is safe to call the
// returned function more than once.
func (o *Value[T]) Subscribe(fn func(T)) func() {
	o.mu.Lock()
	id := o.nextID
	o.nextID++
	o.subs[id] = fn
	o.mu.Unlock()

	return func() {
		o.mu.Lock()
		delete(o.subs, id)
		o.mu.Unlock()
	}
}

// SubscriberCount reports how many subscriptions are currently registered.
func (o *Value[T]) SubscriberCount() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.subs)
}
