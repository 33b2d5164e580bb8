// Package event implements a per-type event bus with frame-based delivery.
// Writers append to the current frame's write buffer; readers iterate the
// previous frame's buffer. The owning world advances the bus once per step,
// so events emitted during a step become visible at the next one.
package event

import (
	"reflect"
	"sync"
)

// Bus holds one double-buffered store per event type.
type Bus struct {
	stores sync.Map // key: reflect.Type, value: *store[T]
}

// NewBus constructs a Bus.
func NewBus() *Bus {
	return &Bus{}
}

// Advance flips write->read buffers for all event types. Call exactly once
// per step, after all systems have run.
func (b *Bus) Advance() {
	b.stores.Range(func(_, v any) bool {
		v.(advancer).advance()
		return true
	})
}

// WriterFor returns a type-safe writer bound to this bus.
func WriterFor[T any](b *Bus) Writer[T] {
	return Writer[T]{store: ensureStore[T](b)}
}

// ReaderFor returns a type-safe reader bound to this bus.
func ReaderFor[T any](b *Bus) Reader[T] {
	return Reader[T]{store: ensureStore[T](b)}
}

type advancer interface{ advance() }

func ensureStore[T any](b *Bus) *store[T] {
	t := reflect.TypeOf((*T)(nil)).Elem()
	if v, ok := b.stores.Load(t); ok {
		return v.(*store[T])
	}
	st := &store[T]{}
	actual, _ := b.stores.LoadOrStore(t, st)
	return actual.(*store[T])
}
