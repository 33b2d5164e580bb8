package staged

import "github.com/oriumgames/staged/internal/event"

// Lifecycle events, emitted by the world at the step boundary where the
// structural change is applied. Events become readable at the following
// step.

// EntityCreated reports an entity materialized from its spawn description.
type EntityCreated struct {
	Entity EntityID
}

// EntityDestroyed reports an entity destroyed, directly or through a spatial
// cascade.
type EntityDestroyed struct {
	Entity EntityID
}

// EventWriter appends events of one type to a world's bus. Events emitted
// during a step become readable at the next one.
type EventWriter[T any] struct {
	w event.Writer[T]
}

// Emit appends one event.
func (w EventWriter[T]) Emit(v T) { w.w.Emit(v) }

// EmitMany appends multiple events in one critical section.
func (w EventWriter[T]) EmitMany(vals []T) { w.w.EmitMany(vals) }

// EventReader iterates the previous step's events of one type.
type EventReader[T any] struct {
	r event.Reader[T]
}

// ForEach iterates readable events; the callback returns false to stop early.
func (r EventReader[T]) ForEach(yield func(T) bool) { r.r.ForEach(yield) }

// Collect returns a copy of the readable events.
func (r EventReader[T]) Collect() []T { return r.r.Collect() }

// Len returns the number of readable events.
func (r EventReader[T]) Len() int { return r.r.Len() }

// EventWriterFor returns a writer for events of type T on the world's bus.
func EventWriterFor[T any](w *World) EventWriter[T] {
	return EventWriter[T]{w: event.WriterFor[T](w.events)}
}

// EventReaderFor returns a reader for events of type T on the world's bus.
func EventReaderFor[T any](w *World) EventReader[T] {
	return EventReader[T]{r: event.ReaderFor[T](w.events)}
}
